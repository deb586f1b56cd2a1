// Package schema describes the metadata the query engine compiles against:
// types, their fields and the data type of each field.
package schema

import "fmt"

// Kind identifies the variant of a DataType.
type Kind int

const (
	KindText Kind = iota + 1
	KindNumber
	KindBoolean
	KindDate
	KindDateTime
	KindEnum
	KindID
	KindReference
	KindInverseCollection
	KindAssociation
	KindFormula
)

var kindNames = map[Kind]string{
	KindText:              "text",
	KindNumber:            "number",
	KindBoolean:           "boolean",
	KindDate:              "date",
	KindDateTime:          "datetime",
	KindEnum:              "enum",
	KindID:                "id",
	KindReference:         "reference",
	KindInverseCollection: "inverse_collection",
	KindAssociation:       "association",
	KindFormula:           "formula",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind returns the Kind with the given name.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", name)
}

// HasColumn reports whether values of this kind are stored in a column of the owning table.
func (k Kind) HasColumn() bool {
	switch k {
	case KindText, KindNumber, KindBoolean, KindDate, KindDateTime, KindEnum, KindID, KindReference:
		return true
	case KindInverseCollection, KindAssociation, KindFormula:
		return false
	default:
		return false
	}
}

// IsCollection reports whether the kind is a to-many relationship.
func (k Kind) IsCollection() bool {
	return k == KindInverseCollection || k == KindAssociation
}

// IsRelationship reports whether the kind points at another type.
func (k Kind) IsRelationship() bool {
	return k == KindReference || k.IsCollection()
}

// DataType is the type of a field. Which attributes are meaningful depends on Kind.
type DataType struct {
	Kind Kind

	// Text and enum.
	Length int
	// Number.
	DecimalPlaces int

	// Reference: the type the foreign key points at.
	RefType string

	// Inverse collection: the type holding the reference and the name of that reference field.
	InverseType  string
	InverseField string

	// Association: the linking type, its two reference fields, and the associated type.
	LinkingType         string
	SelfLinkingField    string
	ForeignLinkingField string
	AssociatedType      string

	// Formula: a SQL expression where {field} placeholders name fields of the same type.
	Expression string
	ReturnKind Kind
}

// Text returns a text data type of the given length.
func Text(length int) DataType { return DataType{Kind: KindText, Length: length} }

// Number returns a number data type with the given number of decimal places.
func Number(decimalPlaces int) DataType {
	return DataType{Kind: KindNumber, DecimalPlaces: decimalPlaces}
}

// Boolean returns a boolean data type.
func Boolean() DataType { return DataType{Kind: KindBoolean} }

// Date returns a date data type.
func Date() DataType { return DataType{Kind: KindDate} }

// DateTime returns a date-time data type.
func DateTime() DataType { return DataType{Kind: KindDateTime} }

// Enum returns an enumeration data type.
func Enum() DataType { return DataType{Kind: KindEnum, Length: 255} }

// ID returns the record identifier data type.
func ID() DataType { return DataType{Kind: KindID} }

// Reference returns a many-to-one data type pointing at typeID.
func Reference(typeID string) DataType { return DataType{Kind: KindReference, RefType: typeID} }

// InverseCollection returns the one-to-many side of the reference field inverseField on inverseType.
func InverseCollection(inverseType, inverseField string) DataType {
	return DataType{Kind: KindInverseCollection, InverseType: inverseType, InverseField: inverseField}
}

// Association returns a many-to-many data type realized through linkingType.
func Association(linkingType, selfField, foreignField, associatedType string) DataType {
	return DataType{
		Kind:                KindAssociation,
		LinkingType:         linkingType,
		SelfLinkingField:    selfField,
		ForeignLinkingField: foreignField,
		AssociatedType:      associatedType,
	}
}

// Formula returns a computed data type.
func Formula(expression string, returns Kind) DataType {
	return DataType{Kind: KindFormula, Expression: expression, ReturnKind: returns}
}

// ValueKind is the kind of the values the type produces. For formulas it is
// the return kind.
func (d DataType) ValueKind() Kind {
	if d.Kind == KindFormula {
		return d.ReturnKind
	}
	return d.Kind
}

// PostgresType returns the PostgreSQL column type for values of this data type.
func (d DataType) PostgresType() (string, error) {
	switch d.ValueKind() {
	case KindNumber:
		return fmt.Sprintf("numeric(18, %d)", d.DecimalPlaces), nil
	case KindText:
		if d.Length <= 0 {
			return "text", nil
		}
		return fmt.Sprintf("character varying(%d)", d.Length), nil
	case KindEnum:
		if d.Length <= 0 {
			return "character varying(255)", nil
		}
		return fmt.Sprintf("character varying(%d)", d.Length), nil
	case KindDate, KindDateTime:
		return "timestamp without time zone", nil
	case KindBoolean:
		return "boolean", nil
	case KindID, KindReference:
		return "character varying(13)", nil
	case KindInverseCollection, KindAssociation, KindFormula:
		return "", fmt.Errorf("data type %s has no column type", d.Kind)
	default:
		return "", fmt.Errorf("unknown data type %s", d.Kind)
	}
}
