package schema

import (
	"fmt"
	"strings"
)

// IDField is the name of the identifier field every type carries.
const IDField = "id"

// UniqueCheckPrefix starts the database name of every unique check constraint.
const UniqueCheckPrefix = "unique_check_"

// Field is a named attribute of a Type.
type Field struct {
	Name     string
	Column   string
	DataType DataType
	Required bool
}

// UniqueCheck is a uniqueness constraint over one or more fields of a type.
type UniqueCheck struct {
	Name   string
	DBName string
	TypeID string
	Fields []string
}

// UniqueCheckDBName returns the constraint name used for a unique check on typeID.
func UniqueCheckDBName(typeID, suffix string) string {
	return UniqueCheckPrefix + typeID + "_" + suffix
}

// Type is a schema entity backed by a table.
type Type struct {
	ID    string
	Name  string
	Table string

	// DefaultField is displayed when a record of this type is referenced.
	DefaultField string

	// SharingControlledBy names a reference field whose target's sharing
	// governs visibility of records of this type.
	SharingControlledBy string
	// CombineRecordAndCascadeSharing makes a record visible when either
	// the record itself or the controlling record is shared.
	CombineRecordAndCascadeSharing bool

	UniqueChecks []UniqueCheck

	fields []*Field
	byName map[string]*Field
}

// NewType creates a type with an identifier field backed by column "id".
func NewType(id, name, table string) *Type {
	t := &Type{ID: id, Name: name, Table: table, byName: make(map[string]*Field)}
	t.AddField(&Field{Name: IDField, Column: "id", DataType: ID(), Required: true})
	return t
}

// AddField adds or replaces a field. Field names are case-insensitive.
func (t *Type) AddField(f *Field) *Type {
	if t.byName == nil {
		t.byName = make(map[string]*Field)
	}
	key := strings.ToLower(f.Name)
	if existing, ok := t.byName[key]; ok {
		for i, cur := range t.fields {
			if cur == existing {
				t.fields[i] = f
			}
		}
	} else {
		t.fields = append(t.fields, f)
	}
	t.byName[key] = f
	return t
}

// Field returns the field with the given name.
func (t *Type) Field(name string) (*Field, bool) {
	f, ok := t.byName[strings.ToLower(name)]
	return f, ok
}

// Fields returns the fields in declaration order.
func (t *Type) Fields() []*Field {
	out := make([]*Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// IDField returns the identifier field.
func (t *Type) IDField() *Field {
	f, _ := t.Field(IDField)
	return f
}

// UniqueCheckByDBName returns the unique check with the given constraint name.
func (t *Type) UniqueCheckByDBName(dbName string) (*UniqueCheck, bool) {
	for i := range t.UniqueChecks {
		if t.UniqueChecks[i].DBName == dbName {
			return &t.UniqueChecks[i], true
		}
	}
	return nil, false
}

// quoteIdentifier quotes a PostgreSQL identifier, doubling embedded quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ColumnSQL renders a column reference, qualified with alias when one is given.
func ColumnSQL(alias, column string) string {
	if alias == "" {
		return quoteIdentifier(column)
	}
	return quoteIdentifier(alias) + "." + quoteIdentifier(column)
}

// FieldSQL renders the SQL expression that reads f from the table aliased alias.
// Formula fields expand their expression with alias-qualified columns.
func (t *Type) FieldSQL(f *Field, alias string) (string, error) {
	switch f.DataType.Kind {
	case KindFormula:
		return t.expandFormula(f, alias)
	case KindInverseCollection, KindAssociation:
		return "", fmt.Errorf("field %s.%s has no SQL representation", t.Name, f.Name)
	default:
		return ColumnSQL(alias, f.Column), nil
	}
}

func (t *Type) expandFormula(f *Field, alias string) (string, error) {
	expr := f.DataType.Expression
	var sql strings.Builder
	sql.WriteString("(")
	for {
		start := strings.IndexByte(expr, '{')
		if start < 0 {
			sql.WriteString(expr)
			break
		}
		end := strings.IndexByte(expr[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("formula %s.%s: unterminated placeholder", t.Name, f.Name)
		}
		name := expr[start+1 : start+end]
		ref, ok := t.Field(name)
		if !ok || !ref.DataType.Kind.HasColumn() {
			return "", fmt.Errorf("formula %s.%s: unknown field %q", t.Name, f.Name, name)
		}
		sql.WriteString(expr[:start])
		sql.WriteString(ColumnSQL(alias, ref.Column))
		expr = expr[start+end+1:]
	}
	sql.WriteString(")")
	return sql.String(), nil
}
