package schema

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type yamlDocument struct {
	Types []yamlType `yaml:"types"`
}

type yamlType struct {
	ID                  string            `yaml:"id"`
	Name                string            `yaml:"name"`
	Table               string            `yaml:"table"`
	DefaultField        string            `yaml:"defaultField"`
	SharingControlledBy string            `yaml:"sharingControlledBy"`
	CombineSharing      bool              `yaml:"combineSharing"`
	Fields              []yamlField       `yaml:"fields"`
	UniqueChecks        []yamlUniqueCheck `yaml:"uniqueChecks"`
}

type yamlField struct {
	Name           string `yaml:"name"`
	Column         string `yaml:"column"`
	Type           string `yaml:"type"`
	Required       bool   `yaml:"required"`
	Length         int    `yaml:"length"`
	DecimalPlaces  int    `yaml:"decimalPlaces"`
	RefType        string `yaml:"refType"`
	InverseType    string `yaml:"inverseType"`
	InverseField   string `yaml:"inverseField"`
	LinkingType    string `yaml:"linkingType"`
	SelfField      string `yaml:"selfLinkingField"`
	ForeignField   string `yaml:"foreignLinkingField"`
	AssociatedType string `yaml:"associatedType"`
	Expression     string `yaml:"expression"`
	Returns        string `yaml:"returns"`
}

type yamlUniqueCheck struct {
	Name   string   `yaml:"name"`
	DBName string   `yaml:"dbName"`
	Fields []string `yaml:"fields"`
}

// LoadYAML reads a schema document. Type references in fields may use either
// the type id or the type name.
func LoadYAML(r io.Reader) (*Memory, error) {
	var doc yamlDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}

	ids := make(map[string]string, len(doc.Types))
	for _, yt := range doc.Types {
		ids[yt.ID] = yt.ID
		ids[yt.Name] = yt.ID
	}
	ref := func(name string) (string, error) {
		if name == "" {
			return "", nil
		}
		id, ok := ids[name]
		if !ok {
			return "", fmt.Errorf("type %q: %w", name, ErrUnknownType)
		}
		return id, nil
	}

	reg := NewMemory()
	for _, yt := range doc.Types {
		t := NewType(yt.ID, yt.Name, yt.Table)
		t.DefaultField = yt.DefaultField
		t.SharingControlledBy = yt.SharingControlledBy
		t.CombineRecordAndCascadeSharing = yt.CombineSharing
		for _, yf := range yt.Fields {
			f, err := yf.field(ref)
			if err != nil {
				return nil, fmt.Errorf("type %s: %w", yt.Name, err)
			}
			t.AddField(f)
		}
		for _, uc := range yt.UniqueChecks {
			t.UniqueChecks = append(t.UniqueChecks, UniqueCheck{
				Name:   uc.Name,
				DBName: uc.DBName,
				TypeID: yt.ID,
				Fields: uc.Fields,
			})
		}
		if err := reg.Add(t); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

func (yf yamlField) field(ref func(string) (string, error)) (*Field, error) {
	kind, err := ParseKind(yf.Type)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", yf.Name, err)
	}
	f := &Field{Name: yf.Name, Column: yf.Column, Required: yf.Required}
	if f.Column == "" && kind.HasColumn() {
		f.Column = yf.Name
	}
	dt := DataType{Kind: kind, Length: yf.Length, DecimalPlaces: yf.DecimalPlaces, Expression: yf.Expression}
	switch kind {
	case KindReference:
		if dt.RefType, err = ref(yf.RefType); err != nil {
			return nil, fmt.Errorf("field %s: %w", yf.Name, err)
		}
	case KindInverseCollection:
		if dt.InverseType, err = ref(yf.InverseType); err != nil {
			return nil, fmt.Errorf("field %s: %w", yf.Name, err)
		}
		dt.InverseField = yf.InverseField
	case KindAssociation:
		if dt.LinkingType, err = ref(yf.LinkingType); err != nil {
			return nil, fmt.Errorf("field %s: %w", yf.Name, err)
		}
		if dt.AssociatedType, err = ref(yf.AssociatedType); err != nil {
			return nil, fmt.Errorf("field %s: %w", yf.Name, err)
		}
		dt.SelfLinkingField = yf.SelfField
		dt.ForeignLinkingField = yf.ForeignField
	case KindFormula:
		if dt.ReturnKind, err = ParseKind(yf.Returns); err != nil {
			return nil, fmt.Errorf("field %s: %w", yf.Name, err)
		}
	case KindEnum:
		if dt.Length == 0 {
			dt.Length = 255
		}
	case KindText, KindNumber, KindBoolean, KindDate, KindDateTime, KindID:
	}
	f.DataType = dt
	return f, nil
}
