package types

import (
	"errors"
	"testing"

	"github.com/zoobzio/recql/schema"
	rtesting "github.com/zoobzio/recql/testing"
)

func TestRestrictionValidate(t *testing.T) {
	child := &Restriction{Operator: EQ, Property: "name", Value: "x"}
	sub := &Query{}

	tests := []struct {
		name        string
		restriction *Restriction
		valid       bool
	}{
		{"comparison", &Restriction{Operator: EQ, Property: "age", Value: 3}, true},
		{"comparison without value", &Restriction{Operator: GT, Property: "age"}, false},
		{"comparison without property", &Restriction{Operator: LT, Value: 3}, false},
		{"comparison with values", &Restriction{Operator: EQ, Property: "age", Value: 3, Values: []any{4}}, false},
		{"like", &Restriction{Operator: LIKE, Property: "name", Value: "a%"}, true},
		{"in values", &Restriction{Operator: IN, Property: "id", Values: []any{"a", "b"}}, true},
		{"in subquery", &Restriction{Operator: IN, Property: "father", Value: sub}, true},
		{"in empty", &Restriction{Operator: IN, Property: "id", Values: []any{}}, false},
		{"in both", &Restriction{Operator: IN, Property: "id", Values: []any{"a"}, Value: sub}, false},
		{"in scalar", &Restriction{Operator: IN, Property: "id", Value: "a"}, false},
		{"isnull", &Restriction{Operator: ISNULL, Property: "father"}, true},
		{"isnull with value", &Restriction{Operator: ISNULL, Property: "father", Value: 1}, false},
		{"and", &Restriction{Operator: AND, Children: []*Restriction{child, child}}, true},
		{"and single child", &Restriction{Operator: OR, Children: []*Restriction{child}}, true},
		{"and empty", &Restriction{Operator: AND}, false},
		{"and with property", &Restriction{Operator: AND, Property: "x", Children: []*Restriction{child}}, false},
		{"not", &Restriction{Operator: NOT, Children: []*Restriction{child}}, true},
		{"not two children", &Restriction{Operator: NOT, Children: []*Restriction{child, child}}, false},
		{"unknown operator", &Restriction{Operator: "between", Property: "age", Value: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.restriction.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatal("expected error")
				}
				if !IsCode(err, CodeInvalidRestriction) {
					t.Errorf("expected INVALID_RESTRICTION, got %v", err)
				}
			}
		})
	}
}

func TestRestrictionProperties(t *testing.T) {
	r := &Restriction{Operator: OR, Children: []*Restriction{
		{Operator: EQ, Property: "name", Value: "a"},
		{Operator: NOT, Children: []*Restriction{{Operator: ISNULL, Property: "father.name"}}},
	}}
	got := r.Properties()
	if len(got) != 2 || got[0] != "name" || got[1] != "father.name" {
		t.Errorf("unexpected properties %v", got)
	}
}

func TestParseOperator(t *testing.T) {
	op, ok := ParseOperator("ILike")
	if !ok || op != ILIKE {
		t.Errorf("ParseOperator(ILike) = %v, %v", op, ok)
	}
	if _, ok := ParseOperator("between"); ok {
		t.Error("expected unknown operator")
	}
	if NE.SQL() != "<>" || ISNULL.SQL() != "IS NULL" {
		t.Error("unexpected operator SQL")
	}
	if !EQ.IsComparison() || EQ.IsComposite() || !NOT.IsComposite() {
		t.Error("unexpected operator classification")
	}
}

func TestNormalizeAggregateName(t *testing.T) {
	tests := map[string]string{
		"COUNT(id)":      "count(id)",
		"Sum(Age)":       "sum(Age)",
		"max(father.id)": "max(father.id)",
		"plain":          "plain",
	}
	for in, want := range tests {
		if got := NormalizeAggregateName(in); got != want {
			t.Errorf("NormalizeAggregateName(%q) = %q, want %q", in, got, want)
		}
	}
	call := AggregateCall{Function: AggCount, Property: "id"}
	if call.Name() != "count(id)" {
		t.Errorf("unexpected name %q", call.Name())
	}
}

func TestPropertySet(t *testing.T) {
	var s PropertySet
	if !s.Add("id") || !s.Add("name") || s.Add("id") {
		t.Fatal("unexpected Add results")
	}
	s.Remove("id")
	s.Remove("missing")
	if s.Has("id") || s.Len() != 1 || s.Items()[0] != "name" {
		t.Errorf("unexpected set %v", s.Items())
	}
}

func newPigeonQuery(t *testing.T, access Access) *Query {
	t.Helper()
	reg := rtesting.Registry()
	return NewQuery(rtesting.MustType(t, reg, "Pigeon"), reg, access)
}

func TestQueryAliases(t *testing.T) {
	q := newPigeonQuery(t, nil)

	if items := q.Properties.Items(); len(items) != 1 || items[0] != "id" {
		t.Fatalf("new query should select id, got %v", items)
	}
	if q.Grouping() != GroupingNone {
		t.Error("expected no grouping")
	}

	if err := q.RegisterAlias("father", "father_1", schema.KindReference, &DirectJoin{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.RegisterAlias("children", "children_2", schema.KindInverseCollection, &DirectJoin{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := q.RegisterAlias("father", "other", schema.KindReference, &DirectJoin{}); !IsCode(err, CodeDuplicateAlias) {
		t.Errorf("expected DUPLICATE_ALIAS for property, got %v", err)
	}
	if err := q.RegisterAlias("mother", "father_1", schema.KindReference, &DirectJoin{}); !IsCode(err, CodeDuplicateAlias) {
		t.Errorf("expected DUPLICATE_ALIAS for alias, got %v", err)
	}

	if a, _ := q.AliasFor("father"); a != "father_1" {
		t.Errorf("AliasFor(father) = %q", a)
	}
	if p, _ := q.PropertyFor("children_2"); p != "children" {
		t.Errorf("PropertyFor(children_2) = %q", p)
	}
	if len(q.Joins) != 2 {
		t.Errorf("expected 2 joins, got %d", len(q.Joins))
	}

	if !q.IsInverseCollection("children.name") || q.IsInverseCollection("father.name") {
		t.Error("unexpected inverse collection classification")
	}
	if q.IsAssociation("children") {
		t.Error("children is not an association")
	}
	if !q.HasCollections() || q.HasMultipleCollections() {
		t.Error("expected exactly one collection")
	}
	if q.Grouping() != GroupingAllNonCollectionFields {
		t.Error("collections should group by all non-collection fields")
	}

	q.GroupBy.Add("name")
	if q.Grouping() != GroupingUserDefined || !q.IsAggregate() {
		t.Error("group by should be user defined")
	}
}

func TestQueryCollectionPath(t *testing.T) {
	q := newPigeonQuery(t, nil)
	_ = q.RegisterAlias("children", "children_1", schema.KindInverseCollection, &DirectJoin{})
	_ = q.RegisterAlias("children.eggs", "eggs_2", schema.KindInverseCollection, &DirectJoin{})

	path, ok := q.CollectionPath("children.eggs.weight")
	if !ok || path != "children" {
		t.Errorf("CollectionPath = %q, %v", path, ok)
	}
	if got := q.CollectionPaths("children.eggs.weight"); len(got) != 2 {
		t.Errorf("expected two collections on path, got %v", got)
	}
	if _, ok := q.CollectionPath("father.name"); ok {
		t.Error("father.name is not in a collection")
	}
	if !q.HasMultipleCollections() {
		t.Error("expected multiple collections")
	}
}

func TestApplySharing(t *testing.T) {
	tests := []struct {
		name    string
		access  Access
		sharing bool
		err     bool
	}{
		{"no access", nil, false, false},
		{"read all", rtesting.FullAccess("u", rtesting.PigeonID), false, false},
		{"read shared", rtesting.PartialAccess("u", rtesting.PigeonID), true, false},
		{"no grant", rtesting.PartialAccess("u", rtesting.EggID), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newPigeonQuery(t, tt.access)
			sharing, err := q.ApplySharing(rtesting.PigeonID)
			if sharing != tt.sharing {
				t.Errorf("sharing = %v, want %v", sharing, tt.sharing)
			}
			if tt.err != IsCode(err, CodeInsufficientPrivileges) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(CodeIncompleteMetadata, cause, "type %s", "Pigeon")
	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause")
	}
	if err.Error() != "INCOMPLETE_METADATA: type Pigeon: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if IsCode(cause, CodeIncompleteMetadata) {
		t.Error("plain error has no code")
	}
}
