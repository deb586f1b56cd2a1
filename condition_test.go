package recql

import (
	"testing"

	"github.com/zoobzio/recql/internal/types"
	rtesting "github.com/zoobzio/recql/testing"
)

func TestRestrictionFactories(t *testing.T) {
	tests := []struct {
		name     string
		r        *Restriction
		operator Operator
	}{
		{"eq", Eq("age", 1), EQ},
		{"ne", Ne("age", 1), NE},
		{"gt", Gt("age", 1), GT},
		{"ge", Ge("age", 1), GE},
		{"lt", Lt("age", 1), LT},
		{"le", Le("age", 1), LE},
		{"like", Like("name", "a%"), LIKE},
		{"ilike", ILike("name", "a%"), ILIKE},
		{"in", In("id", "a"), IN},
		{"isnull", IsNull("father"), ISNULL},
		{"not", Not(IsNull("father")), NOT},
		{"and", And(Eq("age", 1), Eq("age", 2)), AND},
		{"or", Or(Eq("age", 1)), OR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.r.Operator != tt.operator {
				t.Errorf("expected %s, got %s", tt.operator, tt.r.Operator)
			}
			if err := tt.r.Validate(); err != nil {
				t.Errorf("factory produced an invalid restriction: %v", err)
			}
		})
	}
}

func TestIn_NoValues(t *testing.T) {
	r := In("id")
	if r.Values == nil {
		t.Fatal("expected an empty value list")
	}
	if !types.IsCode(r.Validate(), types.CodeInvalidRestriction) {
		t.Error("empty IN should be invalid")
	}
}

func TestInSubquery(t *testing.T) {
	reg := rtesting.Registry()
	c := New(reg, "Pigeon")
	sub := c.Subquery("Pigeon").Select("id")
	r := InSubquery("father", sub)

	q, ok := r.Subquery()
	if !ok || !q.Subquery {
		t.Fatal("expected a sub-query value")
	}
	if err := r.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
