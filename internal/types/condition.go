package types

import "fmt"

// Restriction is a node of a boolean filter expression.
//
// Comparison nodes carry Property and Value. IN nodes carry Property and either
// Values or a *Query in Value. Composite nodes carry Children only.
type Restriction struct {
	Operator Operator
	Property string
	Value    any
	Values   []any
	Children []*Restriction
}

// Subquery returns the sub-query of an IN restriction.
func (r *Restriction) Subquery() (*Query, bool) {
	q, ok := r.Value.(*Query)
	return q, ok && q != nil
}

// Validate checks that the node carries exactly the operands its operator needs.
// Children are not validated.
func (r *Restriction) Validate() error {
	if r == nil {
		return Errorf(CodeInvalidRestriction, "nil restriction")
	}
	switch r.Operator {
	case AND, OR:
		if r.Value != nil || r.Values != nil || r.Property != "" {
			return Errorf(CodeInvalidRestriction, "%s restriction cannot carry a value", r.Operator)
		}
		if len(r.Children) == 0 {
			return Errorf(CodeInvalidRestriction, "%s restriction requires at least one child", r.Operator)
		}
	case NOT:
		if r.Value != nil || r.Values != nil || r.Property != "" {
			return Errorf(CodeInvalidRestriction, "not restriction cannot carry a value")
		}
		if len(r.Children) != 1 {
			return Errorf(CodeInvalidRestriction, "not restriction requires exactly one child, got %d", len(r.Children))
		}
	case EQ, NE, GT, GE, LT, LE, LIKE, ILIKE:
		if r.Property == "" || r.Value == nil {
			return Errorf(CodeInvalidRestriction, "%s restriction requires a property and a value", r.Operator)
		}
		if r.Values != nil || len(r.Children) > 0 {
			return Errorf(CodeInvalidRestriction, "%s restriction accepts a single value", r.Operator)
		}
	case IN:
		if r.Property == "" || len(r.Children) > 0 {
			return Errorf(CodeInvalidRestriction, "in restriction requires a property")
		}
		_, isSub := r.Subquery()
		valueList := len(r.Values) > 0 && r.Value == nil
		subquery := r.Values == nil && isSub
		if !valueList && !subquery {
			return Errorf(CodeInvalidRestriction, "in restriction on %s requires either a value list or a sub-query", r.Property)
		}
	case ISNULL:
		if r.Property == "" || r.Value != nil || r.Values != nil || len(r.Children) > 0 {
			return Errorf(CodeInvalidRestriction, "isnull restriction requires a property and no value")
		}
	default:
		return Errorf(CodeInvalidRestriction, "unsupported operator %q", r.Operator)
	}
	return nil
}

// Properties returns every property path referenced by the tree.
// Properties of sub-queries are not included.
func (r *Restriction) Properties() []string {
	var out []string
	var walk func(*Restriction)
	walk = func(n *Restriction) {
		if n == nil {
			return
		}
		if n.Property != "" {
			out = append(out, n.Property)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(r)
	return out
}

func (r *Restriction) String() string {
	switch {
	case r.Operator.IsComposite():
		return fmt.Sprintf("%s%v", r.Operator, r.Children)
	case r.Values != nil:
		return fmt.Sprintf("%s %s %v", r.Property, r.Operator, r.Values)
	default:
		return fmt.Sprintf("%s %s %v", r.Property, r.Operator, r.Value)
	}
}
