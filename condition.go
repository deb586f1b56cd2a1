package recql

import "github.com/zoobzio/recql/internal/types"

func compare(op types.Operator, property string, value any) *Restriction {
	return &types.Restriction{Operator: op, Property: property, Value: value}
}

// Eq restricts property to equal value.
func Eq(property string, value any) *Restriction { return compare(types.EQ, property, value) }

// Ne restricts property to differ from value.
func Ne(property string, value any) *Restriction { return compare(types.NE, property, value) }

// Gt restricts property to be greater than value.
func Gt(property string, value any) *Restriction { return compare(types.GT, property, value) }

// Ge restricts property to be greater than or equal to value.
func Ge(property string, value any) *Restriction { return compare(types.GE, property, value) }

// Lt restricts property to be less than value.
func Lt(property string, value any) *Restriction { return compare(types.LT, property, value) }

// Le restricts property to be less than or equal to value.
func Le(property string, value any) *Restriction { return compare(types.LE, property, value) }

// Like matches property against a LIKE pattern.
func Like(property, pattern string) *Restriction { return compare(types.LIKE, property, pattern) }

// ILike matches property against a case-insensitive LIKE pattern.
func ILike(property, pattern string) *Restriction { return compare(types.ILIKE, property, pattern) }

// In restricts property to one of values.
func In(property string, values ...any) *Restriction {
	if values == nil {
		values = []any{}
	}
	return &types.Restriction{Operator: types.IN, Property: property, Values: values}
}

// InSubquery restricts property to the values selected by sub.
func InSubquery(property string, sub *Criteria) *Restriction {
	r := &types.Restriction{Operator: types.IN, Property: property}
	if sub != nil {
		r.Value = sub.subqueryValue()
	}
	return r
}

// IsNull restricts property to be null.
func IsNull(property string) *Restriction {
	return &types.Restriction{Operator: types.ISNULL, Property: property}
}

// Not negates a restriction.
func Not(r *Restriction) *Restriction {
	return &types.Restriction{Operator: types.NOT, Children: []*types.Restriction{r}}
}

// And conjoins restrictions.
func And(rs ...*Restriction) *Restriction {
	return &types.Restriction{Operator: types.AND, Children: rs}
}

// Or disjoins restrictions.
func Or(rs ...*Restriction) *Restriction {
	return &types.Restriction{Operator: types.OR, Children: rs}
}
