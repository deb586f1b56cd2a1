package postgres

import (
	"strings"

	"github.com/zoobzio/recql/internal/types"
	"github.com/zoobzio/recql/schema"
)

// renderWhere renders the conjunction of the query's top-level restrictions.
func (r *Renderer) renderWhere(ctx *renderContext) (string, error) {
	parts := make([]string, 0, len(ctx.query.Restrictions))
	for _, res := range ctx.query.Restrictions {
		part, err := r.renderRestriction(ctx, res)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " AND "), nil
}

// renderRestriction renders one restriction node and its children.
func (r *Renderer) renderRestriction(ctx *renderContext, res *types.Restriction) (string, error) {
	if err := res.Validate(); err != nil {
		return "", err
	}

	switch res.Operator {
	case types.AND, types.OR:
		parts := make([]string, 0, len(res.Children))
		for _, child := range res.Children {
			part, err := r.renderRestriction(ctx, child)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		return "(" + strings.Join(parts, " "+res.Operator.SQL()+" ") + ")", nil

	case types.NOT:
		child, err := r.renderRestriction(ctx, res.Children[0])
		if err != nil {
			return "", err
		}
		return "(NOT " + child + ")", nil

	case types.ISNULL:
		prop, err := r.propertySQL(ctx, res.Property)
		if err != nil {
			return "", err
		}
		return "(" + prop + " IS NULL)", nil

	case types.IN:
		prop, err := r.propertySQL(ctx, res.Property)
		if err != nil {
			return "", err
		}
		field, err := r.restrictedField(ctx, res.Property)
		if err != nil {
			return "", err
		}
		if sub, ok := res.Subquery(); ok {
			subSQL, err := r.renderSubquery(ctx, field, sub)
			if err != nil {
				return "", err
			}
			return "(" + prop + " IN (" + subSQL + "))", nil
		}
		values := make([]string, 0, len(res.Values))
		for _, v := range res.Values {
			lit, err := literal(field, v)
			if err != nil {
				return "", err
			}
			values = append(values, lit)
		}
		return "(" + prop + " IN (" + strings.Join(values, ", ") + "))", nil

	case types.EQ, types.NE, types.GT, types.GE, types.LT, types.LE, types.LIKE, types.ILIKE:
		prop, err := r.propertySQL(ctx, res.Property)
		if err != nil {
			return "", err
		}
		var lit string
		if res.Operator == types.LIKE || res.Operator == types.ILIKE {
			lit, err = patternLiteral(res.Value)
		} else {
			var field *schema.Field
			if field, err = r.restrictedField(ctx, res.Property); err == nil {
				lit, err = literal(field, res.Value)
			}
		}
		if err != nil {
			return "", err
		}
		return "(" + prop + " " + res.Operator.SQL() + " " + lit + ")", nil

	default:
		return "", types.Errorf(types.CodeInvalidRestriction, "unsupported operator %q", res.Operator)
	}
}

// restrictedField resolves the field a restriction compares against.
func (r *Renderer) restrictedField(ctx *renderContext, property string) (*schema.Field, error) {
	_, f, err := schema.Resolve(ctx.query.Registry, ctx.query.Type, property)
	if err != nil {
		return nil, unknownProperty(property, err)
	}
	return f, nil
}

// renderSubquery compiles the sub-query of an IN restriction on field.
func (r *Renderer) renderSubquery(ctx *renderContext, field *schema.Field, sub *types.Query) (string, error) {
	child, err := ctx.withSubquery(sub)
	if err != nil {
		return "", err
	}
	if err := validateSubquery(field, sub); err != nil {
		return "", err
	}
	compiled, err := r.compile(child)
	if err != nil {
		return "", err
	}
	return compiled.SQL, nil
}

// validateSubquery checks that sub selects a single field comparable with field.
func validateSubquery(field *schema.Field, sub *types.Query) error {
	selected := sub.Nested.Items()
	for _, p := range sub.Properties.Items() {
		if p != schema.IDField || sub.IDExplicit {
			selected = append(selected, p)
		}
	}
	if len(selected) != 1 {
		return types.Errorf(types.CodeSubqueryArity, "sub-query must select exactly one property, got %d", len(selected))
	}
	_, subField, err := schema.Resolve(sub.Registry, sub.Type, selected[0])
	if err != nil {
		return unknownProperty(selected[0], err)
	}
	if field.DataType.Kind == schema.KindFormula || subField.DataType.Kind == schema.KindFormula {
		return types.Errorf(types.CodeInvalidRestriction, "formula fields cannot be compared with a sub-query")
	}
	if !comparableKinds(field.DataType.Kind, subField.DataType.Kind) {
		return types.Errorf(types.CodeInvalidRestriction, "cannot compare %s field %s with %s sub-query field %s",
			field.DataType.Kind, field.Name, subField.DataType.Kind, subField.Name)
	}
	return nil
}

func comparableKinds(a, b schema.Kind) bool {
	if a == b {
		return true
	}
	ids := func(k schema.Kind) bool { return k == schema.KindID || k == schema.KindReference }
	return ids(a) && ids(b)
}
