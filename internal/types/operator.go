package types

import "strings"

// Operator is a restriction operator.
type Operator string

const (
	// Comparison operators.
	EQ    Operator = "eq"
	NE    Operator = "ne"
	GT    Operator = "gt"
	GE    Operator = "ge"
	LT    Operator = "lt"
	LE    Operator = "le"
	LIKE  Operator = "like"
	ILIKE Operator = "ilike"

	IN     Operator = "in"
	ISNULL Operator = "isnull"

	// Composite operators.
	AND Operator = "and"
	OR  Operator = "or"
	NOT Operator = "not"
)

// ParseOperator returns the operator with the given name, ignoring case.
func ParseOperator(name string) (Operator, bool) {
	op := Operator(strings.ToLower(name))
	switch op {
	case EQ, NE, GT, GE, LT, LE, LIKE, ILIKE, IN, ISNULL, AND, OR, NOT:
		return op, true
	default:
		return "", false
	}
}

// SQL returns the SQL token for the operator.
func (op Operator) SQL() string {
	switch op {
	case EQ:
		return "="
	case NE:
		return "<>"
	case GT:
		return ">"
	case GE:
		return ">="
	case LT:
		return "<"
	case LE:
		return "<="
	case LIKE:
		return "LIKE"
	case ILIKE:
		return "ILIKE"
	case IN:
		return "IN"
	case ISNULL:
		return "IS NULL"
	case AND:
		return "AND"
	case OR:
		return "OR"
	case NOT:
		return "NOT"
	default:
		return string(op)
	}
}

// IsComparison reports whether op compares a property with a single value.
func (op Operator) IsComparison() bool {
	switch op {
	case EQ, NE, GT, GE, LT, LE, LIKE, ILIKE:
		return true
	default:
		return false
	}
}

// IsComposite reports whether op combines child restrictions.
func (op Operator) IsComposite() bool {
	return op == AND || op == OR || op == NOT
}
