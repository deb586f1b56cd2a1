package postgres

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zoobzio/recql/internal/types"
	"github.com/zoobzio/recql/schema"
)

// timestampLayout matches "timestamp without time zone" literals.
const timestampLayout = "2006-01-02 15:04:05.000"

// quoteLiteral renders a string constant. Standard conforming strings are
// assumed, so only single quotes need escaping.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// literal renders v as a constant of the field's value kind.
func literal(field *schema.Field, v any) (string, error) {
	if v == nil {
		return "NULL", nil
	}
	kind := field.DataType.ValueKind()
	switch kind {
	case schema.KindNumber:
		return numberLiteral(field, v)
	case schema.KindBoolean:
		return booleanLiteral(field, v)
	case schema.KindDate, schema.KindDateTime:
		return timeLiteral(field, v)
	case schema.KindText, schema.KindEnum, schema.KindID, schema.KindReference:
		s, err := stringValue(v)
		if err != nil {
			return "", invalidValue(field, v)
		}
		return quoteLiteral(s), nil
	case schema.KindInverseCollection, schema.KindAssociation, schema.KindFormula:
		return "", types.Errorf(types.CodeInvalidValue, "field %s of type %s cannot be compared with a value", field.Name, kind)
	default:
		return "", types.Errorf(types.CodeInvalidValue, "field %s has unknown type %s", field.Name, kind)
	}
}

// patternLiteral renders a LIKE pattern.
func patternLiteral(v any) (string, error) {
	s, err := stringValue(v)
	if err != nil {
		return "", types.Errorf(types.CodeInvalidValue, "like pattern must be a string, got %T", v)
	}
	return quoteLiteral(s), nil
}

func stringValue(v any) (string, error) {
	switch val := v.(type) {
	case string:
		if strings.ContainsRune(val, 0) {
			return "", fmt.Errorf("string contains NUL")
		}
		return val, nil
	case fmt.Stringer:
		return stringValue(val.String())
	default:
		return "", fmt.Errorf("not a string: %T", v)
	}
}

func numberLiteral(field *schema.Field, v any) (string, error) {
	switch n := v.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10), nil
	case int8:
		return strconv.FormatInt(int64(n), 10), nil
	case int16:
		return strconv.FormatInt(int64(n), 10), nil
	case int32:
		return strconv.FormatInt(int64(n), 10), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case uint:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint64:
		return strconv.FormatUint(n, 10), nil
	case float32:
		return floatLiteral(field, float64(n))
	case float64:
		return floatLiteral(field, n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return "", invalidValue(field, v)
		}
		return floatLiteral(field, f)
	default:
		return "", invalidValue(field, v)
	}
}

func floatLiteral(field *schema.Field, f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", invalidValue(field, f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func booleanLiteral(field *schema.Field, v any) (string, error) {
	switch b := v.(type) {
	case bool:
		if b {
			return "true", nil
		}
		return "false", nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return "", invalidValue(field, v)
		}
		return booleanLiteral(field, parsed)
	default:
		return "", invalidValue(field, v)
	}
}

func timeLiteral(field *schema.Field, v any) (string, error) {
	switch t := v.(type) {
	case time.Time:
		return quoteLiteral(t.Format(timestampLayout)), nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, timestampLayout, "2006-01-02 15:04:05", time.DateOnly} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return quoteLiteral(parsed.Format(timestampLayout)), nil
			}
		}
		return "", invalidValue(field, v)
	default:
		return "", invalidValue(field, v)
	}
}

func invalidValue(field *schema.Field, v any) error {
	return types.Errorf(types.CodeInvalidValue, "invalid value %v (%T) for %s field %s", v, v, field.DataType.ValueKind(), field.Name)
}
