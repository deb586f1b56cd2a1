// Package status parses the status strings returned by the write procedures.
//
// A status has the form CODE[:::::constraint[:::::table[:::::column]]].
package status

import (
	"errors"
	"fmt"
	"strings"
)

// Separator delimits the fields of a status string.
const Separator = ":::::"

// Codes reported by the write procedures.
const (
	InsufficientPrivilegesToEdit                  = "INSUFFICIENT_PRIVILEGES_TO_EDIT"
	InsufficientPrivilegesToDelete                = "INSUFFICIENT_PRIVILEGES_TO_DELETE"
	InsufficientPrivilegesToEditSystemImmutable   = "INSUFFICIENT_PRIVILEGES_TO_EDIT_SYSTEM_IMMUTABLE"
	InsufficientPrivilegesToDeleteSystemImmutable = "INSUFFICIENT_PRIVILEGES_TO_DELETE_SYSTEM_IMMUTABLE"
	CannotModifyAccessType                        = "CANNOT_MODIFY_ACCESS_TYPE"
)

// SQLSTATE codes passed through from the database.
const (
	UniqueViolation     = "23505"
	NotNullViolation    = "23502"
	ForeignKeyViolation = "23503"
	UndefinedTable      = "42P01"
)

// ErrMalformed is returned for status strings that do not follow the format.
var ErrMalformed = errors.New("malformed status")

// Status is a parsed status string.
type Status struct {
	Raw        string
	Code       string
	Constraint string
	Table      string
	Column     string
}

// Parse splits a status string into its fields. Fields are trimmed.
func Parse(raw string) (Status, error) {
	parts := strings.Split(raw, Separator)
	if len(parts) > 4 {
		return Status{}, fmt.Errorf("%w: %d fields in %q", ErrMalformed, len(parts), raw)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	s := Status{Raw: raw, Code: parts[0]}
	if s.Code == "" {
		return Status{}, fmt.Errorf("%w: empty status code", ErrMalformed)
	}
	if len(parts) > 1 {
		s.Constraint = parts[1]
	}
	if len(parts) > 2 {
		s.Table = parts[2]
	}
	if len(parts) > 3 {
		s.Column = parts[3]
	}
	return s, nil
}

// Kind classifies a status.
type Kind int

const (
	Uncategorized Kind = iota
	Success
	EditPrivilege
	DeletePrivilege
	EditSystemImmutablePrivilege
	DeleteSystemImmutablePrivilege
	AccessTypeImmutable
	Unique
	NotNull
	ForeignKey
	UnknownTable
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case EditPrivilege:
		return "edit privilege"
	case DeletePrivilege:
		return "delete privilege"
	case EditSystemImmutablePrivilege:
		return "edit system immutable privilege"
	case DeleteSystemImmutablePrivilege:
		return "delete system immutable privilege"
	case AccessTypeImmutable:
		return "access type immutable"
	case Unique:
		return "unique violation"
	case NotNull:
		return "not null violation"
	case ForeignKey:
		return "foreign key violation"
	case UnknownTable:
		return "unknown table"
	default:
		return "uncategorized"
	}
}

// Classify maps the status code onto a Kind, checking the success code first.
// With prefix set the success code has to be followed by the generated
// identifier, which is returned. A bare success code is Uncategorized.
func (s Status) Classify(success string, prefix bool) (Kind, string) {
	if prefix {
		if success != "" && len(s.Code) > len(success) && strings.HasPrefix(s.Code, success) {
			return Success, s.Code[len(success):]
		}
	} else if s.Code == success || s.Code == "("+success+")" {
		return Success, ""
	}

	switch s.Code {
	case InsufficientPrivilegesToEdit:
		return EditPrivilege, ""
	case InsufficientPrivilegesToDelete:
		return DeletePrivilege, ""
	case InsufficientPrivilegesToEditSystemImmutable:
		return EditSystemImmutablePrivilege, ""
	case InsufficientPrivilegesToDeleteSystemImmutable:
		return DeleteSystemImmutablePrivilege, ""
	case CannotModifyAccessType:
		return AccessTypeImmutable, ""
	case UniqueViolation:
		return Unique, ""
	case NotNullViolation:
		return NotNull, ""
	case ForeignKeyViolation:
		return ForeignKey, ""
	case UndefinedTable:
		return UnknownTable, ""
	default:
		return Uncategorized, ""
	}
}

// ParseUniqueCheckName extracts the type id from a unique check constraint
// name of the form <prefix><typeID>_<suffix>.
func ParseUniqueCheckName(prefix, name string) (string, error) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok {
		return "", fmt.Errorf("%w: constraint %q is not a unique check", ErrMalformed, name)
	}
	typeID, suffix, ok := strings.Cut(rest, "_")
	if !ok || typeID == "" || suffix == "" {
		return "", fmt.Errorf("%w: constraint %q is not a unique check", ErrMalformed, name)
	}
	return typeID, nil
}
