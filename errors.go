package recql

import (
	"fmt"

	"github.com/zoobzio/recql/schema"
)

// PrivilegeError reports that the caller may not modify a record.
type PrivilegeError struct {
	// Code is the status code returned by the write procedure.
	Code    string
	Message string
}

func (e *PrivilegeError) Error() string {
	return fmt.Sprintf("insufficient privileges: %s", e.Message)
}

// AccessTypeError reports an attempt to change the access type of a record.
type AccessTypeError struct{}

func (e *AccessTypeError) Error() string {
	return "cannot modify access type of record"
}

// UniqueViolationError reports a violated unique check.
type UniqueViolationError struct {
	Check *schema.UniqueCheck
	// Record is the record being written, when known.
	Record *Record
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique check %s violated on fields %v", e.Check.Name, e.Check.Fields)
}

// NotNullViolationError reports a missing required value.
type NotNullViolationError struct {
	Table  string
	Column string
}

func (e *NotNullViolationError) Error() string {
	return fmt.Sprintf("column %s.%s cannot be null", e.Table, e.Column)
}

// ForeignKeyViolationError reports a reference to a missing record.
type ForeignKeyViolationError struct {
	Table      string
	Constraint string
}

func (e *ForeignKeyViolationError) Error() string {
	return fmt.Sprintf("foreign key %s on table %s violated", e.Constraint, e.Table)
}

// UnknownTableError reports that the statement referenced a missing table.
type UnknownTableError struct {
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("unknown table %s", e.Table)
}

// UncategorizedError reports a write failure with no specific mapping.
type UncategorizedError struct {
	Status    string
	Statement string
	Err       error
}

func (e *UncategorizedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("uncategorized write failure %q: %v\nstatement: %s", e.Status, e.Err, e.Statement)
	}
	return fmt.Sprintf("uncategorized write failure %q\nstatement: %s", e.Status, e.Statement)
}

func (e *UncategorizedError) Unwrap() error { return e.Err }

// UnparseableConstraintError reports a unique violation whose constraint name
// cannot be resolved to a unique check.
type UnparseableConstraintError struct {
	Constraint string
	Err        error
}

func (e *UnparseableConstraintError) Error() string {
	return fmt.Sprintf("cannot resolve unique check from constraint %q: %v", e.Constraint, e.Err)
}

func (e *UnparseableConstraintError) Unwrap() error { return e.Err }
