package types

import "github.com/zoobzio/recql/schema"

// Assignment sets a field to a value in an INSERT or UPDATE.
type Assignment struct {
	Field *schema.Field
	Value any
}

// MutationKind is the kind of write statement.
type MutationKind int

const (
	MutationInsert MutationKind = iota + 1
	MutationUpdate
	MutationDelete
)

func (k MutationKind) String() string {
	switch k {
	case MutationInsert:
		return "insert"
	case MutationUpdate:
		return "update"
	case MutationDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Mutation is a rendered write. SQL calls the write procedure with Statement
// as its single argument.
type Mutation struct {
	Kind      MutationKind
	Type      *schema.Type
	Statement string
	SQL       string
}
