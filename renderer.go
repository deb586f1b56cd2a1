package recql

import (
	"github.com/zoobzio/recql/internal/types"
	"github.com/zoobzio/recql/schema"
)

// Renderer defines the interface for SQL dialect-specific rendering.
type Renderer interface {
	// Compile renders a query and describes the rows it returns.
	Compile(q *types.Query) (*types.Compiled, error)

	// RenderInsert renders an insert of one record.
	RenderInsert(t *schema.Type, values []types.Assignment) (*types.Mutation, error)

	// RenderUpdate renders an update of the records matched by where.
	RenderUpdate(t *schema.Type, values []types.Assignment, where *types.Query) (*types.Mutation, error)

	// RenderDelete renders a delete of the records with the given ids.
	RenderDelete(t *schema.Type, ids []string) (*types.Mutation, error)
}

// Assignment sets a field to a value in a write statement.
type Assignment = types.Assignment

// Mutation is a rendered write statement.
type Mutation = types.Mutation
