// Package recql compiles security-aware queries over a metadata-defined
// schema into PostgreSQL, executes them and maps rows back into records.
//
// # Basic Usage
//
// A Criteria names a base type, the properties to select and the
// restrictions to apply. Nested properties follow relationships:
//
//	c := recql.New(registry, "Pigeon").
//		AddProperty("id, name, age, father.name").
//		Add(recql.Eq("age", 3)).
//		OrderBy("name", recql.ASC).
//		Limit(10)
//
//	engine := recql.NewEngine(pool, postgres.New(), registry)
//	records, err := engine.Execute(ctx, c)
//
// # Row-Level Security
//
// When a Criteria carries an Access, every type the caller may only partially
// read is joined against the sharing relation so that only records shared with
// the caller are returned.
//
// # Collections
//
// Nested properties crossing inverse collections or associations are
// aggregated into arrays, one row per base record. Records expose them as
// slices of nested records.
//
// # Writes
//
// Insert, Update and Delete run through stored procedures that report their
// outcome as a status string. Failures are mapped onto typed errors such as
// UniqueViolationError and PrivilegeError.
package recql

import "github.com/zoobzio/recql/internal/types"

// Query is the state built by a Criteria.
type Query = types.Query

// Compiled holds the SQL of a compiled query and the shape of its rows.
type Compiled = types.Compiled

// Restriction is a node of a filter expression.
type Restriction = types.Restriction

// Access is the caller identity used for row-level security.
type Access = types.Access

// JoinStructure is a join registered on a Criteria.
type JoinStructure = types.JoinStructure

// DirectJoin joins a table on a single column pair.
type DirectJoin = types.DirectJoin

// AssociationJoin joins an associated type through a linking table.
type AssociationJoin = types.AssociationJoin

// Direction represents sort direction.
type Direction = types.Direction

// Re-export direction constants for public API.
const (
	ASC  = types.ASC
	DESC = types.DESC
)

// Operator is a restriction operator.
type Operator = types.Operator

// Re-export operator constants for public API.
const (
	EQ     = types.EQ
	NE     = types.NE
	GT     = types.GT
	GE     = types.GE
	LT     = types.LT
	LE     = types.LE
	LIKE   = types.LIKE
	ILIKE  = types.ILIKE
	IN     = types.IN
	ISNULL = types.ISNULL
	AND    = types.AND
	OR     = types.OR
	NOT    = types.NOT
)

// AggregateFunc is an aggregate function name.
type AggregateFunc = types.AggregateFunc

// Re-export aggregate function constants for public API.
const (
	AggCount = types.AggCount
	AggSum   = types.AggSum
	AggMin   = types.AggMin
	AggMax   = types.AggMax
	AggAvg   = types.AggAvg
)

// Error is a query-shape or read-permission error.
type Error = types.Error

// Code classifies an Error.
type Code = types.Code

// Re-export error codes for public API.
const (
	CodeEmptySelect            = types.CodeEmptySelect
	CodeSubqueryArity          = types.CodeSubqueryArity
	CodeUnsupportedOrderBy     = types.CodeUnsupportedOrderBy
	CodeDuplicateAlias         = types.CodeDuplicateAlias
	CodeInvalidAlias           = types.CodeInvalidAlias
	CodeInvalidRestriction     = types.CodeInvalidRestriction
	CodeUnknownProperty        = types.CodeUnknownProperty
	CodeInvalidValue           = types.CodeInvalidValue
	CodeResultShape            = types.CodeResultShape
	CodeInsufficientPrivileges = types.CodeInsufficientPrivileges
	CodeIncompleteMetadata     = types.CodeIncompleteMetadata
	CodeSubqueryDepth          = types.CodeSubqueryDepth
)

// IsCode reports whether err is an Error with the given code.
func IsCode(err error, code Code) bool {
	return types.IsCode(err, code)
}
