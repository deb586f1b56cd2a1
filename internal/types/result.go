package types

import "github.com/zoobzio/recql/schema"

// Compiled is the SQL text of a query and the shape of the rows it returns.
type Compiled struct {
	SQL   string
	Shape *ResultShape
}

// NestedColumn is a selected nested property.
type NestedColumn struct {
	Property string
	Alias    string
	// Collection is the collection path the property is aggregated under,
	// empty when the property is a plain joined column.
	Collection string
}

// AggregateColumn is a selected aggregate call.
type AggregateColumn struct {
	Call  AggregateCall
	Alias string
}

// ResultShape describes how result columns map back onto records.
type ResultShape struct {
	Type       *schema.Type
	Registry   schema.Registry
	Properties []string
	Nested     []NestedColumn
	Aggregates []AggregateColumn
	GroupBy    []string
	// Collections are the aggregated collection paths, in selection order.
	Collections []string
	// Deduplicate is set when collections repeat items and must be collapsed
	// by their key column.
	Deduplicate bool
	Aggregate   bool
}

// EmptyColumn names the column flagging an empty collection.
func EmptyColumn(collection string) string {
	return collection + "_empty"
}

// DistinctItemsColumn names the column carrying a collection's duplication ratio.
func DistinctItemsColumn(collection string) string {
	return collection + "_distinct_items"
}

// KeysColumn names the column carrying the join key of every collection item,
// aligned with the collection's value arrays.
func KeysColumn(collection string) string {
	return collection + "_keys"
}
