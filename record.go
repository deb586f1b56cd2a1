package recql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zoobzio/recql/internal/types"
	"github.com/zoobzio/recql/schema"
)

// Record is a row of a type. Values of reference fields are nested records,
// values of collection fields are slices of nested records.
type Record struct {
	Type   *schema.Type
	fields map[string]any
}

// NewRecord creates an empty record of type t.
func NewRecord(t *schema.Type) *Record {
	return &Record{Type: t, fields: make(map[string]any)}
}

// ID returns the record identifier, or "" when it is not set.
func (r *Record) ID() string {
	id, _ := r.fields[schema.IDField].(string)
	return id
}

// SetID sets the record identifier.
func (r *Record) SetID(id string) *Record {
	r.fields[schema.IDField] = id
	return r
}

// Set assigns a value to a field of this record. Field names are case-insensitive.
func (r *Record) Set(field string, value any) *Record {
	r.fields[strings.ToLower(field)] = value
	return r
}

// Has reports whether the field has been set.
func (r *Record) Has(field string) bool {
	_, ok := r.fields[strings.ToLower(field)]
	return ok
}

// Get returns the value at a dot path. Paths may cross references but not collections.
func (r *Record) Get(path string) (any, bool) {
	segments := strings.Split(strings.ToLower(path), ".")
	cur := r
	for i, seg := range segments {
		v, ok := cur.fields[seg]
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return v, true
		}
		next, ok := v.(*Record)
		if !ok || next == nil {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// Collection returns the records of a collection field.
func (r *Record) Collection(path string) []*Record {
	v, _ := r.Get(path)
	items, _ := v.([]*Record)
	return items
}

// FieldNames returns the names of the set fields, sorted.
func (r *Record) FieldNames() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Map converts the record into nested maps and slices.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, len(r.fields))
	for name, v := range r.fields {
		switch val := v.(type) {
		case *Record:
			if val != nil {
				out[name] = val.Map()
			} else {
				out[name] = nil
			}
		case []*Record:
			items := make([]map[string]any, len(val))
			for i, item := range val {
				items[i] = item.Map()
			}
			out[name] = items
		default:
			out[name] = v
		}
	}
	return out
}

func (r *Record) child(name string, t *schema.Type) *Record {
	if existing, ok := r.fields[name].(*Record); ok && existing != nil {
		return existing
	}
	c := NewRecord(t)
	r.fields[name] = c
	return c
}

func (r *Record) collection(name string) []*Record {
	items, ok := r.fields[name].([]*Record)
	if !ok {
		items = []*Record{}
		r.fields[name] = items
	}
	return items
}

// QueryResult is a row of a query with aggregates or grouping.
type QueryResult struct {
	*Record
	aggregates map[string]any
	groupBy    map[string]any
}

func newQueryResult(rec *Record) *QueryResult {
	return &QueryResult{
		Record:     rec,
		aggregates: make(map[string]any),
		groupBy:    make(map[string]any),
	}
}

// AggregateValue returns the value of an aggregate call such as "COUNT(id)".
// The function name is case-insensitive, the property is not.
func (q *QueryResult) AggregateValue(name string) (any, bool) {
	v, ok := q.aggregates[types.NormalizeAggregateName(name)]
	return v, ok
}

// Aggregates returns every aggregate value keyed by normalized call.
func (q *QueryResult) Aggregates() map[string]any {
	out := make(map[string]any, len(q.aggregates))
	for k, v := range q.aggregates {
		out[k] = v
	}
	return out
}

// SingleAggregateValue returns the only aggregate value of the row.
func (q *QueryResult) SingleAggregateValue() (any, error) {
	if len(q.aggregates) != 1 {
		return nil, types.Errorf(types.CodeResultShape, "expected exactly one aggregate value, got %d", len(q.aggregates))
	}
	for _, v := range q.aggregates {
		return v, nil
	}
	return nil, nil
}

// GroupByValue returns the value of a grouped property.
func (q *QueryResult) GroupByValue(property string) (any, bool) {
	v, ok := q.groupBy[property]
	return v, ok
}

// GroupByValues returns every grouped value keyed by property.
func (q *QueryResult) GroupByValues() map[string]any {
	out := make(map[string]any, len(q.groupBy))
	for k, v := range q.groupBy {
		out[k] = v
	}
	return out
}

func (q *QueryResult) String() string {
	return fmt.Sprintf("QueryResult{%v aggregates=%v groupBy=%v}", q.Record.Map(), q.aggregates, q.groupBy)
}
