package types

import (
	"strings"

	"github.com/zoobzio/recql/schema"
)

const (
	// MainTableAlias is the alias of the base table.
	MainTableAlias = "this"
	// MaxSubqueryDepth limits nesting of IN sub-queries.
	MaxSubqueryDepth = 3
)

// Direction represents sort direction.
type Direction string

const (
	ASC  Direction = "ASC"
	DESC Direction = "DESC"
)

// OrderBy is an ordering on a property path.
type OrderBy struct {
	Property  string
	Direction Direction
}

// AggregateFunc is an aggregate function name.
type AggregateFunc string

const (
	AggCount AggregateFunc = "count"
	AggSum   AggregateFunc = "sum"
	AggMin   AggregateFunc = "min"
	AggMax   AggregateFunc = "max"
	AggAvg   AggregateFunc = "avg"
)

// ParseAggregateFunc returns the aggregate function with the given name, ignoring case.
func ParseAggregateFunc(name string) (AggregateFunc, bool) {
	fn := AggregateFunc(strings.ToLower(name))
	switch fn {
	case AggCount, AggSum, AggMin, AggMax, AggAvg:
		return fn, true
	default:
		return "", false
	}
}

// AggregateCall applies an aggregate function to a property.
type AggregateCall struct {
	Function AggregateFunc
	Property string
}

// Name is the result column name, e.g. "count(id)".
func (a AggregateCall) Name() string {
	return string(a.Function) + "(" + a.Property + ")"
}

// NormalizeAggregateName lower-cases the function part of "fn(property)",
// leaving the property untouched.
func NormalizeAggregateName(name string) string {
	open := strings.IndexByte(name, '(')
	if open < 0 {
		return name
	}
	return strings.ToLower(name[:open]) + name[open:]
}

// Grouping is the GROUP BY strategy of a compiled query.
type Grouping int

const (
	GroupingNone Grouping = iota
	// GroupingAllNonCollectionFields groups by every selected column that is
	// not aggregated into a collection array.
	GroupingAllNonCollectionFields
	// GroupingUserDefined groups by the caller's group-by properties.
	GroupingUserDefined
)

// Access is the caller identity used for row-level security.
type Access interface {
	UserID() string
	CanReadType(typeID string) bool
	CanReadAllType(typeID string) bool
}

// PropertySet is an insertion-ordered set of property paths.
type PropertySet struct {
	items []string
	index map[string]struct{}
}

// Add inserts p if absent and reports whether it was added.
func (s *PropertySet) Add(p string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[p]; ok {
		return false
	}
	s.index[p] = struct{}{}
	s.items = append(s.items, p)
	return true
}

// Remove deletes p.
func (s *PropertySet) Remove(p string) {
	if _, ok := s.index[p]; !ok {
		return
	}
	delete(s.index, p)
	for i, item := range s.items {
		if item == p {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
}

// Has reports whether p is in the set.
func (s *PropertySet) Has(p string) bool {
	_, ok := s.index[p]
	return ok
}

// Items returns the members in insertion order.
func (s *PropertySet) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of members.
func (s *PropertySet) Len() int { return len(s.items) }

// Query is the state of one query under construction.
type Query struct {
	Type     *schema.Type
	Registry schema.Registry
	Access   Access

	Properties   PropertySet
	Nested       PropertySet
	Aggregates   []AggregateCall
	GroupBy      PropertySet
	Restrictions []*Restriction
	Joins        []JoinStructure
	Orderings    []OrderBy
	Limit        *int
	Offset       *int

	Subquery          bool
	UseMainTableAlias bool
	IDExplicit        bool

	aliasByProperty map[string]string
	propertyByAlias map[string]string
	inverse         PropertySet
	associations    PropertySet
}

// NewQuery creates a query on t selecting the id property.
func NewQuery(t *schema.Type, reg schema.Registry, access Access) *Query {
	q := &Query{
		Type:              t,
		Registry:          reg,
		Access:            access,
		UseMainTableAlias: true,
		aliasByProperty:   make(map[string]string),
		propertyByAlias:   make(map[string]string),
	}
	q.Properties.Add(schema.IDField)
	return q
}

// RegisterAlias records alias for the relationship at property and the join
// that reaches it.
func (q *Query) RegisterAlias(property, alias string, kind schema.Kind, join JoinStructure) error {
	if existing, ok := q.aliasByProperty[property]; ok {
		return Errorf(CodeDuplicateAlias, "property %s is already aliased as %s", property, existing)
	}
	if existing, ok := q.propertyByAlias[alias]; ok {
		return Errorf(CodeDuplicateAlias, "alias %s is already used for property %s", alias, existing)
	}
	q.aliasByProperty[property] = alias
	q.propertyByAlias[alias] = property
	q.Joins = append(q.Joins, join)
	switch kind {
	case schema.KindInverseCollection:
		q.inverse.Add(property)
	case schema.KindAssociation:
		q.associations.Add(property)
	}
	return nil
}

// AliasFor returns the alias registered for a relationship property path.
func (q *Query) AliasFor(property string) (string, bool) {
	a, ok := q.aliasByProperty[property]
	return a, ok
}

// PropertyFor returns the property path an alias was registered for.
func (q *Query) PropertyFor(alias string) (string, bool) {
	p, ok := q.propertyByAlias[alias]
	return p, ok
}

// IsNotEmpty reports whether any restriction has been added.
func (q *Query) IsNotEmpty() bool {
	return len(q.Restrictions) > 0
}

// IsInverseCollection reports whether path or any prefix of it is an aliased inverse collection.
func (q *Query) IsInverseCollection(path string) bool {
	return len(prefixesIn(&q.inverse, path)) > 0
}

// IsAssociation reports whether path or any prefix of it is an aliased association.
func (q *Query) IsAssociation(path string) bool {
	return len(prefixesIn(&q.associations, path)) > 0
}

// CollectionPath returns the shortest prefix of path that is an aliased collection.
func (q *Query) CollectionPath(path string) (string, bool) {
	paths := q.CollectionPaths(path)
	if len(paths) == 0 {
		return "", false
	}
	return paths[0], true
}

// CollectionPaths returns every prefix of path, shortest first, that is an
// aliased collection. The path itself counts as a prefix.
func (q *Query) CollectionPaths(path string) []string {
	var out []string
	for _, prefix := range prefixes(path) {
		if q.inverse.Has(prefix) || q.associations.Has(prefix) {
			out = append(out, prefix)
		}
	}
	return out
}

func prefixesIn(set *PropertySet, path string) []string {
	var out []string
	for _, prefix := range prefixes(path) {
		if set.Has(prefix) {
			out = append(out, prefix)
		}
	}
	return out
}

// prefixes returns the dot-separated prefixes of path, shortest first,
// ending with path itself.
func prefixes(path string) []string {
	var out []string
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			out = append(out, path[:i])
		}
	}
	return append(out, path)
}

// HasCollections reports whether any collection has been aliased.
func (q *Query) HasCollections() bool {
	return q.inverse.Len()+q.associations.Len() > 0
}

// HasMultipleCollections reports whether more than one collection has been aliased.
func (q *Query) HasMultipleCollections() bool {
	return q.inverse.Len()+q.associations.Len() > 1
}

// Grouping returns the GROUP BY strategy for the query.
func (q *Query) Grouping() Grouping {
	switch {
	case q.GroupBy.Len() > 0:
		return GroupingUserDefined
	case q.HasCollections():
		return GroupingAllNonCollectionFields
	default:
		return GroupingNone
	}
}

// IsAggregate reports whether rows carry aggregate or group-by values.
func (q *Query) IsAggregate() bool {
	return len(q.Aggregates) > 0 || q.GroupBy.Len() > 0
}

// ApplySharing reports whether records of typeID must be filtered through the
// sharing relation for the query's caller.
func (q *Query) ApplySharing(typeID string) (bool, error) {
	if q.Access == nil {
		return false, nil
	}
	if q.Access.CanReadAllType(typeID) {
		return false, nil
	}
	if q.Access.CanReadType(typeID) {
		return true, nil
	}
	return false, Errorf(CodeInsufficientPrivileges, "insufficient privileges to read type %s", typeID)
}
