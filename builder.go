package recql

import (
	"errors"
	"strconv"
	"strings"

	"github.com/zoobzio/recql/internal/types"
	"github.com/zoobzio/recql/schema"
)

// Criteria describes one query. It is not safe for
// concurrent use. Methods record the first error, after which they do nothing;
// the error is returned by Query and Err.
type Criteria struct {
	query   *types.Query
	aliases AliasSource
	depth   int
	err     error
}

// Option configures a Criteria.
type Option func(*Criteria)

// WithAccess filters records through the caller's sharing permissions.
// Without it the query runs in trusted mode.
func WithAccess(a Access) Option {
	return func(c *Criteria) { c.query.Access = a }
}

// WithAliasSource sets the source of generated alias suffixes.
func WithAliasSource(src AliasSource) Option {
	return func(c *Criteria) { c.aliases = src }
}

// WithoutMainTableAlias renders simple properties without the "this" qualifier,
// as needed for UPDATE statements.
func WithoutMainTableAlias() Option {
	return func(c *Criteria) { c.query.UseMainTableAlias = false }
}

// New creates a Criteria on the type with the given name.
func New(reg schema.Registry, typeName string, opts ...Option) *Criteria {
	t, ok := reg.TypeByName(typeName)
	if !ok {
		c := &Criteria{query: types.NewQuery(nil, reg, nil)}
		c.err = types.Wrap(types.CodeUnknownProperty, schema.ErrUnknownType, "type %s", typeName)
		return c
	}
	return NewForType(reg, t, opts...)
}

// NewForType creates a Criteria on t.
func NewForType(reg schema.Registry, t *schema.Type, opts ...Option) *Criteria {
	c := &Criteria{query: types.NewQuery(t, reg, nil)}
	for _, opt := range opts {
		opt(c)
	}
	if c.aliases == nil {
		c.aliases = NewCounterSource()
	}
	if a := c.query.Access; a != nil && !a.CanReadType(t.ID) {
		c.err = types.Errorf(types.CodeInsufficientPrivileges, "insufficient privileges to read type %s", t.Name)
	}
	return c
}

// Subquery creates a Criteria for an IN sub-query. It shares the caller
// identity and alias source of c.
func (c *Criteria) Subquery(typeName string) *Criteria {
	opts := []Option{WithAliasSource(c.aliases)}
	if c.query.Access != nil {
		opts = append(opts, WithAccess(c.query.Access))
	}
	sub := New(c.query.Registry, typeName, opts...)
	sub.depth = c.depth + 1
	if sub.err == nil && sub.depth > types.MaxSubqueryDepth {
		sub.err = types.Errorf(types.CodeSubqueryDepth, "maximum subquery depth (%d) exceeded", types.MaxSubqueryDepth)
	}
	sub.query.Subquery = true
	return sub
}

// Type returns the base type.
func (c *Criteria) Type() *schema.Type {
	return c.query.Type
}

// Err returns the first error recorded by the builder.
func (c *Criteria) Err() error {
	return c.err
}

// Query returns the query state or the first recorded error.
func (c *Criteria) Query() (*types.Query, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.query, nil
}

// failedSubquery carries a sub-query's builder error into its parent.
type failedSubquery struct {
	err error
}

func (c *Criteria) subqueryValue() any {
	if c.err != nil {
		return failedSubquery{err: c.err}
	}
	c.query.Subquery = true
	return c.query
}

// AddProperty selects properties. A comma separated list selects several;
// dot paths select nested properties and register aliases for the relationships
// they cross.
func (c *Criteria) AddProperty(properties string) *Criteria {
	for _, p := range strings.Split(properties, ",") {
		if c.err != nil {
			return c
		}
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, ".") {
			c.query.Nested.Add(p)
			c.addAliasesForProperty(p)
			continue
		}
		if p == schema.IDField {
			c.query.IDExplicit = true
		}
		c.query.Properties.Add(p)
	}
	return c
}

// Select adds each property as AddProperty does.
func (c *Criteria) Select(properties ...string) *Criteria {
	for _, p := range properties {
		c.AddProperty(p)
	}
	return c
}

// AddAggregate selects fn applied to property. The implicit id property is
// dropped unless it was selected explicitly.
func (c *Criteria) AddAggregate(fn AggregateFunc, property string) *Criteria {
	if c.err != nil {
		return c
	}
	parsed, ok := types.ParseAggregateFunc(string(fn))
	if !ok {
		c.err = types.Errorf(types.CodeUnknownProperty, "unsupported aggregate function %q", fn)
		return c
	}
	c.dropImplicitID()
	c.query.Aggregates = append(c.query.Aggregates, types.AggregateCall{Function: parsed, Property: property})
	if strings.Contains(property, ".") {
		c.addAliasesForProperty(property)
	}
	return c
}

// AddGroupBy groups by property and selects it. The implicit id property is
// dropped unless it was selected explicitly.
func (c *Criteria) AddGroupBy(property string) *Criteria {
	if c.err != nil {
		return c
	}
	c.dropImplicitID()
	c.query.GroupBy.Add(property)
	return c.AddProperty(property)
}

func (c *Criteria) dropImplicitID() {
	if !c.query.IDExplicit {
		c.query.Properties.Remove(schema.IDField)
	}
}

// Add conjoins a restriction with those already added.
func (c *Criteria) Add(r *Restriction) *Criteria {
	if c.err != nil {
		return c
	}
	if r == nil {
		c.err = types.Errorf(types.CodeInvalidRestriction, "nil restriction")
		return c
	}
	if err := subqueryError(r); err != nil {
		c.err = err
		return c
	}
	c.query.Restrictions = append(c.query.Restrictions, r)
	for _, p := range r.Properties() {
		if strings.Contains(p, ".") {
			c.addAliasesForProperty(p)
		}
	}
	return c
}

func subqueryError(r *Restriction) error {
	if r == nil {
		return nil
	}
	if f, ok := r.Value.(failedSubquery); ok {
		return f.err
	}
	for _, child := range r.Children {
		if err := subqueryError(child); err != nil {
			return err
		}
	}
	return nil
}

// OrderBy adds an ordering.
func (c *Criteria) OrderBy(property string, direction Direction) *Criteria {
	if c.err != nil {
		return c
	}
	c.query.Orderings = append(c.query.Orderings, types.OrderBy{Property: property, Direction: direction})
	if strings.Contains(property, ".") {
		c.addAliasesForProperty(property)
	}
	return c
}

// Limit sets the maximum number of rows.
func (c *Criteria) Limit(limit int) *Criteria {
	if c.err != nil {
		return c
	}
	if limit < 0 {
		c.err = types.Errorf(types.CodeInvalidValue, "limit must not be negative, got %d", limit)
		return c
	}
	c.query.Limit = &limit
	return c
}

// Offset sets the number of rows to skip.
func (c *Criteria) Offset(offset int) *Criteria {
	if c.err != nil {
		return c
	}
	if offset < 0 {
		c.err = types.Errorf(types.CodeInvalidValue, "offset must not be negative, got %d", offset)
		return c
	}
	c.query.Offset = &offset
	return c
}

// AsSubquery marks the Criteria as an IN sub-query selecting a single property.
func (c *Criteria) AsSubquery() *Criteria {
	if c.err != nil {
		return c
	}
	c.query.Subquery = true
	return c
}

// IsNotEmpty reports whether any restriction has been added.
func (c *Criteria) IsNotEmpty() bool {
	return c.query.IsNotEmpty()
}

// CreateAlias registers alias for the relationship at property and the join
// that reaches it. The alias is lower-cased and given a generated suffix.
func (c *Criteria) CreateAlias(property, alias string) *Criteria {
	if c.err != nil {
		return c
	}
	c.err = c.createAlias(property, alias)
	return c
}

// AddAliasesForProperty registers an alias for every relationship crossed by
// a nested property path, naming each after its path.
func (c *Criteria) AddAliasesForProperty(property string) *Criteria {
	if c.err != nil {
		return c
	}
	c.addAliasesForProperty(property)
	return c
}

func (c *Criteria) addAliasesForProperty(property string) {
	for i := 0; i < len(property) && c.err == nil; i++ {
		if property[i] != '.' {
			continue
		}
		partial := property[:i]
		if _, ok := c.query.AliasFor(partial); ok {
			continue
		}
		c.err = c.createAlias(partial, strings.ReplaceAll(partial, ".", "_"))
	}
}

func (c *Criteria) createAlias(property, alias string) error {
	q := c.query
	if alias == "" {
		return types.Errorf(types.CodeInvalidAlias, "empty alias for property %s", property)
	}
	if existing, ok := q.AliasFor(property); ok {
		return types.Errorf(types.CodeDuplicateAlias, "property %s is already aliased as %s", property, existing)
	}

	steps, err := schema.Walk(q.Registry, q.Type, property)
	if err != nil {
		return metadataError(property, err)
	}
	last := steps[len(steps)-1]
	owner, field, target := last.Owner, last.Field, last.Target

	leftAlias := types.MainTableAlias
	if dot := strings.LastIndexByte(property, '.'); dot >= 0 {
		parent, ok := q.AliasFor(property[:dot])
		if !ok {
			return types.Errorf(types.CodeInvalidAlias, "property %s must be aliased before %s", property[:dot], property)
		}
		leftAlias = parent
	}

	generated := strings.ToLower(alias) + "_" + strconv.FormatInt(c.aliases.Next(), 10)

	var join types.JoinStructure
	switch field.DataType.Kind {
	case schema.KindReference:
		join = types.DirectJoin{
			Type:        types.LeftJoin,
			LeftTable:   owner.Table,
			LeftColumn:  field.Column,
			LeftAlias:   leftAlias,
			RightTable:  target.Table,
			RightColumn: target.IDField().Column,
			RightAlias:  generated,
			JoinedType:  target,
		}
	case schema.KindInverseCollection:
		inverse, ref, err := schema.InverseField(q.Registry, field)
		if err != nil {
			return metadataError(property, err)
		}
		join = types.DirectJoin{
			Type:        types.LeftJoin,
			LeftTable:   owner.Table,
			LeftColumn:  owner.IDField().Column,
			LeftAlias:   leftAlias,
			RightTable:  inverse.Table,
			RightColumn: ref.Column,
			RightAlias:  generated,
			JoinedType:  inverse,
		}
	case schema.KindAssociation:
		self, foreign, err := schema.LinkingFields(q.Registry, field)
		if err != nil {
			return metadataError(property, err)
		}
		linking, _ := q.Registry.TypeByID(field.DataType.LinkingType)
		join = types.AssociationJoin{
			Type:             types.LeftJoin,
			BaseTable:        owner.Table,
			BaseAlias:        leftAlias,
			BaseColumn:       owner.IDField().Column,
			LinkingTable:     linking.Table,
			LinkingAlias:     generated + "_link",
			SelfColumn:       self.Column,
			ForeignColumn:    foreign.Column,
			AssociatedTable:  target.Table,
			AssociatedAlias:  generated,
			AssociatedColumn: target.IDField().Column,
			LinkingType:      linking,
			AssociatedType:   target,
		}
	case schema.KindText, schema.KindNumber, schema.KindBoolean, schema.KindDate, schema.KindDateTime,
		schema.KindEnum, schema.KindID, schema.KindFormula:
		return types.Errorf(types.CodeInvalidAlias, "cannot alias %s: field %s is of type %s", property, field.Name, field.DataType.Kind)
	default:
		return types.Errorf(types.CodeInvalidAlias, "cannot alias %s: unknown data type %s", property, field.DataType.Kind)
	}

	return q.RegisterAlias(property, generated, field.DataType.Kind, join)
}

func metadataError(property string, err error) error {
	if errors.Is(err, schema.ErrIncompleteMetadata) {
		return types.Wrap(types.CodeIncompleteMetadata, err, "resolving %s", property)
	}
	return types.Wrap(types.CodeUnknownProperty, err, "resolving %s", property)
}
