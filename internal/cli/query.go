package cli

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zoobzio/recql"
	"github.com/zoobzio/recql/internal/types"
	"github.com/zoobzio/recql/schema"
)

// QueryDocument is the YAML form of a Criteria.
//
//	type: Pigeon
//	select: [name, father.name]
//	where:
//	  and:
//	    - {op: gt, property: age, value: 2}
//	    - {op: in, property: father, subquery: {type: Pigeon, select: [id]}}
//	order:
//	  - {property: name, direction: desc}
//	limit: 10
type QueryDocument struct {
	Type       string           `yaml:"type"`
	Select     []string         `yaml:"select"`
	Where      *RestrictionNode `yaml:"where"`
	GroupBy    []string         `yaml:"groupBy"`
	Aggregates []AggregateNode  `yaml:"aggregates"`
	Order      []OrderNode      `yaml:"order"`
	Limit      int              `yaml:"limit"`
	Offset     int              `yaml:"offset"`
}

// RestrictionNode is one node of a restriction tree. Exactly one of Op, And,
// Or and Not is set.
type RestrictionNode struct {
	Op       string             `yaml:"op"`
	Property string             `yaml:"property"`
	Value    any                `yaml:"value"`
	Values   []any              `yaml:"values"`
	Subquery *QueryDocument     `yaml:"subquery"`
	And      []*RestrictionNode `yaml:"and"`
	Or       []*RestrictionNode `yaml:"or"`
	Not      *RestrictionNode   `yaml:"not"`
}

// AggregateNode selects an aggregate function over a property.
type AggregateNode struct {
	Function string `yaml:"function"`
	Property string `yaml:"property"`
}

// OrderNode orders by a property.
type OrderNode struct {
	Property  string `yaml:"property"`
	Direction string `yaml:"direction"`
}

// DecodeQuery reads a query document, rejecting unknown keys.
func DecodeQuery(r io.Reader) (*QueryDocument, error) {
	var doc QueryDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding query: %w", err)
	}
	if doc.Type == "" {
		return nil, fmt.Errorf("query document has no type")
	}
	return &doc, nil
}

// Criteria builds the Criteria described by the document.
func (d *QueryDocument) Criteria(reg schema.Registry, access recql.Access) (*recql.Criteria, error) {
	var opts []recql.Option
	if access != nil {
		opts = append(opts, recql.WithAccess(access))
	}
	c := recql.New(reg, d.Type, opts...)
	if err := d.apply(c); err != nil {
		return nil, err
	}
	return c, c.Err()
}

func (d *QueryDocument) apply(c *recql.Criteria) error {
	if len(d.Select) > 0 {
		c.Select(d.Select...)
	}
	for _, g := range d.GroupBy {
		c.AddGroupBy(g)
	}
	for _, a := range d.Aggregates {
		c.AddAggregate(recql.AggregateFunc(strings.ToLower(a.Function)), a.Property)
	}
	if d.Where != nil {
		r, err := d.Where.restriction(c)
		if err != nil {
			return err
		}
		c.Add(r)
	}
	for _, o := range d.Order {
		dir := recql.ASC
		if strings.EqualFold(o.Direction, "desc") {
			dir = recql.DESC
		}
		c.OrderBy(o.Property, dir)
	}
	if d.Limit > 0 {
		c.Limit(d.Limit)
	}
	if d.Offset > 0 {
		c.Offset(d.Offset)
	}
	return nil
}

func (n *RestrictionNode) restriction(parent *recql.Criteria) (*recql.Restriction, error) {
	switch {
	case len(n.And) > 0:
		children, err := restrictions(parent, n.And)
		if err != nil {
			return nil, err
		}
		return recql.And(children...), nil
	case len(n.Or) > 0:
		children, err := restrictions(parent, n.Or)
		if err != nil {
			return nil, err
		}
		return recql.Or(children...), nil
	case n.Not != nil:
		child, err := n.Not.restriction(parent)
		if err != nil {
			return nil, err
		}
		return recql.Not(child), nil
	}

	op, ok := types.ParseOperator(n.Op)
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", n.Op)
	}
	switch op {
	case types.IN:
		if n.Subquery != nil {
			sub := parent.Subquery(n.Subquery.Type)
			if err := n.Subquery.apply(sub); err != nil {
				return nil, err
			}
			return recql.InSubquery(n.Property, sub), nil
		}
		return recql.In(n.Property, n.Values...), nil
	case types.ISNULL:
		return recql.IsNull(n.Property), nil
	case types.LIKE:
		return recql.Like(n.Property, fmt.Sprint(n.Value)), nil
	case types.ILIKE:
		return recql.ILike(n.Property, fmt.Sprint(n.Value)), nil
	case types.EQ:
		return recql.Eq(n.Property, n.Value), nil
	case types.NE:
		return recql.Ne(n.Property, n.Value), nil
	case types.GT:
		return recql.Gt(n.Property, n.Value), nil
	case types.GE:
		return recql.Ge(n.Property, n.Value), nil
	case types.LT:
		return recql.Lt(n.Property, n.Value), nil
	case types.LE:
		return recql.Le(n.Property, n.Value), nil
	default:
		return nil, fmt.Errorf("operator %q needs child restrictions", n.Op)
	}
}

func restrictions(parent *recql.Criteria, nodes []*RestrictionNode) ([]*recql.Restriction, error) {
	out := make([]*recql.Restriction, 0, len(nodes))
	for _, node := range nodes {
		r, err := node.restriction(parent)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
