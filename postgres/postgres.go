// Package postgres provides the PostgreSQL renderer for recql.
package postgres

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/zoobzio/recql/internal/types"
	"github.com/zoobzio/recql/schema"
)

const (
	// DefaultSharingTable is the relation listing which records are shared with which users.
	DefaultSharingTable = "userrecordsharing"
	// DefaultInsertProcedure runs an INSERT and reports its status.
	DefaultInsertProcedure = "execute_insert"
	// DefaultUpdateProcedure runs an UPDATE or DELETE and reports its status.
	DefaultUpdateProcedure = "execute_update"
)

// renderContext tracks rendering state for one query and its sub-queries.
type renderContext struct {
	query    *types.Query
	depth    int
	subquery bool
	// sharing numbers sharing-table aliases across the whole statement.
	sharing *int
}

// newRenderContext creates a render context for a top-level query.
func newRenderContext(q *types.Query) *renderContext {
	return &renderContext{query: q, subquery: q.Subquery, sharing: new(int)}
}

// withSubquery creates a child context for rendering a sub-query.
func (ctx *renderContext) withSubquery(q *types.Query) (*renderContext, error) {
	if ctx.depth >= types.MaxSubqueryDepth {
		return nil, types.Errorf(types.CodeSubqueryDepth, "maximum subquery depth (%d) exceeded", types.MaxSubqueryDepth)
	}
	return &renderContext{
		query:    q,
		depth:    ctx.depth + 1,
		subquery: true,
		sharing:  ctx.sharing,
	}, nil
}

// mainAlias is the qualifier of base-table columns.
func (ctx *renderContext) mainAlias() string {
	if ctx.query.UseMainTableAlias {
		return types.MainTableAlias
	}
	return ""
}

func (ctx *renderContext) nextSharingAlias(table string) string {
	n := *ctx.sharing
	*ctx.sharing++
	return table + "_" + strconv.Itoa(n)
}

// Renderer implements the PostgreSQL renderer.
type Renderer struct {
	sharingTable    string
	insertProcedure string
	updateProcedure string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSharingTable sets the name of the sharing relation.
func WithSharingTable(name string) Option {
	return func(r *Renderer) { r.sharingTable = name }
}

// WithInsertProcedure sets the procedure wrapping INSERT statements.
func WithInsertProcedure(name string) Option {
	return func(r *Renderer) { r.insertProcedure = name }
}

// WithUpdateProcedure sets the procedure wrapping UPDATE and DELETE statements.
func WithUpdateProcedure(name string) Option {
	return func(r *Renderer) { r.updateProcedure = name }
}

// New creates a new PostgreSQL renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		sharingTable:    DefaultSharingTable,
		insertProcedure: DefaultInsertProcedure,
		updateProcedure: DefaultUpdateProcedure,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Compile renders a query as a single SELECT statement.
func (r *Renderer) Compile(q *types.Query) (*types.Compiled, error) {
	if q == nil || q.Type == nil {
		return nil, fmt.Errorf("query has no base type")
	}
	return r.compile(newRenderContext(q))
}

// selectList accumulates the parts of a SELECT while it is being built.
type selectList struct {
	columns []string
	groupBy []string
	grouped map[string]bool
}

func (s *selectList) column(expr, alias string) {
	s.columns = append(s.columns, expr+" AS "+quoteIdentifier(alias))
}

func (s *selectList) group(expr string) {
	if s.grouped == nil {
		s.grouped = make(map[string]bool)
	}
	if s.grouped[expr] {
		return
	}
	s.grouped[expr] = true
	s.groupBy = append(s.groupBy, expr)
}

func (r *Renderer) compile(ctx *renderContext) (*types.Compiled, error) {
	q := ctx.query

	applyBase, err := q.ApplySharing(q.Type.ID)
	if err != nil {
		return nil, err
	}

	properties := q.Properties.Items()
	nested := q.Nested.Items()
	if ctx.subquery {
		if !q.IDExplicit {
			properties = without(properties, schema.IDField)
		}
		if len(properties)+len(nested) != 1 {
			return nil, types.Errorf(types.CodeSubqueryArity, "sub-query on %s must select exactly one property, got %d", q.Type.Name, len(properties)+len(nested))
		}
	}

	grouping := q.Grouping()
	shape := &types.ResultShape{
		Type:        q.Type,
		Registry:    q.Registry,
		GroupBy:     q.GroupBy.Items(),
		Aggregate:   q.IsAggregate(),
		Deduplicate: q.HasMultipleCollections(),
	}
	list := &selectList{}

	orderings := make([]string, 0, len(q.Orderings))
	for _, o := range q.Orderings {
		expr, err := r.orderingSQL(ctx, o.Property)
		if err != nil {
			return nil, err
		}
		if grouping == types.GroupingAllNonCollectionFields {
			list.group(expr)
		}
		dir := o.Direction
		if dir == "" {
			dir = types.ASC
		}
		orderings = append(orderings, expr+" "+string(dir))
	}

	// array_agg needs a stable order even when the caller gave none.
	tiebreak := orderings
	if len(tiebreak) == 0 && q.HasCollections() {
		tiebreak = []string{schema.ColumnSQL(types.MainTableAlias, q.Type.IDField().Column) + " DESC"}
	}

	for _, a := range q.Aggregates {
		expr, err := r.propertySQL(ctx, a.Property)
		if err != nil {
			return nil, err
		}
		alias := a.Name()
		list.column(strings.ToUpper(string(a.Function))+"("+expr+")", alias)
		shape.Aggregates = append(shape.Aggregates, types.AggregateColumn{Call: a, Alias: alias})
	}

	for _, p := range properties {
		f, ok := q.Type.Field(p)
		if !ok {
			return nil, types.Errorf(types.CodeUnknownProperty, "type %s has no field %s", q.Type.Name, p)
		}
		if f.DataType.Kind.IsCollection() {
			return nil, types.Errorf(types.CodeUnknownProperty, "cannot select whole relationship %s", p)
		}
		expr, err := r.propertySQL(ctx, p)
		if err != nil {
			return nil, err
		}
		list.column(expr, strings.ToLower(p))
		if grouping == types.GroupingAllNonCollectionFields ||
			(grouping == types.GroupingUserDefined && q.GroupBy.Has(p)) {
			list.group(expr)
		}
		shape.Properties = append(shape.Properties, p)
	}

	emitted := make(map[string]bool)
	for _, p := range nested {
		_, f, err := schema.Resolve(q.Registry, q.Type, p)
		if err != nil {
			return nil, unknownProperty(p, err)
		}
		if f.DataType.Kind.IsCollection() {
			return nil, types.Errorf(types.CodeUnknownProperty, "cannot select whole relationship %s", p)
		}
		expr, err := r.propertySQL(ctx, p)
		if err != nil {
			return nil, err
		}
		alias := strings.ToLower(p)

		collection, isCollection := q.CollectionPath(p)
		if !isCollection || ctx.subquery {
			if grouping == types.GroupingAllNonCollectionFields && !isCollection {
				list.group(expr)
			}
			list.column(expr, alias)
			shape.Nested = append(shape.Nested, types.NestedColumn{Property: p, Alias: alias})
			continue
		}

		if len(q.CollectionPaths(p)) > 1 {
			return nil, types.Errorf(types.CodeUnknownProperty, "property %s crosses more than one collection", p)
		}

		key, err := r.collectionKeySQL(ctx, collection)
		if err != nil {
			return nil, err
		}
		order := strings.Join(tiebreak, ", ")
		if q.HasMultipleCollections() {
			order += ", " + key
		}
		name := strings.ToLower(collection)
		if !emitted[name] {
			emitted[name] = true
			shape.Collections = append(shape.Collections, collection)
			list.column("count("+key+") = 0", types.EmptyColumn(name))
			if q.HasMultipleCollections() {
				list.column(fmt.Sprintf("CASE WHEN count(%s) > 0 THEN count(%s) / count(DISTINCT %s) ELSE 0 END", key, key, key),
					types.DistinctItemsColumn(name))
				// Nested collections repeat their parents unevenly, so the
				// ratio alone cannot tell duplicates apart.
				list.column(fmt.Sprintf("array_agg(%s ORDER BY %s)", key, order), types.KeysColumn(name))
			}
		}

		pgType, err := f.DataType.PostgresType()
		if err != nil {
			return nil, types.Wrap(types.CodeUnknownProperty, err, "property %s", p)
		}
		list.column(fmt.Sprintf("CASE WHEN count(%s) = 0 THEN ARRAY[]::%s[] ELSE array_agg(%s ORDER BY %s) END", key, pgType, expr, order), alias)
		shape.Nested = append(shape.Nested, types.NestedColumn{Property: p, Alias: alias, Collection: collection})
	}

	if len(list.columns) == 0 {
		return nil, types.Errorf(types.CodeEmptySelect, "query on %s selects no columns", q.Type.Name)
	}

	var sql strings.Builder
	sql.WriteString("SELECT ")
	sql.WriteString(strings.Join(list.columns, ", "))
	sql.WriteString(" FROM ")
	sql.WriteString(r.renderTable(ctx, q.Type, q.Type.Table, types.MainTableAlias, applyBase))

	for _, j := range q.Joins {
		join, err := r.renderJoin(ctx, j)
		if err != nil {
			return nil, err
		}
		sql.WriteString(" ")
		sql.WriteString(join)
	}

	if q.IsNotEmpty() {
		where, err := r.renderWhere(ctx)
		if err != nil {
			return nil, err
		}
		sql.WriteString(" WHERE ")
		sql.WriteString(where)
	}

	groupBy := &selectList{}
	if grouping == types.GroupingUserDefined {
		for _, p := range q.GroupBy.Items() {
			expr, err := r.propertySQL(ctx, p)
			if err != nil {
				return nil, err
			}
			groupBy.group(expr)
		}
	}
	for _, expr := range list.groupBy {
		groupBy.group(expr)
	}
	if len(groupBy.groupBy) > 0 {
		sql.WriteString(" GROUP BY ")
		sql.WriteString(strings.Join(groupBy.groupBy, ", "))
	}

	if len(orderings) > 0 {
		sql.WriteString(" ORDER BY ")
		sql.WriteString(strings.Join(orderings, ", "))
	}
	if q.Limit != nil {
		sql.WriteString(" LIMIT ")
		sql.WriteString(strconv.Itoa(*q.Limit))
	}
	if q.Offset != nil {
		sql.WriteString(" OFFSET ")
		sql.WriteString(strconv.Itoa(*q.Offset))
	}

	return &types.Compiled{SQL: sql.String(), Shape: shape}, nil
}

// orderingSQL renders an ORDER BY target. Simple properties must be stored columns.
func (r *Renderer) orderingSQL(ctx *renderContext, property string) (string, error) {
	q := ctx.query
	if strings.Contains(property, ".") {
		if _, ok := q.CollectionPath(property); ok {
			return "", types.Errorf(types.CodeUnsupportedOrderBy, "cannot order by collection property %s", property)
		}
		expr, err := r.propertySQL(ctx, property)
		if err != nil {
			return "", types.Wrap(types.CodeUnsupportedOrderBy, err, "cannot order by %s", property)
		}
		return expr, nil
	}
	f, ok := q.Type.Field(property)
	if !ok {
		return "", types.Errorf(types.CodeUnsupportedOrderBy, "cannot order by unknown property %s", property)
	}
	if !f.DataType.Kind.HasColumn() {
		return "", types.Errorf(types.CodeUnsupportedOrderBy, "cannot order by %s of type %s", property, f.DataType.Kind)
	}
	return schema.ColumnSQL(types.MainTableAlias, f.Column), nil
}

// propertySQL renders the expression reading a property path.
func (r *Renderer) propertySQL(ctx *renderContext, path string) (string, error) {
	q := ctx.query
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 {
		f, ok := q.Type.Field(path)
		if !ok {
			return "", types.Errorf(types.CodeUnknownProperty, "type %s has no field %s", q.Type.Name, path)
		}
		expr, err := q.Type.FieldSQL(f, ctx.mainAlias())
		if err != nil {
			return "", types.Wrap(types.CodeUnknownProperty, err, "property %s", path)
		}
		return expr, nil
	}

	parent, last := path[:dot], path[dot+1:]
	_, parentField, err := schema.Resolve(q.Registry, q.Type, parent)
	if err != nil {
		return "", unknownProperty(path, err)
	}
	target, err := schema.Target(q.Registry, parentField)
	if err != nil {
		return "", unknownProperty(path, err)
	}

	// The id of a referenced record is the foreign key itself, unless the
	// referenced type is filtered by sharing and needs its join.
	if parentField.DataType.Kind == schema.KindReference && strings.EqualFold(last, schema.IDField) {
		apply, err := q.ApplySharing(target.ID)
		if err != nil {
			return "", err
		}
		if !apply {
			return r.propertySQL(ctx, parent)
		}
	}

	alias, ok := q.AliasFor(parent)
	if !ok {
		return "", types.Errorf(types.CodeInvalidAlias, "property %s is not aliased", parent)
	}
	f, ok := target.Field(last)
	if !ok {
		return "", types.Errorf(types.CodeUnknownProperty, "type %s has no field %s", target.Name, last)
	}
	expr, err := target.FieldSQL(f, alias)
	if err != nil {
		return "", types.Wrap(types.CodeUnknownProperty, err, "property %s", path)
	}
	return expr, nil
}

// collectionKeySQL renders the id column of the records in a collection.
func (r *Renderer) collectionKeySQL(ctx *renderContext, collection string) (string, error) {
	q := ctx.query
	alias, ok := q.AliasFor(collection)
	if !ok {
		return "", types.Errorf(types.CodeInvalidAlias, "collection %s is not aliased", collection)
	}
	_, f, err := schema.Resolve(q.Registry, q.Type, collection)
	if err != nil {
		return "", unknownProperty(collection, err)
	}
	target, err := schema.Target(q.Registry, f)
	if err != nil {
		return "", unknownProperty(collection, err)
	}
	return schema.ColumnSQL(alias, target.IDField().Column), nil
}

// quoteIdentifier quotes a PostgreSQL identifier to handle reserved words and special characters.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func unknownProperty(path string, err error) error {
	var te *types.Error
	if errors.As(err, &te) {
		return te
	}
	return types.Wrap(types.CodeUnknownProperty, err, "property %s", path)
}

func without(items []string, item string) []string {
	out := items[:0:0]
	for _, it := range items {
		if it != item {
			out = append(out, it)
		}
	}
	return out
}
