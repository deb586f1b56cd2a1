package postgres

import (
	"fmt"
	"strings"

	"github.com/zoobzio/recql/internal/types"
	"github.com/zoobzio/recql/schema"
)

// RenderInsert renders an INSERT returning the new id, called through the insert procedure.
func (r *Renderer) RenderInsert(t *schema.Type, values []types.Assignment) (*types.Mutation, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("INSERT into %s requires at least one value", t.Name)
	}

	columns := make([]string, 0, len(values))
	literals := make([]string, 0, len(values))
	for _, a := range values {
		if !a.Field.DataType.Kind.HasColumn() {
			return nil, fmt.Errorf("field %s.%s cannot be written", t.Name, a.Field.Name)
		}
		lit, err := literal(a.Field, a.Value)
		if err != nil {
			return nil, err
		}
		columns = append(columns, quoteIdentifier(a.Field.Column))
		literals = append(literals, lit)
	}

	var sql strings.Builder
	sql.WriteString("INSERT INTO ")
	sql.WriteString(quoteIdentifier(t.Table))
	sql.WriteString(" (")
	sql.WriteString(strings.Join(columns, ", "))
	sql.WriteString(") VALUES (")
	sql.WriteString(strings.Join(literals, ", "))
	sql.WriteString(") RETURNING ")
	sql.WriteString(quoteIdentifier(t.IDField().Column))

	return &types.Mutation{
		Kind:      types.MutationInsert,
		Type:      t,
		Statement: sql.String(),
		SQL:       "SELECT " + r.insertProcedure + "($1)",
	}, nil
}

// RenderUpdate renders an UPDATE of the records matched by where, called
// through the update procedure. When where uses the main table alias the
// target table is aliased to match.
func (r *Renderer) RenderUpdate(t *schema.Type, values []types.Assignment, where *types.Query) (*types.Mutation, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("UPDATE of %s requires at least one value", t.Name)
	}
	if where == nil || !where.IsNotEmpty() {
		return nil, fmt.Errorf("UPDATE of %s requires a restriction", t.Name)
	}
	if where.Type != t {
		return nil, fmt.Errorf("UPDATE of %s restricted by a query on %s", t.Name, where.Type.Name)
	}
	if len(where.Joins) > 0 {
		return nil, fmt.Errorf("UPDATE of %s cannot be restricted by nested properties", t.Name)
	}

	sets := make([]string, 0, len(values))
	for _, a := range values {
		if !a.Field.DataType.Kind.HasColumn() || a.Field.Name == schema.IDField {
			return nil, fmt.Errorf("field %s.%s cannot be updated", t.Name, a.Field.Name)
		}
		lit, err := literal(a.Field, a.Value)
		if err != nil {
			return nil, err
		}
		sets = append(sets, quoteIdentifier(a.Field.Column)+" = "+lit)
	}

	ctx := newRenderContext(where)
	cond, err := r.renderWhere(ctx)
	if err != nil {
		return nil, err
	}

	var sql strings.Builder
	sql.WriteString("UPDATE ")
	sql.WriteString(quoteIdentifier(t.Table))
	if where.UseMainTableAlias {
		sql.WriteString(" AS ")
		sql.WriteString(quoteIdentifier(types.MainTableAlias))
	}
	sql.WriteString(" SET ")
	sql.WriteString(strings.Join(sets, ", "))
	sql.WriteString(" WHERE ")
	sql.WriteString(cond)

	return &types.Mutation{
		Kind:      types.MutationUpdate,
		Type:      t,
		Statement: sql.String(),
		SQL:       "SELECT " + r.updateProcedure + "($1)",
	}, nil
}

// RenderDelete renders a DELETE of the records with the given ids, called
// through the update procedure.
func (r *Renderer) RenderDelete(t *schema.Type, ids []string) (*types.Mutation, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("DELETE from %s requires at least one id", t.Name)
	}
	idField := t.IDField()
	literals := make([]string, 0, len(ids))
	for _, id := range ids {
		lit, err := literal(idField, id)
		if err != nil {
			return nil, err
		}
		literals = append(literals, lit)
	}

	statement := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
		quoteIdentifier(t.Table),
		quoteIdentifier(idField.Column),
		strings.Join(literals, ", "),
	)
	return &types.Mutation{
		Kind:      types.MutationDelete,
		Type:      t,
		Statement: statement,
		SQL:       "SELECT " + r.updateProcedure + "($1)",
	}, nil
}
