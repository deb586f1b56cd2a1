package recql

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/zoobzio/recql/internal/types"
	"github.com/zoobzio/recql/schema"
)

// materialize maps one result row onto a record.
func materialize(shape *types.ResultShape, columns []string, values []any) (*QueryResult, error) {
	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = normalizeValue(values[i])
	}

	rec := NewRecord(shape.Type)
	for _, coll := range shape.Collections {
		parent, name, err := parentRecord(shape, rec, coll)
		if err != nil {
			return nil, err
		}
		parent.collection(name)
	}

	result := newQueryResult(rec)
	for _, p := range shape.Properties {
		v := row[strings.ToLower(p)]
		rec.Set(p, v)
		if shape.Aggregate {
			result.groupBy[p] = v
		}
	}

	for _, n := range shape.Nested {
		v := row[n.Alias]
		if n.Collection == "" {
			if err := setNested(shape, rec, n.Property, v); err != nil {
				return nil, err
			}
			if shape.Aggregate {
				result.groupBy[n.Property] = v
			}
			continue
		}
		if empty, _ := row[types.EmptyColumn(strings.ToLower(n.Collection))].(bool); empty || v == nil {
			continue
		}
		items, ok := v.([]any)
		if !ok {
			return nil, types.Errorf(types.CodeInvalidValue, "column %s: expected an array, got %T", n.Alias, v)
		}
		if shape.Deduplicate {
			name := strings.ToLower(n.Collection)
			items = distinctItems(items, row[types.KeysColumn(name)], row[types.DistinctItemsColumn(name)])
		}
		if err := setCollection(shape, rec, n, items); err != nil {
			return nil, err
		}
	}

	for _, a := range shape.Aggregates {
		result.aggregates[types.NormalizeAggregateName(a.Alias)] = row[a.Alias]
	}
	return result, nil
}

// distinctItems undoes the row multiplication caused by joining several
// collections at once. Items are aligned with keys, and only the first item
// per key is kept. Without keys every item is assumed to appear ratio times.
func distinctItems(items []any, keys any, ratio any) []any {
	if ks, ok := keys.([]any); ok && len(ks) == len(items) {
		seen := make(map[string]struct{}, len(ks))
		out := make([]any, 0, len(items))
		for i, k := range ks {
			id := fmt.Sprint(k)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, items[i])
		}
		return out
	}
	n, ok := ratio.(int64)
	if !ok || n <= 1 {
		return items
	}
	out := make([]any, 0, int64(len(items))/n)
	for i := 0; i < len(items); i += int(n) {
		out = append(out, items[i])
	}
	return out
}

// parentRecord walks the reference hops of path, creating nested records, and
// returns the record owning the last segment.
func parentRecord(shape *types.ResultShape, rec *Record, path string) (*Record, string, error) {
	steps, err := schema.Walk(shape.Registry, shape.Type, path)
	if err != nil {
		return nil, "", err
	}
	cur := rec
	for _, step := range steps[:len(steps)-1] {
		cur = cur.child(strings.ToLower(step.Field.Name), step.Target)
	}
	return cur, strings.ToLower(steps[len(steps)-1].Field.Name), nil
}

func setNested(shape *types.ResultShape, rec *Record, path string, v any) error {
	if v == nil {
		return nil
	}
	parent, name, err := parentRecord(shape, rec, path)
	if err != nil {
		return err
	}
	parent.Set(name, v)
	return nil
}

func setCollection(shape *types.ResultShape, rec *Record, n types.NestedColumn, items []any) error {
	parent, name, err := parentRecord(shape, rec, n.Collection)
	if err != nil {
		return err
	}
	_, collField, err := schema.Resolve(shape.Registry, shape.Type, n.Collection)
	if err != nil {
		return err
	}
	target, err := schema.Target(shape.Registry, collField)
	if err != nil {
		return err
	}

	members := parent.collection(name)
	for len(members) < len(items) {
		members = append(members, NewRecord(target))
	}
	parent.fields[name] = members

	rest := strings.TrimPrefix(n.Property, n.Collection+".")
	sub := &types.ResultShape{Type: target, Registry: shape.Registry}
	for i, item := range items {
		if err := setNested(sub, members[i], rest, item); err != nil {
			return err
		}
	}
	return nil
}

// normalizeValue converts driver values into plain Go values.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		return numericValue(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case int32:
		return int64(val)
	default:
		return v
	}
}

func numericValue(n pgtype.Numeric) any {
	if !n.Valid {
		return nil
	}
	if n.Exp >= 0 && n.Int != nil && n.Int.IsInt64() {
		if i, err := n.Int64Value(); err == nil && i.Valid {
			return i.Int64
		}
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return nil
	}
	return f.Float64
}
