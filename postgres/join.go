package postgres

import (
	"fmt"

	"github.com/zoobzio/recql/internal/types"
	"github.com/zoobzio/recql/schema"
)

// renderTable renders "table AS alias", joined with the sharing relation when
// records of t are filtered for the caller.
func (r *Renderer) renderTable(ctx *renderContext, t *schema.Type, table, alias string, applySharing bool) string {
	base := quoteIdentifier(table) + " AS " + quoteIdentifier(alias)
	if !applySharing {
		return base
	}
	return "(" + base + r.sharingJoin(ctx, t, alias) + ")"
}

// sharingJoin renders the join restricting records of t, addressed by alias,
// to those shared with the caller.
func (r *Renderer) sharingJoin(ctx *renderContext, t *schema.Type, alias string) string {
	sharingAlias := ctx.nextSharingAlias(r.sharingTable)
	recordID := schema.ColumnSQL(sharingAlias, "recordid")
	own := schema.ColumnSQL(alias, t.IDField().Column)

	on := own + " = " + recordID
	if t.SharingControlledBy != "" {
		if ctl, ok := t.Field(t.SharingControlledBy); ok && ctl.DataType.Kind == schema.KindReference {
			controller := schema.ColumnSQL(alias, ctl.Column)
			on = controller + " = " + recordID
			if t.CombineRecordAndCascadeSharing {
				on = "(" + controller + " = " + recordID + " OR " + own + " = " + recordID + ")"
			}
		}
	}

	return fmt.Sprintf(" INNER JOIN %s AS %s ON %s AND %s = %s",
		quoteIdentifier(r.sharingTable),
		quoteIdentifier(sharingAlias),
		on,
		schema.ColumnSQL(sharingAlias, "assigneduser"),
		quoteLiteral(ctx.query.Access.UserID()),
	)
}

// renderJoin renders one registered join.
func (r *Renderer) renderJoin(ctx *renderContext, join types.JoinStructure) (string, error) {
	q := ctx.query
	switch j := join.(type) {
	case types.DirectJoin:
		apply, err := q.ApplySharing(j.JoinedType.ID)
		if err != nil {
			return "", err
		}
		right := r.renderTable(ctx, j.JoinedType, j.RightTable, j.RightAlias, apply)
		return fmt.Sprintf("%s %s ON %s = %s",
			j.Type,
			right,
			schema.ColumnSQL(j.LeftAlias, j.LeftColumn),
			schema.ColumnSQL(j.RightAlias, j.RightColumn),
		), nil

	case types.AssociationJoin:
		var linkSharing, assocSharing string
		applyLink, err := q.ApplySharing(j.LinkingType.ID)
		if err != nil {
			return "", err
		}
		if applyLink {
			linkSharing = r.sharingJoin(ctx, j.LinkingType, j.LinkingAlias)
		}
		applyAssoc, err := q.ApplySharing(j.AssociatedType.ID)
		if err != nil {
			return "", err
		}
		if applyAssoc {
			assocSharing = r.sharingJoin(ctx, j.AssociatedType, j.AssociatedAlias)
		}
		return renderAssociationJoin(j, linkSharing, assocSharing)

	default:
		return "", fmt.Errorf("unsupported join structure %T", join)
	}
}

// renderAssociationJoin renders the linking and associated tables as one
// bracketed inner join that is then joined to the owning table. It takes one
// sharing fragment per side; an empty fragment means no filtering.
func renderAssociationJoin(j types.AssociationJoin, sharing ...string) (string, error) {
	if len(sharing) != 2 {
		return "", fmt.Errorf("association join requires exactly 2 sharing fragments, got %d", len(sharing))
	}

	wrap := func(table, alias, fragment string) string {
		base := quoteIdentifier(table) + " AS " + quoteIdentifier(alias)
		if fragment == "" {
			return base
		}
		return "(" + base + fragment + ")"
	}

	return fmt.Sprintf("%s (%s INNER JOIN %s ON %s = %s) ON %s = %s",
		j.Type,
		wrap(j.LinkingTable, j.LinkingAlias, sharing[0]),
		wrap(j.AssociatedTable, j.AssociatedAlias, sharing[1]),
		schema.ColumnSQL(j.LinkingAlias, j.ForeignColumn),
		schema.ColumnSQL(j.AssociatedAlias, j.AssociatedColumn),
		schema.ColumnSQL(j.BaseAlias, j.BaseColumn),
		schema.ColumnSQL(j.LinkingAlias, j.SelfColumn),
	), nil
}
