package types

import "github.com/zoobzio/recql/schema"

// JoinType is the SQL join keyword.
type JoinType string

const (
	InnerJoin JoinType = "INNER JOIN"
	LeftJoin  JoinType = "LEFT JOIN"
)

// JoinStructure is a join registered on a query. Implementations are
// DirectJoin and AssociationJoin.
type JoinStructure interface {
	// Joined is the type the join reaches.
	Joined() *schema.Type
	// Alias is the alias under which the joined type's columns are addressed.
	Alias() string
	isJoinStructure()
}

// DirectJoin joins a table on a single column pair.
type DirectJoin struct {
	Type        JoinType
	LeftTable   string
	LeftColumn  string
	LeftAlias   string
	RightTable  string
	RightColumn string
	RightAlias  string
	JoinedType  *schema.Type
}

// Joined implements JoinStructure.
func (j DirectJoin) Joined() *schema.Type { return j.JoinedType }

// Alias implements JoinStructure.
func (j DirectJoin) Alias() string { return j.RightAlias }

func (DirectJoin) isJoinStructure() {}

// AssociationJoin joins an associated type through a linking table.
type AssociationJoin struct {
	Type JoinType

	BaseTable  string
	BaseAlias  string
	BaseColumn string

	LinkingTable  string
	LinkingAlias  string
	SelfColumn    string
	ForeignColumn string

	AssociatedTable  string
	AssociatedAlias  string
	AssociatedColumn string

	LinkingType    *schema.Type
	AssociatedType *schema.Type
}

// Joined implements JoinStructure.
func (j AssociationJoin) Joined() *schema.Type { return j.AssociatedType }

// Alias implements JoinStructure.
func (j AssociationJoin) Alias() string { return j.AssociatedAlias }

func (AssociationJoin) isJoinStructure() {}
