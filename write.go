package recql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/zoobzio/recql/internal/status"
	"github.com/zoobzio/recql/internal/types"
	"github.com/zoobzio/recql/schema"
)

// Insert writes a new record and sets its id.
func (e *Engine) Insert(ctx context.Context, rec *Record) (*Record, error) {
	values, err := assignments(rec)
	if err != nil {
		return nil, err
	}
	m, err := e.renderer.RenderInsert(rec.Type, values)
	if err != nil {
		return nil, err
	}
	id, err := e.write(ctx, m, rec)
	if err != nil {
		return nil, err
	}
	rec.SetID(id)
	return rec, nil
}

// Update writes the set fields of a record identified by its id.
func (e *Engine) Update(ctx context.Context, rec *Record) (*Record, error) {
	if rec.ID() == "" {
		return nil, fmt.Errorf("cannot update %s record without id", rec.Type.Name)
	}
	where := NewForType(e.registry, rec.Type, WithoutMainTableAlias()).Add(Eq(schema.IDField, rec.ID()))
	if err := e.UpdateWhere(ctx, rec, where); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateWhere writes the set fields of rec, other than its id, to every
// record matched by where.
func (e *Engine) UpdateWhere(ctx context.Context, rec *Record, where *Criteria) error {
	q, err := where.Query()
	if err != nil {
		return err
	}
	values, err := assignments(rec)
	if err != nil {
		return err
	}
	values = withoutID(values)
	m, err := e.renderer.RenderUpdate(rec.Type, values, q)
	if err != nil {
		return err
	}
	_, err = e.write(ctx, m, rec)
	return err
}

// Delete removes records. All records must be of the same type.
func (e *Engine) Delete(ctx context.Context, records ...*Record) error {
	if len(records) == 0 {
		return nil
	}
	t := records[0].Type
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.Type != t {
			return fmt.Errorf("cannot delete records of types %s and %s together", t.Name, rec.Type.Name)
		}
		if rec.ID() == "" {
			return fmt.Errorf("cannot delete %s record without id", t.Name)
		}
		ids = append(ids, rec.ID())
	}
	m, err := e.renderer.RenderDelete(t, ids)
	if err != nil {
		return err
	}
	var subject *Record
	if len(records) == 1 {
		subject = records[0]
	}
	_, err = e.write(ctx, m, subject)
	return err
}

// write runs a mutation and interprets the status it reports.
func (e *Engine) write(ctx context.Context, m *Mutation, rec *Record) (string, error) {
	log := e.log.WithFields(logrus.Fields{
		"query_id":  uuid.NewString(),
		"type":      m.Type.Name,
		"operation": m.Kind.String(),
	})
	log.WithField("statement", m.Statement).Debug("executing write")

	raw, err := e.callProcedure(ctx, m)
	if err != nil {
		err = e.driverError(err, m, rec)
		log.WithError(err).Warn("write failed")
		return "", err
	}

	id, err := interpretStatus(e.registry, m, raw, e.successCode, rec)
	if err != nil {
		log.WithError(err).WithField("status", raw).Warn("write rejected")
		return "", err
	}
	return id, nil
}

var errNoStatus = errors.New("write procedure returned no status")

func (e *Engine) callProcedure(ctx context.Context, m *Mutation) (string, error) {
	rows, err := e.querier(ctx).Query(ctx, m.SQL, m.Statement)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", errNoStatus
	}
	var raw *string
	if err := rows.Scan(&raw); err != nil {
		return "", err
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", err
	}
	if raw == nil {
		return "", errNoStatus
	}
	return *raw, nil
}

// driverError maps errors raised by the driver rather than reported as a
// status. Duplicate keys on unique check constraints become unique violations.
func (e *Engine) driverError(err error, m *Mutation, rec *Record) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == status.UniqueViolation {
		constraint := pgErr.ConstraintName
		if constraint == "" {
			constraint = constraintFromMessage(pgErr.Message)
		}
		if strings.Contains(pgErr.Message, schema.UniqueCheckPrefix) || strings.HasPrefix(constraint, schema.UniqueCheckPrefix) {
			return uniqueViolation(e.registry, constraint, rec)
		}
	}
	return &UncategorizedError{Statement: m.Statement, Err: err}
}

// constraintFromMessage extracts the unique check name from a driver message
// such as `duplicate key value violates unique constraint "unique_check_x_1"`.
func constraintFromMessage(msg string) string {
	start := strings.Index(msg, schema.UniqueCheckPrefix)
	if start < 0 {
		return ""
	}
	end := strings.IndexAny(msg[start:], "\" '")
	if end < 0 {
		return msg[start:]
	}
	return msg[start : start+end]
}

// interpretStatus maps a write status onto the new record id or an error.
func interpretStatus(reg schema.Registry, m *Mutation, raw, successCode string, rec *Record) (string, error) {
	st, err := status.Parse(raw)
	if err != nil {
		return "", &UncategorizedError{Status: raw, Statement: m.Statement, Err: err}
	}

	kind, id := st.Classify(successCode, m.Kind == types.MutationInsert)
	switch kind {
	case status.Success:
		return id, nil
	case status.EditPrivilege:
		return "", &PrivilegeError{Code: st.Code, Message: "cannot edit record"}
	case status.DeletePrivilege:
		return "", &PrivilegeError{Code: st.Code, Message: "cannot delete record"}
	case status.EditSystemImmutablePrivilege:
		return "", &PrivilegeError{Code: st.Code, Message: "cannot edit system immutable record"}
	case status.DeleteSystemImmutablePrivilege:
		return "", &PrivilegeError{Code: st.Code, Message: "cannot delete system immutable record"}
	case status.AccessTypeImmutable:
		return "", &AccessTypeError{}
	case status.Unique:
		return "", uniqueViolation(reg, st.Constraint, rec)
	case status.NotNull:
		return "", &NotNullViolationError{Table: st.Table, Column: st.Column}
	case status.ForeignKey:
		return "", &ForeignKeyViolationError{Table: st.Table, Constraint: st.Constraint}
	case status.UnknownTable:
		return "", &UnknownTableError{Table: st.Table}
	case status.Uncategorized:
		return "", &UncategorizedError{Status: raw, Statement: m.Statement}
	default:
		return "", &UncategorizedError{Status: raw, Statement: m.Statement}
	}
}

// uniqueViolation resolves a unique check constraint name to its definition.
func uniqueViolation(reg schema.Registry, constraint string, rec *Record) error {
	typeID, err := status.ParseUniqueCheckName(schema.UniqueCheckPrefix, constraint)
	if err != nil {
		return &UnparseableConstraintError{Constraint: constraint, Err: err}
	}
	t, ok := reg.TypeByID(typeID)
	if !ok {
		return &UnparseableConstraintError{Constraint: constraint, Err: schema.ErrUnknownType}
	}
	check, ok := t.UniqueCheckByDBName(constraint)
	if !ok {
		return &UnparseableConstraintError{Constraint: constraint, Err: fmt.Errorf("type %s has no such unique check", t.Name)}
	}
	return &UniqueViolationError{Check: check, Record: rec}
}

// assignments lists the stored fields set on rec in declaration order.
func assignments(rec *Record) ([]Assignment, error) {
	var out []Assignment
	for _, f := range rec.Type.Fields() {
		if !f.DataType.Kind.HasColumn() || !rec.Has(f.Name) {
			continue
		}
		v, _ := rec.Get(f.Name)
		if ref, ok := v.(*Record); ok {
			if ref == nil {
				v = nil
			} else {
				v = ref.ID()
			}
		}
		if f.Name == schema.IDField && v == "" {
			continue
		}
		out = append(out, Assignment{Field: f, Value: v})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s record has no values to write", rec.Type.Name)
	}
	return out, nil
}

func withoutID(values []Assignment) []Assignment {
	out := values[:0:0]
	for _, a := range values {
		if a.Field.Name != schema.IDField {
			out = append(out, a)
		}
	}
	return out
}
