package schema

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrUnknownType is returned when a type cannot be found.
	ErrUnknownType = errors.New("unknown type")
	// ErrUnknownField is returned when a path names a field the type does not have.
	ErrUnknownField = errors.New("unknown field")
	// ErrIncompleteMetadata is returned when a relationship cannot be resolved to its target.
	ErrIncompleteMetadata = errors.New("incomplete metadata")
)

// Registry looks up types.
type Registry interface {
	TypeByID(id string) (*Type, bool)
	TypeByName(name string) (*Type, bool)
}

// Memory is an in-memory Registry safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	byID   map[string]*Type
	byName map[string]*Type
	order  []*Type
}

// NewMemory creates an empty registry.
func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[string]*Type),
		byName: make(map[string]*Type),
	}
}

// Add registers a type.
func (m *Memory) Add(t *Type) error {
	if t.ID == "" || t.Name == "" || t.Table == "" {
		return fmt.Errorf("type %q: id, name and table are required", t.Name)
	}
	if t.IDField() == nil {
		return fmt.Errorf("type %s: missing %q field", t.Name, IDField)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[t.ID]; ok {
		return fmt.Errorf("duplicate type id %q", t.ID)
	}
	key := strings.ToLower(t.Name)
	if _, ok := m.byName[key]; ok {
		return fmt.Errorf("duplicate type name %q", t.Name)
	}
	m.byID[t.ID] = t
	m.byName[key] = t
	m.order = append(m.order, t)
	return nil
}

// MustAdd registers types and panics on error.
func (m *Memory) MustAdd(types ...*Type) *Memory {
	for _, t := range types {
		if err := m.Add(t); err != nil {
			panic(err)
		}
	}
	return m
}

// TypeByID implements Registry.
func (m *Memory) TypeByID(id string) (*Type, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.byID[id]
	return t, ok
}

// TypeByName implements Registry. Names are case-insensitive.
func (m *Memory) TypeByName(name string) (*Type, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.byName[strings.ToLower(name)]
	return t, ok
}

// Types returns the registered types in registration order.
func (m *Memory) Types() []*Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Type, len(m.order))
	copy(out, m.order)
	return out
}

// Validate checks that every relationship in the registry resolves.
func (m *Memory) Validate() error {
	var errs []error
	for _, t := range m.Types() {
		for _, f := range t.Fields() {
			if !f.DataType.Kind.IsRelationship() {
				continue
			}
			if _, err := Target(m, f); err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", t.Name, f.Name, err))
			}
			if f.DataType.Kind == KindAssociation {
				if _, _, err := LinkingFields(m, f); err != nil {
					errs = append(errs, fmt.Errorf("%s.%s: %w", t.Name, f.Name, err))
				}
			}
		}
		if t.SharingControlledBy != "" {
			f, ok := t.Field(t.SharingControlledBy)
			if !ok || f.DataType.Kind != KindReference {
				errs = append(errs, fmt.Errorf("%s: sharing controlled by %q: %w", t.Name, t.SharingControlledBy, ErrIncompleteMetadata))
			}
		}
	}
	return errors.Join(errs...)
}

// Target returns the type reached through a relationship field.
func Target(reg Registry, f *Field) (*Type, error) {
	var id string
	switch f.DataType.Kind {
	case KindReference:
		id = f.DataType.RefType
	case KindInverseCollection:
		id = f.DataType.InverseType
	case KindAssociation:
		id = f.DataType.AssociatedType
	default:
		return nil, fmt.Errorf("field %s is not a relationship", f.Name)
	}
	t, ok := reg.TypeByID(id)
	if !ok {
		return nil, fmt.Errorf("field %s: target type %q: %w", f.Name, id, ErrIncompleteMetadata)
	}
	return t, nil
}

// InverseField returns the reference field on the inverse type that backs an
// inverse collection.
func InverseField(reg Registry, f *Field) (*Type, *Field, error) {
	inverse, err := Target(reg, f)
	if err != nil {
		return nil, nil, err
	}
	ref, ok := inverse.Field(f.DataType.InverseField)
	if !ok || ref.DataType.Kind != KindReference {
		return nil, nil, fmt.Errorf("field %s: inverse field %s.%s: %w", f.Name, inverse.Name, f.DataType.InverseField, ErrIncompleteMetadata)
	}
	return inverse, ref, nil
}

// LinkingFields resolves the linking type of an association and returns its
// self-linking and foreign-linking reference fields.
func LinkingFields(reg Registry, f *Field) (*Field, *Field, error) {
	if f.DataType.Kind != KindAssociation {
		return nil, nil, fmt.Errorf("field %s is not an association", f.Name)
	}
	linking, ok := reg.TypeByID(f.DataType.LinkingType)
	if !ok {
		return nil, nil, fmt.Errorf("field %s: linking type %q: %w", f.Name, f.DataType.LinkingType, ErrIncompleteMetadata)
	}
	self, ok := linking.Field(f.DataType.SelfLinkingField)
	if !ok || self.DataType.Kind != KindReference {
		return nil, nil, fmt.Errorf("field %s: self linking field %q: %w", f.Name, f.DataType.SelfLinkingField, ErrIncompleteMetadata)
	}
	foreign, ok := linking.Field(f.DataType.ForeignLinkingField)
	if !ok || foreign.DataType.Kind != KindReference {
		return nil, nil, fmt.Errorf("field %s: foreign linking field %q: %w", f.Name, f.DataType.ForeignLinkingField, ErrIncompleteMetadata)
	}
	return self, foreign, nil
}

// Step is one hop of a resolved property path.
type Step struct {
	Owner *Type
	Field *Field
	// Target is the type reached through Field when it is a relationship.
	Target *Type
}

// Walk resolves a dot-separated property path starting at t.
// Every segment but the last must be a relationship.
func Walk(reg Registry, t *Type, path string) ([]Step, error) {
	if path == "" {
		return nil, fmt.Errorf("empty property path")
	}
	segments := strings.Split(path, ".")
	steps := make([]Step, 0, len(segments))
	owner := t
	for i, seg := range segments {
		f, ok := owner.Field(seg)
		if !ok {
			return nil, fmt.Errorf("%s on type %s: %w", seg, owner.Name, ErrUnknownField)
		}
		step := Step{Owner: owner, Field: f}
		if f.DataType.Kind.IsRelationship() {
			target, err := Target(reg, f)
			if err != nil {
				return nil, err
			}
			step.Target = target
		} else if i < len(segments)-1 {
			return nil, fmt.Errorf("%s on type %s is not a relationship: %w", seg, owner.Name, ErrUnknownField)
		}
		steps = append(steps, step)
		owner = step.Target
	}
	return steps, nil
}

// Resolve returns the last field of a property path together with its owning type.
func Resolve(reg Registry, t *Type, path string) (*Type, *Field, error) {
	steps, err := Walk(reg, t, path)
	if err != nil {
		return nil, nil, err
	}
	last := steps[len(steps)-1]
	return last.Owner, last.Field, nil
}
