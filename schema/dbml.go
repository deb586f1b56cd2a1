package schema

import (
	"errors"
	"fmt"

	"github.com/zoobzio/dbml"
)

// ToDBML describes the physical tables behind the registered types.
func (m *Memory) ToDBML(name string) (*dbml.Project, error) {
	project := dbml.NewProject(name)
	for _, t := range m.Types() {
		table := dbml.NewTable(t.Table)
		for _, f := range t.Fields() {
			if !f.DataType.Kind.HasColumn() {
				continue
			}
			pgType, err := f.DataType.PostgresType()
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", t.Name, f.Name, err)
			}
			table.AddColumn(dbml.NewColumn(f.Column, pgType))
		}
		project.AddTable(table)
	}
	return project, nil
}

// CheckDBML verifies that every type table and stored column exists in project.
func (m *Memory) CheckDBML(project *dbml.Project) error {
	if project == nil {
		return fmt.Errorf("project cannot be nil")
	}

	columns := make(map[string]map[string]bool)
	for _, table := range project.Tables {
		cols := make(map[string]bool)
		for _, col := range table.Columns {
			cols[col.Name] = true
		}
		columns[table.Name] = cols
	}

	var errs []error
	for _, t := range m.Types() {
		cols, ok := columns[t.Table]
		if !ok {
			errs = append(errs, fmt.Errorf("type %s: table '%s' not found in schema", t.Name, t.Table))
			continue
		}
		for _, f := range t.Fields() {
			if f.DataType.Kind.HasColumn() && !cols[f.Column] {
				errs = append(errs, fmt.Errorf("type %s: column '%s.%s' not found in schema", t.Name, t.Table, f.Column))
			}
		}
	}
	return errors.Join(errs...)
}
