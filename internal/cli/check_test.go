package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// schemaColumns lists the columns a database created from the schema document would report.
func schemaColumns(t *testing.T) []Column {
	t.Helper()
	project, err := loadSchema(t).ToDBML("schema")
	require.NoError(t, err)

	var columns []Column
	for _, table := range project.Tables {
		for _, c := range table.Columns {
			columns = append(columns, Column{Table: table.Name, Name: c.Name, Type: c.Type})
		}
	}
	return columns
}

func TestDatabaseProject(t *testing.T) {
	project := DatabaseProject("db", []Column{
		{Table: "obj_pigeon", Name: "id", Type: "character varying"},
		{Table: "obj_pigeon", Name: "name", Type: "character varying"},
		{Table: "obj_egg", Name: "weight", Type: "numeric"},
	})

	require.Len(t, project.Tables, 2)
	tables := make(map[string][]string)
	for _, table := range project.Tables {
		for _, c := range table.Columns {
			tables[table.Name] = append(tables[table.Name], c.Name)
		}
	}
	assert.Equal(t, []string{"id", "name"}, tables["obj_pigeon"])
	assert.Equal(t, []string{"weight"}, tables["obj_egg"])
}

func TestDatabaseProject_CheckSchema(t *testing.T) {
	reg := loadSchema(t)
	columns := schemaColumns(t)
	require.NotEmpty(t, columns)

	assert.NoError(t, reg.CheckDBML(DatabaseProject("db", columns)))

	var missing []Column
	for _, c := range columns {
		if c.Table == "obj_pigeon" && c.Name == "age_col" {
			continue
		}
		missing = append(missing, c)
	}
	err := reg.CheckDBML(DatabaseProject("db", missing))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column 'obj_pigeon.age_col' not found")

	err = reg.CheckDBML(DatabaseProject("db", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table 'obj_pigeon' not found")
}
