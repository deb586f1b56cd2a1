package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/recql"
	"github.com/zoobzio/recql/internal/cli"
	"github.com/zoobzio/recql/postgres"
	"github.com/zoobzio/recql/schema"
	rtesting "github.com/zoobzio/recql/testing"
)

// fixture holds the ids of the seeded records.
type fixture struct {
	dad, mum, coo, doo string
	eggs               []string
	student            string
	art, math          string
}

func newEngine(t *testing.T) (*recql.Engine, *PostgresContainer, schema.Registry) {
	t.Helper()
	pc := getPostgresContainer(t)
	setupSchema(context.Background(), t, pc)
	reg := rtesting.Registry()
	return recql.NewEngine(pc.pool, postgres.New(), reg), pc, reg
}

func insert(ctx context.Context, t *testing.T, e *recql.Engine, rec *recql.Record) string {
	t.Helper()
	_, err := e.Insert(ctx, rec)
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID())
	return rec.ID()
}

func seed(ctx context.Context, t *testing.T, e *recql.Engine, reg schema.Registry) fixture {
	t.Helper()
	pigeon := rtesting.MustType(t, reg, "Pigeon")
	egg := rtesting.MustType(t, reg, "Egg")

	var f fixture
	f.dad = insert(ctx, t, e, recql.NewRecord(pigeon).Set("name", "Dad").Set("age", 5))
	f.mum = insert(ctx, t, e, recql.NewRecord(pigeon).Set("name", "Mum").Set("age", 4))
	f.coo = insert(ctx, t, e, recql.NewRecord(pigeon).Set("name", "Coo").Set("age", 1).Set("father", f.dad).Set("mother", f.mum))
	f.doo = insert(ctx, t, e, recql.NewRecord(pigeon).Set("name", "Doo").Set("age", 2).Set("father", f.dad).Set("mother", f.mum))
	for _, w := range []float64{1.25, 2, 3} {
		f.eggs = append(f.eggs, insert(ctx, t, e, recql.NewRecord(egg).Set("weight", w).Set("layer", f.dad)))
	}

	student := rtesting.MustType(t, reg, "Student")
	course := rtesting.MustType(t, reg, "Course")
	enrollment := rtesting.MustType(t, reg, "Enrollment")
	f.student = insert(ctx, t, e, recql.NewRecord(student).Set("name", "Ada"))
	f.art = insert(ctx, t, e, recql.NewRecord(course).Set("title", "Art").Set("credits", 3))
	f.math = insert(ctx, t, e, recql.NewRecord(course).Set("title", "Math").Set("credits", 5))
	insert(ctx, t, e, recql.NewRecord(enrollment).Set("student", f.student).Set("course", f.art))
	insert(ctx, t, e, recql.NewRecord(enrollment).Set("student", f.student).Set("course", f.math))
	return f
}

// asFloat converts a materialized number for comparison.
func asFloat(t *testing.T, v any) float64 {
	t.Helper()
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		t.Fatalf("expected a number, got %T", v)
		return 0
	}
}

func TestPostgres_SelectNested(t *testing.T) {
	ctx := context.Background()
	e, _, reg := newEngine(t)
	f := seed(ctx, t, e, reg)

	rec, err := e.ExecuteSingle(ctx, recql.New(reg, "Pigeon").Select("name", "age", "father.name", "mother.name").Add(recql.Eq("id", f.coo)))
	require.NoError(t, err)
	require.NotNil(t, rec)

	name, _ := rec.Get("name")
	assert.Equal(t, "Coo", name)
	age, _ := rec.Get("age")
	assert.Equal(t, 1.0, asFloat(t, age))
	father, _ := rec.Get("father.name")
	assert.Equal(t, "Dad", father)
	mother, _ := rec.Get("mother.name")
	assert.Equal(t, "Mum", mother)
}

func TestPostgres_Collections(t *testing.T) {
	ctx := context.Background()
	e, _, reg := newEngine(t)
	f := seed(ctx, t, e, reg)

	records, err := e.Execute(ctx, recql.New(reg, "Pigeon").
		Select("name", "children.name", "eggs.weight").
		Add(recql.In("id", f.dad, f.coo)).
		OrderBy("name", recql.ASC))
	require.NoError(t, err)
	require.Len(t, records, 2)

	coo, dad := records[0], records[1]
	assert.Empty(t, coo.Collection("children"))
	assert.Empty(t, coo.Collection("eggs"))

	children := dad.Collection("children")
	require.Len(t, children, 2)
	first, _ := children[0].Get("name")
	second, _ := children[1].Get("name")
	assert.ElementsMatch(t, []any{"Coo", "Doo"}, []any{first, second})

	eggs := dad.Collection("eggs")
	require.Len(t, eggs, 3)
	var weights []float64
	for _, egg := range eggs {
		w, _ := egg.Get("weight")
		weights = append(weights, asFloat(t, w))
	}
	assert.ElementsMatch(t, []float64{1.25, 2, 3}, weights)
}

func TestPostgres_CollectionWithNestedRestriction(t *testing.T) {
	ctx := context.Background()
	e, _, reg := newEngine(t)
	f := seed(ctx, t, e, reg)

	egg := rtesting.MustType(t, reg, "Egg")
	for _, w := range []float64{2, 3} {
		insert(ctx, t, e, recql.NewRecord(egg).Set("weight", w).Set("layer", f.coo))
	}
	for _, w := range []float64{2, 3, 4} {
		insert(ctx, t, e, recql.NewRecord(egg).Set("weight", w).Set("layer", f.doo))
	}

	rec, err := e.ExecuteSingle(ctx, recql.New(reg, "Pigeon").
		Select("name", "children.name").
		Add(recql.Eq("id", f.dad)).
		Add(recql.Gt("children.eggs.weight", 1)))
	require.NoError(t, err)
	require.NotNil(t, rec)

	children := rec.Collection("children")
	require.Len(t, children, 2)
	first, _ := children[0].Get("name")
	second, _ := children[1].Get("name")
	assert.ElementsMatch(t, []any{"Coo", "Doo"}, []any{first, second})
}

func TestPostgres_CheckSchema(t *testing.T) {
	ctx := context.Background()
	_, pc, _ := newEngine(t)

	columns, err := cli.DatabaseColumns(ctx, pc.pool)
	require.NoError(t, err)

	reg := rtesting.Registry()
	require.NoError(t, reg.CheckDBML(cli.DatabaseProject("test", columns)))

	pc.Exec(ctx, t, `ALTER TABLE obj_egg DROP COLUMN weight`)
	columns, err = cli.DatabaseColumns(ctx, pc.pool)
	require.NoError(t, err)
	err = reg.CheckDBML(cli.DatabaseProject("test", columns))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column 'obj_egg.weight' not found")
}

func TestPostgres_Association(t *testing.T) {
	ctx := context.Background()
	e, _, reg := newEngine(t)
	seed(ctx, t, e, reg)

	rec, err := e.ExecuteSingle(ctx, recql.New(reg, "Student").Select("name", "courses.title"))
	require.NoError(t, err)
	require.NotNil(t, rec)

	courses := rec.Collection("courses")
	require.Len(t, courses, 2)
	var titles []any
	for _, c := range courses {
		title, _ := c.Get("title")
		titles = append(titles, title)
	}
	assert.ElementsMatch(t, []any{"Art", "Math"}, titles)
}

func TestPostgres_SubqueryAndCount(t *testing.T) {
	ctx := context.Background()
	e, _, reg := newEngine(t)
	seed(ctx, t, e, reg)

	c := recql.New(reg, "Pigeon").Select("name")
	c.Add(recql.InSubquery("father", c.Subquery("Pigeon").Select("id").Add(recql.Eq("name", "Dad"))))
	records, err := e.Execute(ctx, c)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	n, err := e.Count(ctx, recql.New(reg, "Pigeon").AddAggregate(recql.AggCount, "id"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	results, err := e.ExecuteResults(ctx, recql.New(reg, "Pigeon").AddGroupBy("father").AddAggregate(recql.AggCount, "id"))
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		count, err := r.SingleAggregateValue()
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	}
}

func TestPostgres_Sharing(t *testing.T) {
	ctx := context.Background()
	e, pc, reg := newEngine(t)
	f := seed(ctx, t, e, reg)

	pc.Exec(ctx, t, `INSERT INTO userrecordsharing (recordid, assigneduser) VALUES ($1, 'u1'), ($2, 'u1')`, f.dad, f.coo)

	access := recql.NewStaticAccess("u1").GrantRead(rtesting.PigeonID, rtesting.EggID)
	records, err := e.Execute(ctx, recql.New(reg, "Pigeon", recql.WithAccess(access)).Select("name"))
	require.NoError(t, err)
	assert.Len(t, records, 2)

	eggs, err := e.Execute(ctx, recql.New(reg, "Egg", recql.WithAccess(access)))
	require.NoError(t, err)
	assert.Len(t, eggs, 3, "eggs are shared through their layer")

	all, err := e.Execute(ctx, recql.New(reg, "Pigeon", recql.WithAccess(recql.NewStaticAccess("u1").GrantReadAll(rtesting.PigeonID))))
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestPostgres_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	e, _, reg := newEngine(t)
	f := seed(ctx, t, e, reg)
	pigeon := rtesting.MustType(t, reg, "Pigeon")
	egg := rtesting.MustType(t, reg, "Egg")

	_, err := e.Update(ctx, recql.NewRecord(pigeon).SetID(f.coo).Set("age", 3))
	require.NoError(t, err)
	rec, err := e.ExecuteSingle(ctx, recql.New(reg, "Pigeon").Select("age").Add(recql.Eq("id", f.coo)))
	require.NoError(t, err)
	age, _ := rec.Get("age")
	assert.Equal(t, 3.0, asFloat(t, age))

	require.NoError(t, e.Delete(ctx, recql.NewRecord(egg).SetID(f.eggs[0])))
	n, err := e.Count(ctx, recql.New(reg, "Egg").AddAggregate(recql.AggCount, "id"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPostgres_WriteViolations(t *testing.T) {
	ctx := context.Background()
	e, _, reg := newEngine(t)
	seed(ctx, t, e, reg)
	pigeon := rtesting.MustType(t, reg, "Pigeon")
	egg := rtesting.MustType(t, reg, "Egg")

	dup := recql.NewRecord(pigeon).Set("name", "Dad")
	_, err := e.Insert(ctx, dup)
	var ue *recql.UniqueViolationError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "UniquePigeonName", ue.Check.Name)
	assert.Same(t, dup, ue.Record)

	_, err = e.Insert(ctx, recql.NewRecord(pigeon).Set("age", 1))
	var ne *recql.NotNullViolationError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "obj_pigeon", ne.Table)
	assert.Equal(t, "name", ne.Column)

	_, err = e.Insert(ctx, recql.NewRecord(egg).Set("layer", "9999999999999"))
	var fe *recql.ForeignKeyViolationError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "obj_egg", fe.Table)
}
