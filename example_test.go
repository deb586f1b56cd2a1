package recql_test

import (
	"fmt"

	"github.com/zoobzio/recql"
	"github.com/zoobzio/recql/postgres"
	"github.com/zoobzio/recql/schema"
)

func exampleRegistry() *schema.Memory {
	pigeon := schema.NewType("0010000000001", "Pigeon", "obj_pigeon")
	pigeon.AddField(&schema.Field{Name: "name", Column: "name", DataType: schema.Text(30)})
	pigeon.AddField(&schema.Field{Name: "age", Column: "age", DataType: schema.Number(0)})
	pigeon.AddField(&schema.Field{Name: "father", Column: "father", DataType: schema.Reference("0010000000001")})
	pigeon.AddField(&schema.Field{Name: "children", DataType: schema.InverseCollection("0010000000001", "father")})
	return schema.NewMemory().MustAdd(pigeon)
}

func ExampleNew() {
	reg := exampleRegistry()

	c := recql.New(reg, "Pigeon").
		AddProperty("name, father.name").
		Add(recql.Gt("age", 2)).
		OrderBy("name", recql.ASC).
		Limit(10)

	q, _ := c.Query()
	compiled, err := postgres.New().Compile(q)
	if err != nil {
		panic(err)
	}
	fmt.Println(compiled.SQL)
	// Output:
	// SELECT "this"."id" AS "id", "this"."name" AS "name", "father_1"."name" AS "father.name" FROM "obj_pigeon" AS "this" LEFT JOIN "obj_pigeon" AS "father_1" ON "this"."father" = "father_1"."id" WHERE ("this"."age" > 2) ORDER BY "this"."name" ASC LIMIT 10
}

func ExampleOr() {
	reg := exampleRegistry()

	c := recql.New(reg, "Pigeon").
		Add(recql.Or(recql.Eq("name", "Coo"), recql.IsNull("father")))

	q, _ := c.Query()
	compiled, err := postgres.New().Compile(q)
	if err != nil {
		panic(err)
	}
	fmt.Println(compiled.SQL)
	// Output:
	// SELECT "this"."id" AS "id" FROM "obj_pigeon" AS "this" WHERE (("this"."name" = 'Coo') OR ("this"."father" IS NULL))
}

func ExampleWithAccess() {
	reg := exampleRegistry()
	access := recql.NewStaticAccess("u1").GrantRead("0010000000001")

	c := recql.New(reg, "Pigeon", recql.WithAccess(access)).Select("name")

	q, _ := c.Query()
	compiled, err := postgres.New().Compile(q)
	if err != nil {
		panic(err)
	}
	fmt.Println(compiled.SQL)
	// Output:
	// SELECT "this"."id" AS "id", "this"."name" AS "name" FROM ("obj_pigeon" AS "this" INNER JOIN "userrecordsharing" AS "userrecordsharing_0" ON "this"."id" = "userrecordsharing_0"."recordid" AND "userrecordsharing_0"."assigneduser" = 'u1')
}

func ExampleCriteria_AddAggregate() {
	reg := exampleRegistry()

	c := recql.New(reg, "Pigeon").
		AddGroupBy("father").
		AddAggregate(recql.AggCount, "id")

	q, _ := c.Query()
	compiled, err := postgres.New().Compile(q)
	if err != nil {
		panic(err)
	}
	fmt.Println(compiled.SQL)
	fmt.Println(compiled.Shape.Aggregate)
	// Output:
	// SELECT COUNT("this"."id") AS "count(id)", "this"."father" AS "father" FROM "obj_pigeon" AS "this" GROUP BY "this"."father"
	// true
}

func ExampleIn() {
	reg := exampleRegistry()

	c := recql.New(reg, "Pigeon").Select("name")
	c.Add(recql.InSubquery("father", c.Subquery("Pigeon").Select("id").Add(recql.Ge("age", 5))))

	q, _ := c.Query()
	compiled, err := postgres.New().Compile(q)
	if err != nil {
		panic(err)
	}
	fmt.Println(compiled.SQL)
	// Output:
	// SELECT "this"."id" AS "id", "this"."name" AS "name" FROM "obj_pigeon" AS "this" WHERE ("this"."father" IN (SELECT "this"."id" AS "id" FROM "obj_pigeon" AS "this" WHERE ("this"."age" >= 5)))
}
