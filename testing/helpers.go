// Package testing provides test fixtures for recql.
package testing

import (
	"strings"
	"testing"

	"github.com/zoobzio/dbml"

	"github.com/zoobzio/recql/schema"
)

// Type ids of the fixture schema.
const (
	PigeonID     = "0010000000001"
	EggID        = "0010000000002"
	StudentID    = "0010000000003"
	CourseID     = "0010000000004"
	EnrollmentID = "0010000000005"
)

// PigeonNameCheck is the database name of the unique check on Pigeon.name.
const PigeonNameCheck = "unique_check_" + PigeonID + "_1"

// Registry creates the fixture schema:
//
//	Pigeon     name, age, hatched, father -> Pigeon, mother -> Pigeon,
//	           children <- Pigeon.father, eggs <- Egg.layer, label (formula)
//	Egg        weight, layer -> Pigeon; sharing follows layer or the egg itself
//	Student    name, courses <-> Course through Enrollment
//	Course     title, credits
//	Enrollment student -> Student, course -> Course
func Registry() *schema.Memory {
	pigeon := schema.NewType(PigeonID, "Pigeon", "obj_pigeon")
	pigeon.DefaultField = "name"
	pigeon.AddField(&schema.Field{Name: "name", Column: "name", DataType: schema.Text(30), Required: true})
	pigeon.AddField(&schema.Field{Name: "age", Column: "age_col", DataType: schema.Number(0)})
	pigeon.AddField(&schema.Field{Name: "hatched", Column: "hatched", DataType: schema.DateTime()})
	pigeon.AddField(&schema.Field{Name: "father", Column: "father", DataType: schema.Reference(PigeonID)})
	pigeon.AddField(&schema.Field{Name: "mother", Column: "mother", DataType: schema.Reference(PigeonID)})
	pigeon.AddField(&schema.Field{Name: "children", DataType: schema.InverseCollection(PigeonID, "father")})
	pigeon.AddField(&schema.Field{Name: "eggs", DataType: schema.InverseCollection(EggID, "layer")})
	pigeon.AddField(&schema.Field{Name: "label", DataType: schema.Formula("{name} || ' (' || {age} || ')'", schema.KindText)})
	pigeon.UniqueChecks = []schema.UniqueCheck{
		{Name: "UniquePigeonName", DBName: PigeonNameCheck, TypeID: PigeonID, Fields: []string{"name"}},
	}

	egg := schema.NewType(EggID, "Egg", "obj_egg")
	egg.AddField(&schema.Field{Name: "weight", Column: "weight", DataType: schema.Number(2)})
	egg.AddField(&schema.Field{Name: "layer", Column: "layer", DataType: schema.Reference(PigeonID)})
	egg.SharingControlledBy = "layer"
	egg.CombineRecordAndCascadeSharing = true

	student := schema.NewType(StudentID, "Student", "obj_student")
	student.AddField(&schema.Field{Name: "name", Column: "name", DataType: schema.Text(100)})
	student.AddField(&schema.Field{Name: "courses", DataType: schema.Association(EnrollmentID, "student", "course", CourseID)})

	course := schema.NewType(CourseID, "Course", "obj_course")
	course.AddField(&schema.Field{Name: "title", Column: "title", DataType: schema.Text(100)})
	course.AddField(&schema.Field{Name: "credits", Column: "credits", DataType: schema.Number(0)})

	enrollment := schema.NewType(EnrollmentID, "Enrollment", "obj_enrollment")
	enrollment.AddField(&schema.Field{Name: "student", Column: "student", DataType: schema.Reference(StudentID)})
	enrollment.AddField(&schema.Field{Name: "course", Column: "course", DataType: schema.Reference(CourseID)})

	return schema.NewMemory().MustAdd(pigeon, egg, student, course, enrollment)
}

// MustType returns the fixture type with the given name.
func MustType(t *testing.T, reg schema.Registry, name string) *schema.Type {
	t.Helper()
	typ, ok := reg.TypeByName(name)
	if !ok {
		t.Fatalf("type %s not found", name)
	}
	return typ
}

// Project describes the physical tables behind Registry, including the
// sharing relation.
func Project() *dbml.Project {
	project := dbml.NewProject("recql")

	pigeon := dbml.NewTable("obj_pigeon")
	pigeon.AddColumn(dbml.NewColumn("id", "character varying(13)"))
	pigeon.AddColumn(dbml.NewColumn("name", "character varying(30)"))
	pigeon.AddColumn(dbml.NewColumn("age_col", "numeric(18, 0)"))
	pigeon.AddColumn(dbml.NewColumn("hatched", "timestamp without time zone"))
	pigeon.AddColumn(dbml.NewColumn("father", "character varying(13)"))
	pigeon.AddColumn(dbml.NewColumn("mother", "character varying(13)"))
	project.AddTable(pigeon)

	egg := dbml.NewTable("obj_egg")
	egg.AddColumn(dbml.NewColumn("id", "character varying(13)"))
	egg.AddColumn(dbml.NewColumn("weight", "numeric(18, 2)"))
	egg.AddColumn(dbml.NewColumn("layer", "character varying(13)"))
	project.AddTable(egg)

	student := dbml.NewTable("obj_student")
	student.AddColumn(dbml.NewColumn("id", "character varying(13)"))
	student.AddColumn(dbml.NewColumn("name", "character varying(100)"))
	project.AddTable(student)

	course := dbml.NewTable("obj_course")
	course.AddColumn(dbml.NewColumn("id", "character varying(13)"))
	course.AddColumn(dbml.NewColumn("title", "character varying(100)"))
	course.AddColumn(dbml.NewColumn("credits", "numeric(18, 0)"))
	project.AddTable(course)

	enrollment := dbml.NewTable("obj_enrollment")
	enrollment.AddColumn(dbml.NewColumn("id", "character varying(13)"))
	enrollment.AddColumn(dbml.NewColumn("student", "character varying(13)"))
	enrollment.AddColumn(dbml.NewColumn("course", "character varying(13)"))
	project.AddTable(enrollment)

	sharing := dbml.NewTable("userrecordsharing")
	sharing.AddColumn(dbml.NewColumn("recordid", "character varying(13)"))
	sharing.AddColumn(dbml.NewColumn("assigneduser", "character varying(13)"))
	project.AddTable(sharing)

	return project
}

// Access is a caller identity with fixed grants, keyed by type id.
type Access struct {
	User    string
	Read    map[string]bool
	ReadAll map[string]bool
}

// UserID returns the caller id.
func (a Access) UserID() string { return a.User }

// CanReadType reports whether the caller may read some records of the type.
func (a Access) CanReadType(typeID string) bool { return a.Read[typeID] || a.ReadAll[typeID] }

// CanReadAllType reports whether the caller may read every record of the type.
func (a Access) CanReadAllType(typeID string) bool { return a.ReadAll[typeID] }

// PartialAccess returns an identity that may read shared records of the given types.
func PartialAccess(user string, typeIDs ...string) Access {
	a := Access{User: user, Read: make(map[string]bool), ReadAll: make(map[string]bool)}
	for _, id := range typeIDs {
		a.Read[id] = true
	}
	return a
}

// FullAccess returns an identity that may read every record of the given types.
func FullAccess(user string, typeIDs ...string) Access {
	a := Access{User: user, Read: make(map[string]bool), ReadAll: make(map[string]bool)}
	for _, id := range typeIDs {
		a.ReadAll[id] = true
	}
	return a
}

// AssertSQL compares expected and actual SQL, reporting detailed differences.
func AssertSQL(t *testing.T, expected, actual string) {
	t.Helper()
	if expected != actual {
		t.Errorf("SQL mismatch:\nExpected: %s\nActual:   %s", expected, actual)
	}
}

// AssertSQLContains checks that the SQL contains a fragment.
func AssertSQLContains(t *testing.T, sql, fragment string) {
	t.Helper()
	if !strings.Contains(sql, fragment) {
		t.Errorf("SQL does not contain %q:\n%s", fragment, sql)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// AssertErrorContains checks that error message contains substr.
func AssertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected error containing %q but got nil", substr)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Errorf("Expected error containing %q, got: %v", substr, err)
	}
}
