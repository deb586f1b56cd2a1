package testing

import (
	"errors"
	"testing"
)

func TestRegistry(t *testing.T) {
	reg := Registry()
	if err := reg.Validate(); err != nil {
		t.Fatalf("fixture registry is inconsistent: %v", err)
	}
	for _, name := range []string{"Pigeon", "Egg", "Student", "Course", "Enrollment"} {
		_ = MustType(t, reg, name)
	}
}

func TestRegistryMatchesProject(t *testing.T) {
	if err := Registry().CheckDBML(Project()); err != nil {
		t.Fatalf("fixture project does not match registry: %v", err)
	}
}

func TestAccess(t *testing.T) {
	partial := PartialAccess("u1", PigeonID)
	if !partial.CanReadType(PigeonID) || partial.CanReadAllType(PigeonID) {
		t.Error("partial access should read some but not all pigeons")
	}
	full := FullAccess("u1", PigeonID)
	if !full.CanReadType(PigeonID) || !full.CanReadAllType(PigeonID) {
		t.Error("full access should read all pigeons")
	}
	if full.CanReadType(EggID) {
		t.Error("no grant should mean no access")
	}
}

func TestAssertSQL_Match(t *testing.T) {
	AssertSQL(t, `SELECT "this"."id" AS "id"`, `SELECT "this"."id" AS "id"`)
}

func TestAssertErrorContains(t *testing.T) {
	AssertErrorContains(t, errors.New("EMPTY_SELECT: nothing selected"), "EMPTY_SELECT")
}
