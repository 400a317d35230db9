package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

const revelleJSON = `{
	"college_code": "RE",
	"college_name": "Revelle",
	"requirements": [{
		"category": "GENERAL EDUCATION",
		"subrequirements": [{
			"title": "Humanities",
			"required_units": 24,
			"eligible_courses": ["HUM 1", "HUM 2"]
		}]
	}]
}`

const mathMajorJSON = `{
	"major_code": "MA30",
	"major_name": "Mathematics (Applied)",
	"requirements": [{
		"category": "MAJOR",
		"subrequirements": [{
			"title": "Lower Division",
			"required_units": 48,
			"eligible_courses": ["MATH 20A"],
			"departments": ["MATH"]
		}]
	}]
}`

func TestRequirementsStoreLoads(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, filepath.Join(dir, "colleges"), "revelle.json", revelleJSON)
	writeConfigFile(t, filepath.Join(dir, "majors"), "ma30.json", mathMajorJSON)

	store, err := NewRequirementsStore(dir)
	if err != nil {
		t.Fatalf("NewRequirementsStore failed: %v", err)
	}
	defer store.Close()

	college, ok := store.College("re")
	if !ok {
		t.Fatal("Expected college lookup to succeed (case-insensitive)")
	}
	if college.CollegeName != "Revelle" {
		t.Errorf("Unexpected college %q", college.CollegeName)
	}

	major, ok := store.Major("MA30")
	if !ok {
		t.Fatal("Expected major lookup to succeed")
	}
	if len(major.Requirements) != 1 || len(major.Requirements[0].Subrequirements) != 1 {
		t.Fatalf("Unexpected requirements shape: %+v", major.Requirements)
	}
	if major.Requirements[0].Subrequirements[0].RequiredUnits != 48 {
		t.Errorf("Unexpected required units %v", major.Requirements[0].Subrequirements[0].RequiredUnits)
	}

	catalog := store.Catalog()
	if len(catalog.Colleges) != 1 || len(catalog.Majors) != 1 {
		t.Errorf("Expected 1 college and 1 major, got %d / %d",
			len(catalog.Colleges), len(catalog.Majors))
	}
}

func TestRequirementsStoreMissingDirsServeEmpty(t *testing.T) {
	store, err := NewRequirementsStore(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Expected missing dirs to be tolerated, got %v", err)
	}
	defer store.Close()

	catalog := store.Catalog()
	if len(catalog.Colleges) != 0 || len(catalog.Majors) != 0 {
		t.Error("Expected empty catalog for missing directories")
	}
}

func TestRequirementsStoreSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, filepath.Join(dir, "majors"), "good.json", mathMajorJSON)
	writeConfigFile(t, filepath.Join(dir, "majors"), "bad.json", "{not valid json")

	store, err := NewRequirementsStore(dir)
	if err != nil {
		t.Fatalf("One bad file took down the load: %v", err)
	}
	defer store.Close()

	if len(store.Catalog().Majors) != 1 {
		t.Errorf("Expected the good file to load, got %d majors", len(store.Catalog().Majors))
	}
}

func TestRequirementsStoreHotReload(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, filepath.Join(dir, "majors"), "ma30.json", mathMajorJSON)

	store, err := NewRequirementsStore(dir)
	if err != nil {
		t.Fatalf("NewRequirementsStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeConfigFile(t, filepath.Join(dir, "majors"), "cs25.json", `{
		"major_code": "CS25",
		"major_name": "Computer Science",
		"requirements": []
	}`)

	// Debounce is 500ms; give the watcher time to fire.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := store.Major("CS25"); ok {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Error("New config file was not picked up by the watcher")
}
