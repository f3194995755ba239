package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

const migrationsDir = "../../db/migrations"

var migrationName = regexp.MustCompile(`^(\d{4})_[a-z0-9_]+\.(up|down)\.sql$`)

func TestMigrationFilesArePaired(t *testing.T) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}

	directions := map[string][]string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		match := migrationName.FindStringSubmatch(entry.Name())
		if match == nil {
			t.Fatalf("unexpected migration file name %q", entry.Name())
		}
		directions[match[1]] = append(directions[match[1]], match[2])
	}
	if len(directions) == 0 {
		t.Fatal("no migrations found")
	}
	for version, dirs := range directions {
		if len(dirs) != 2 || dirs[0] == dirs[1] {
			t.Fatalf("version %s needs exactly one up and one down file, got %v", version, dirs)
		}
	}
}

func TestChecklistTableConstraints(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join(migrationsDir, "0001_init.up.sql"))
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}
	schema := strings.Join(strings.Fields(string(raw)), " ")

	for _, want := range []string{
		"booking_id TEXT NOT NULL UNIQUE REFERENCES bookings(id) ON DELETE CASCADE",
		"form_data JSONB",
	} {
		if !strings.Contains(schema, want) {
			t.Fatalf("init migration missing %q", want)
		}
	}
}

func TestServiceDocumentColumns(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join(migrationsDir, "0002_service_documents.up.sql"))
	if err != nil {
		t.Fatalf("read documents migration: %v", err)
	}
	schema := strings.Join(strings.Fields(string(raw)), " ")
	for _, want := range []string{
		"fleet_docs JSONB NOT NULL DEFAULT '[]'::jsonb",
		"portfolio JSONB NOT NULL DEFAULT '[]'::jsonb",
	} {
		if !strings.Contains(schema, want) {
			t.Fatalf("documents migration missing %q", want)
		}
	}
}
