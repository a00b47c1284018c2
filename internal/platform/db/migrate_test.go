package db

import (
	"strings"
	"testing"
)

func TestLoadMigrations_SortedByVersion(t *testing.T) {
	migrations, err := LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}

	for i := 1; i < len(migrations); i++ {
		if migrations[i-1].Version >= migrations[i].Version {
			t.Errorf("migrations out of order: %d before %d",
				migrations[i-1].Version, migrations[i].Version)
		}
	}
}

func TestLoadMigrations_CoreTables(t *testing.T) {
	migrations, err := LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var core *Migration
	for i := range migrations {
		if migrations[i].Version == 1 {
			core = &migrations[i]
		}
	}
	if core == nil {
		t.Fatal("migration 001 not found")
	}

	for _, table := range []string{"notification_outbox", "consultation_fees", "schema_shapes"} {
		if !strings.Contains(core.SQL, table) {
			t.Errorf("migration 001 missing table %s", table)
		}
	}
}
