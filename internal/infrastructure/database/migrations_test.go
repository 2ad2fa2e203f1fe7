package database

import (
	"context"
	"embed"
	"testing"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// useTestMigrations points the package at the testdata fixtures for the
// duration of one test.
func useTestMigrations(t *testing.T) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})
	MigrationsFS = testMigrationsFS
	MigrationsDir = "testdata"
}

func TestMigrate_AppliesInOrder(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// The seed migration only succeeds when the table migration ran
	// first, so one row proves both steps and their order.
	var name string
	err := db.QueryRowContext(ctx, "SELECT name FROM presets").Scan(&name)
	if err != nil {
		t.Fatalf("seeded row missing: %v", err)
	}
	if name != "evening" {
		t.Errorf("seeded name %q, want evening", name)
	}

	var recorded int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations",
	).Scan(&recorded); err != nil {
		t.Fatalf("counting schema_migrations: %v", err)
	}
	if recorded != 2 {
		t.Errorf("recorded %d migrations, want 2", recorded)
	}
}

func TestMigrate_Rerun(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	// An applied migration is never re-executed: the seed row would
	// otherwise appear twice.
	var rows int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM presets").Scan(&rows); err != nil {
		t.Fatalf("counting presets: %v", err)
	}
	if rows != 1 {
		t.Errorf("got %d seeded rows after rerun, want 1", rows)
	}
}

func TestMigrate_NoEmbeddedMigrations(t *testing.T) {
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})
	MigrationsFS = embed.FS{}
	MigrationsDir = "."

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate with nothing embedded: %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOk      bool
	}{
		{"20260301_100000_variables.sql", "20260301_100000", "variables", true},
		{"20260118_130000_presets_seed.sql", "20260118_130000", "presets_seed", true},
		{"notes.txt", "", "", false},
		{"20260301_variables.sql", "", "", false},
		{"variables.sql", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if version != tt.wantVersion || name != tt.wantName {
				t.Errorf("got (%q, %q), want (%q, %q)", version, name, tt.wantVersion, tt.wantName)
			}
		})
	}
}
