package postgres

import (
	"strings"
	"testing"
	"testing/fstest"
)

func migrationFile(body string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(body)}
}

func TestLoadMigrations_SortedPairs(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0002_payment_success_guard.up.sql":   migrationFile("CREATE UNIQUE INDEX ux ON payments (order_id);"),
		"sql/migrations/0002_payment_success_guard.down.sql": migrationFile("DROP INDEX IF EXISTS ux;"),
		"sql/migrations/0001_init.up.sql":                    migrationFile("CREATE TABLE orders (id TEXT);"),
		"sql/migrations/0001_init.down.sql":                  migrationFile("DROP TABLE IF EXISTS orders;"),
	}

	migrations, err := loadMigrations(fsys)
	if err != nil {
		t.Fatalf("loadMigrations failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "init" {
		t.Fatalf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[1].Version != 2 || migrations[1].Name != "payment_success_guard" {
		t.Fatalf("unexpected second migration: %+v", migrations[1])
	}
	if migrations[1].DownSQL != "DROP INDEX IF EXISTS ux;" {
		t.Fatalf("down script lost: %q", migrations[1].DownSQL)
	}
}

func TestLoadMigrations_MissingDown(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0001_init.up.sql": migrationFile("CREATE TABLE orders (id TEXT);"),
	}

	_, err := loadMigrations(fsys)
	if err == nil {
		t.Fatal("expected error for missing down migration")
	}
	if !strings.Contains(err.Error(), "both up and down") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadMigrations_NameMismatch(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0001_init.up.sql":    migrationFile("CREATE TABLE orders (id TEXT);"),
		"sql/migrations/0001_other.down.sql": migrationFile("DROP TABLE IF EXISTS orders;"),
	}

	_, err := loadMigrations(fsys)
	if err == nil {
		t.Fatal("expected error for mismatched migration names")
	}
	if !strings.Contains(err.Error(), "mismatch") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadMigrations_InvalidFilename(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/not_a_migration.sql": migrationFile("SELECT 1;"),
	}

	if _, err := loadMigrations(fsys); err == nil {
		t.Fatal("expected error for invalid migration file name")
	}
}

func TestLoadMigrations_EmptyBody(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0001_init.up.sql":   migrationFile("   \n"),
		"sql/migrations/0001_init.down.sql": migrationFile("DROP TABLE IF EXISTS orders;"),
	}

	if _, err := loadMigrations(fsys); err == nil {
		t.Fatal("expected error for empty migration file body")
	}
}

func TestEmbeddedMigrationsLoad(t *testing.T) {
	t.Parallel()

	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		t.Fatalf("embedded migrations failed to load: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i-1].Version >= migrations[i].Version {
			t.Fatalf("migrations not strictly ordered: %d then %d",
				migrations[i-1].Version, migrations[i].Version)
		}
	}
}
