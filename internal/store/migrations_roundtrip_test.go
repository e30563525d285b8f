package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

// Runs only against a throwaway database: the public schema is dropped.
func TestMigrationsRoundTripPostgres(t *testing.T) {
	dsn := os.Getenv("ASSETTRACK_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ASSETTRACK_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	dir := filepath.Join("..", "..", "db", "migrations")

	if err := ApplyMigrations(ctx, db, dir); err != nil {
		t.Fatalf("first up pass: %v", err)
	}
	if err := migrateAllDown(ctx, db, dir); err != nil {
		t.Fatalf("down pass: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		t.Fatalf("clear schema_migrations: %v", err)
	}
	if err := ApplyMigrations(ctx, db, dir); err != nil {
		t.Fatalf("second up pass: %v", err)
	}

	for _, table := range []string{"users", "user_roles", "refresh_sessions", "patrimonies"} {
		if !tableExists(ctx, t, db, table) {
			t.Errorf("expected table %s after migrations", table)
		}
	}
}

func tableExists(ctx context.Context, t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
		table,
	).Scan(&exists)
	if err != nil {
		t.Fatalf("check table %s: %v", table, err)
	}
	return exists
}

// migrateAllDown executes the *.down.sql files newest-first.
func migrateAllDown(ctx context.Context, db *sql.DB, dir string) error {
	downs, err := filepath.Glob(filepath.Join(dir, "*.down.sql"))
	if err != nil {
		return err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))

	for _, file := range downs {
		script, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(script)); err != nil {
			return err
		}
	}
	return nil
}
