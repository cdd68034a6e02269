package migrations

import (
	"database/sql"
	"strings"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := embedMigrations.ReadDir(".")
	if err != nil {
		t.Fatalf("Failed to read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("No migration files found in embedFS")
	}

	// Первая миграция создаёт всю схему
	foundInit := false
	for _, entry := range entries {
		if entry.IsDir() {
			t.Errorf("Unexpected directory in migrations: %s", entry.Name())
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".sql") {
			t.Errorf("Non-SQL file in migrations: %s", entry.Name())
		}
		if entry.Name() == "00001_init.sql" {
			foundInit = true
		}
	}
	if !foundInit {
		t.Error("00001_init.sql not found in embedFS")
	}
}

func TestRunWithInvalidDB(t *testing.T) {
	db, err := sql.Open("pgx", "invalid://connection")
	if err != nil {
		t.Skipf("Cannot create test DB connection: %v", err)
	}
	defer db.Close()

	if err := Run(db); err == nil {
		t.Error("Expected error for invalid DB connection, got nil")
	}
}

func TestVersionWithInvalidDB(t *testing.T) {
	db, err := sql.Open("pgx", "invalid://connection")
	if err != nil {
		t.Skipf("Cannot create test DB connection: %v", err)
	}
	defer db.Close()

	if _, err := Version(db); err == nil {
		t.Error("Expected error for invalid DB connection, got nil")
	}
}
