package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSelectApplied(t *testing.T) {
	files := []string{"000001_init.up.sql", "000002_fare_alerts.up.sql", "000003_settings.up.sql"}
	got := selectApplied(files, 1, 3)
	if len(got) != 2 || got[0] != "000002_fare_alerts.up.sql" {
		t.Fatalf("selectApplied = %v", got)
	}
	if got := selectApplied(files, 3, 3); len(got) != 0 {
		t.Fatalf("expected nothing applied, got %v", got)
	}
}

func TestListMigrationFilesOnlyUp(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000002_b.up.sql", "000001_a.up.sql", "000001_a.down.sql", "README"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	got := listMigrationFiles(dir)
	if len(got) != 2 || got[0] != "000001_a.up.sql" || got[1] != "000002_b.up.sql" {
		t.Fatalf("listMigrationFiles = %v", got)
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "u", Password: "p", Name: "goroute"}
	if got, want := cfg.URL(), "postgres://u:p@db:5432/goroute?sslmode=disable"; got != want {
		t.Fatalf("URL = %q, want %q", got, want)
	}
	if got := cfg.KeywordDSN(); got != "user=u password=p host=db port=5432 dbname=goroute sslmode=disable" {
		t.Fatalf("KeywordDSN = %q", got)
	}
}

func TestMigrationsPathRelative(t *testing.T) {
	got, err := migrationsPath("")
	if err != nil {
		t.Fatalf("migrationsPath: %v", err)
	}
	if filepath.Base(got) != "migrations" || !filepath.IsAbs(got) {
		t.Fatalf("migrationsPath = %q", got)
	}
}
