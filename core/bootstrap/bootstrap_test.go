package bootstrap

import (
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/goroute/core/config"
	coredatabase "github.com/m3rciful/goroute/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunSkipDatabase(t *testing.T) {
	res, err := Run(Options{
		Config:       &coreconfig.Config{},
		SkipDatabase: true,
		LoggerInit:   noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("connect must not be called")
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.DB != nil {
		t.Fatal("expected nil DB")
	}
}

func TestRunMigrationFailureStopsConnect(t *testing.T) {
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Migrate:    func(coredatabase.Config) error { return errors.New("bad migration") },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("connect must not be called after failed migration")
			return nil, nil
		},
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if _, err := Run(Options{}); err == nil {
		t.Fatal("expected nil config error")
	}
}
