package services_test

import (
	"testing"

	"github.com/pandeptwidyaop/deploy-manager/internal/config"
	"github.com/pandeptwidyaop/deploy-manager/internal/database"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Execution: config.ExecutionConfig{
			Shell:          "/bin/sh",
			ShellArgs:      []string{"-c"},
			TimeoutSeconds: 30,
			MaxOutputSize:  1 << 20,
		},
	}
}
