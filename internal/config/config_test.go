package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollbook/internal/record"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Database: DatabaseConfig{Path: "student.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Auth: AuthConfig{
			DefaultAdmin: AdminConfig{Username: "admin", Password: "admin"},
		},
	}, cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "rollbook.yaml", `
database:
  path: /var/lib/rollbook/school.db
log:
  level: DEBUG
  format: json
auth:
  bcrypt_cost: 12
`)
	t.Setenv("ROLLBOOK_LOG__LEVEL", "warn")
	t.Setenv("ROLLBOOK_AUTH__DEFAULT_ADMIN__USERNAME", "root")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/rollbook/school.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Log.Level, "env overrides file")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, "root", cfg.Auth.DefaultAdmin.Username)
	assert.Equal(t, "admin", cfg.Auth.DefaultAdmin.Password)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "ROLLBOOK_DATABASE__PATH=from-dotenv.db\n")
	t.Setenv("ROLLBOOK_DATABASE__PATH", "")
	os.Unsetenv("ROLLBOOK_DATABASE__PATH")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.Database.Path)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"log level", "log:\n  level: chatty\n"},
		{"log format", "log:\n  format: xml\n"},
		{"bcrypt cost", "auth:\n  bcrypt_cost: 2\n"},
		{"empty admin", "auth:\n  default_admin:\n    password: \"\"\n"},
		{"empty database path", "database:\n  path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			path := writeFile(t, dir, "rollbook.yaml", tt.yaml)

			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, record.IsValidation(err), "got %v", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestLoad_EnvCostIsParsed(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ROLLBOOK_AUTH__BCRYPT_COST", "2")

	_, err := Load("")
	assert.True(t, record.IsValidation(err), "got %v", err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "database.path", envKey("ROLLBOOK_DATABASE__PATH"))
	assert.Equal(t, "auth.bcrypt_cost", envKey("ROLLBOOK_AUTH__BCRYPT_COST"))
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LogConfig{Level: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, LogConfig{Level: "warn"}.SlogLevel())
	assert.Equal(t, slog.LevelError, LogConfig{Level: "error"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LogConfig{Level: "info"}.SlogLevel())
}
