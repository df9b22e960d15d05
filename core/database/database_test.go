package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cfg := Config{Host: " db ", Name: "langbot"}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, "db", cfg.Host)
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, "migrations", cfg.MigrationsDir)

	assert.ErrorContains(t, (&Config{Name: "x"}).Normalize(), "database.host")
	assert.ErrorContains(t, (&Config{Host: "x"}).Normalize(), "database.name")
	assert.Error(t, (&Config{Host: "x", Name: "y", MaxConnections: -1}).Normalize())
}

func TestURLEscapesCredentials(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "p@ss/word", Name: "langbot", SSLMode: "disable"}
	assert.Equal(t, "postgres://bot:p%40ss%2Fword@db:5432/langbot?sslmode=disable", cfg.URL())
}

func TestAppliedBetween(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_profiles.up.sql",
		"000001_conversation_state.up.sql",
		"000001_conversation_state.down.sql",
		"000003_index.up.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	files := upFiles(dir)
	assert.Equal(t, []string{
		"000001_conversation_state.up.sql",
		"000002_profiles.up.sql",
		"000003_index.up.sql",
	}, files)
	assert.Equal(t, []string{"000002_profiles.up.sql", "000003_index.up.sql"}, appliedBetween(files, 1, 3))
	assert.Empty(t, appliedBetween(files, 3, 3))
	assert.Nil(t, upFiles(filepath.Join(dir, "missing")))
}
