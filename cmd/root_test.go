package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "sentinel "+Version)
}

func TestMigrateCommand_CreatesSQLiteSchema(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "sentinel.db")
	cfgPath := filepath.Join(dir, "sentinel.yaml")
	content := "database:\n  type: sqlite\n  path: " + dbPath + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	root := NewRootCommand()
	root.SetArgs([]string{"migrate", "--config", cfgPath})
	require.NoError(t, root.Execute())

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestMigrateCommand_InvalidConfig(t *testing.T) {
	t.Setenv("SENTINEL_DATABASE_TYPE", "oracle")

	root := NewRootCommand()
	root.SetArgs([]string{"migrate"})
	require.Error(t, root.Execute())
}
