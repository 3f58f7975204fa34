package lintcfg_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenghaitao/dml-language-server/internal/lintcfg"
)

func TestLoad_DecodesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lint.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: true\nrules:\n  - naming\n  - spacing\n"), 0o644))

	cfg, err := lintcfg.Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, []string{"naming", "spacing"}, cfg.Rules)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := lintcfg.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault_IsDisabled(t *testing.T) {
	assert.False(t, lintcfg.Default().Enabled)
}
