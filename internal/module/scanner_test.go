package module

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScanFindsModuleFilesRecursively(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested", "deep"), 0755))

	want := []string{
		filepath.Join(root, "users.ctrl.hcl"),
		filepath.Join(root, "nested", "mailer.svc.hcl"),
		filepath.Join(root, "nested", "deep", "posts.ctrl.hcl"),
	}
	for _, path := range want {
		require.NoError(t, os.WriteFile(path, []byte(""), 0644))
	}

	// Skipped: type declarations and non-module files
	require.NoError(t, os.WriteFile(filepath.Join(root, "schema.types.hcl"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte(""), 0644))

	scanner := NewScanner(zap.NewNop())
	got, err := scanner.Scan(root)
	require.NoError(t, err)

	sort.Strings(want)
	sort.Strings(got)
	assert.Equal(t, want, got)
}

func TestScanEmptyRoot(t *testing.T) {
	scanner := NewScanner(zap.NewNop())
	files, err := scanner.Scan(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestScanMissingRootFails(t *testing.T) {
	scanner := NewScanner(zap.NewNop())
	_, err := scanner.Scan(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan")
}
