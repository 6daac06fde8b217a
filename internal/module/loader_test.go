package module

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeModuleFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestEligible(t *testing.T) {
	assert.True(t, Eligible("app/users.ctrl.hcl"))
	assert.True(t, Eligible("mailer.svc.hcl"))
	assert.False(t, Eligible("app/schema.types.hcl"))
	assert.False(t, Eligible("app/readme.md"))
	assert.False(t, Eligible("app/users.hcl.bak"))
}

func TestIsTypeDecl(t *testing.T) {
	assert.True(t, IsTypeDecl("schema.types.hcl"))
	assert.False(t, IsTypeDecl("users.ctrl.hcl"))
}

func TestLoadController(t *testing.T) {
	dir := t.TempDir()
	path := writeModuleFile(t, dir, "users.ctrl.hcl", `
controller "users" {
  base_path  = "/users"
  middleware = ["request_id", "auth"]

  endpoint "list" {
    method    = "get"
    path      = "/"
    handler   = "users.list"
    cache_ttl = 30
  }

  endpoint "create" {
    method  = "POST"
    path    = "/"
    handler = "users.create"
  }
}
`)

	loader := NewLoader(zap.NewNop())
	unit, err := loader.Load(path, 1)
	require.NoError(t, err)

	assert.Equal(t, path, unit.Path)
	assert.Equal(t, uint64(1), unit.Generation)
	require.Equal(t, KindController, unit.Descriptor.Kind)

	ctrl := unit.Descriptor.Controller
	require.NotNil(t, ctrl)
	assert.Equal(t, "users", ctrl.Name)
	assert.Equal(t, "/users", ctrl.BasePath)
	assert.Equal(t, []string{"request_id", "auth"}, ctrl.Middleware)

	// Endpoints come back in declaration order, methods uppercased
	require.Len(t, ctrl.Endpoints, 2)
	assert.Equal(t, "list", ctrl.Endpoints[0].Name)
	assert.Equal(t, "GET", ctrl.Endpoints[0].Method)
	assert.Equal(t, 30*time.Second, ctrl.Endpoints[0].CacheTTL)
	assert.Equal(t, "create", ctrl.Endpoints[1].Name)
	assert.Equal(t, "POST", ctrl.Endpoints[1].Method)
	assert.Zero(t, ctrl.Endpoints[1].CacheTTL)
}

func TestLoadService(t *testing.T) {
	dir := t.TempDir()
	path := writeModuleFile(t, dir, "mailer.svc.hcl", `
service "mailer" {
  settings = {
    host    = "smtp.example.com"
    port    = 587
    enabled = true
  }
}
`)

	loader := NewLoader(zap.NewNop())
	unit, err := loader.Load(path, 1)
	require.NoError(t, err)

	require.Equal(t, KindService, unit.Descriptor.Kind)
	svc := unit.Descriptor.Service
	require.NotNil(t, svc)
	assert.Equal(t, "mailer", svc.Name)

	// Non-string values convert to their string form
	assert.Equal(t, map[string]string{
		"host":    "smtp.example.com",
		"port":    "587",
		"enabled": "true",
	}, svc.Settings)
}

func TestLoadServiceWithoutSettings(t *testing.T) {
	dir := t.TempDir()
	path := writeModuleFile(t, dir, "noop.svc.hcl", `
service "noop" {}
`)

	loader := NewLoader(zap.NewNop())
	unit, err := loader.Load(path, 1)
	require.NoError(t, err)
	assert.Empty(t, unit.Descriptor.Service.Settings)
}

func TestLoadTypeDeclIsNotLoadable(t *testing.T) {
	dir := t.TempDir()
	// Deliberately invalid content: a type declaration must be skipped
	// without a parse attempt.
	path := writeModuleFile(t, dir, "schema.types.hcl", `this is not { valid hcl`)

	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(path, 1)
	require.ErrorIs(t, err, ErrNotLoadable)
}

func TestLoadNoModuleBlockIsNotLoadable(t *testing.T) {
	dir := t.TempDir()
	path := writeModuleFile(t, dir, "empty.hcl", `# nothing here`)

	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(path, 1)
	require.ErrorIs(t, err, ErrNotLoadable)
}

func TestLoadMultipleBlocksFails(t *testing.T) {
	dir := t.TempDir()
	path := writeModuleFile(t, dir, "double.hcl", `
controller "a" {}
service "b" {}
`)

	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(path, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotLoadable)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestLoadParseErrorIsOrdinaryError(t *testing.T) {
	dir := t.TempDir()
	path := writeModuleFile(t, dir, "broken.hcl", `controller "x" {`)

	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(path, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotLoadable)
	assert.Contains(t, err.Error(), path)
}

func TestLoadMissingFileFails(t *testing.T) {
	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(filepath.Join(t.TempDir(), "missing.hcl"), 1)
	require.Error(t, err)
}

func TestLoadNegativeCacheTTLFails(t *testing.T) {
	dir := t.TempDir()
	path := writeModuleFile(t, dir, "bad.ctrl.hcl", `
controller "bad" {
  endpoint "x" {
    method    = "GET"
    path      = "/x"
    handler   = "h"
    cache_ttl = -1
  }
}
`)

	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(path, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache_ttl")
}

func TestLoadSeesFreshContents(t *testing.T) {
	dir := t.TempDir()
	path := writeModuleFile(t, dir, "c.ctrl.hcl", `
controller "first" {}
`)

	loader := NewLoader(zap.NewNop())
	unit, err := loader.Load(path, 1)
	require.NoError(t, err)
	assert.Equal(t, "first", unit.Descriptor.Controller.Name)

	// Rewrite the file; a second load must observe the new contents.
	writeModuleFile(t, dir, "c.ctrl.hcl", `
controller "second" {}
`)

	unit, err = loader.Load(path, 2)
	require.NoError(t, err)
	assert.Equal(t, "second", unit.Descriptor.Controller.Name)
	assert.Equal(t, uint64(2), unit.Generation)
}
