package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishcovery/dishcovery-client/internal/backend"
	"github.com/dishcovery/dishcovery-client/internal/backend/backendtest"
)

const testKey = "AIxxxxxxxxxxxx"

// cli runs commands against an isolated home and storage directory.
type cli struct {
	t   *testing.T
	dir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("DISHCOVERY_API_BASE_URL", "")
	t.Setenv("EXPO_PUBLIC_API_URL", "")
	return &cli{t: t, dir: dir}
}

func (c *cli) run(args ...string) (int, string, string) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	args = append(args,
		"--storage-dir", filepath.Join(c.dir, "store"),
		"--db", filepath.Join(c.dir, "store", "recipes.db"),
	)
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	assert.Equal(t, exitUsage, run(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage: dishcovery")

	stderr.Reset()
	assert.Equal(t, exitUsage, run(context.Background(), []string{"cook"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown command "cook"`)

	assert.Equal(t, exitOK, run(context.Background(), []string{"help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "validate-key")
}

func TestRun_UnknownSettingsAction(t *testing.T) {
	c := newCLI(t)
	code, _, stderr := c.run("settings", "wipe")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "unknown settings action")
}

func TestRun_SettingsLifecycle(t *testing.T) {
	c := newCLI(t)

	code, out, _ := c.run("settings", "set", "--provider", "gemini", "--key", "sk-wrong-prefix")
	assert.Equal(t, exitError, code)
	assert.Contains(t, out, "SETTINGS_INVALID")
	assert.Contains(t, out, "dishcovery settings")

	code, out, _ = c.run("settings", "set", "--provider", "gemini", "--key", testKey, "--base-url", "http://localhost:5001/")
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "****xxxx")
	assert.NotContains(t, out, testKey)

	code, out, _ = c.run("settings", "show")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "****xxxx")
	assert.Contains(t, out, "http://localhost:5001")

	code, out, _ = c.run("settings", "reset")
	require.Equal(t, exitOK, code)
	assert.NotContains(t, out, "****xxxx")
}

func TestRun_GenerateWithoutSettings(t *testing.T) {
	c := newCLI(t)
	srv := backendtest.New(t)

	code, out, _ := c.run("generate", "--prompt", "grilled cheese", "--api-url", srv.URL)
	assert.Equal(t, exitError, code)
	assert.Contains(t, out, "SETTINGS_INCOMPLETE")
	assert.Contains(t, out, "dishcovery settings")
	assert.Zero(t, srv.Calls(backend.PathGenerateRecipe))
}

func TestRun_GenerateSaveAndList(t *testing.T) {
	c := newCLI(t)
	srv := backendtest.New(t)

	code, out, _ := c.run("settings", "set", "--provider", "gemini", "--key", testKey, "--base-url", srv.URL)
	require.Equal(t, exitOK, code, out)

	code, out, _ = c.run("generate", "--prompt", "grilled cheese", "--save", "--user", "user_1")
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "Pasta")
	assert.Contains(t, out, "SAVED")
	assert.Equal(t, 1, srv.Calls(backend.PathGenerateRecipe))

	code, out, _ = c.run("recipes", "list", "--user", "user_1")
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "Pasta")

	code, out, _ = c.run("recipes", "list", "--user", "user_2")
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "No saved recipes yet.")
}

func TestRun_GenerateSaveRequiresUser(t *testing.T) {
	c := newCLI(t)
	srv := backendtest.New(t)

	code, out, _ := c.run("settings", "set", "--provider", "gemini", "--key", testKey, "--base-url", srv.URL)
	require.Equal(t, exitOK, code, out)

	code, out, _ = c.run("generate", "--prompt", "grilled cheese", "--save")
	assert.Equal(t, exitError, code)
	assert.Contains(t, out, "UNAUTHORIZED")
	assert.Zero(t, srv.Calls(backend.PathGenerateRecipe))
}

func TestRun_ValidateKey(t *testing.T) {
	c := newCLI(t)
	srv := backendtest.New(t)

	code, out, _ := c.run("settings", "set", "--provider", "gemini", "--key", testKey, "--base-url", srv.URL)
	require.Equal(t, exitOK, code, out)

	code, out, _ = c.run("validate-key")
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "KEY OK")
	assert.Contains(t, out, "gemini-2.5-pro")

	code, out, _ = c.run("settings", "show")
	require.Equal(t, exitOK, code)
	assert.NotContains(t, out, "not verified")
}
