package cmd

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ibrahimsaleem/Swaggermcp/internal/config"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/apperr"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/signature"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/supervisor"
)

const calcSource = `package calc

// Add sums two numbers.
//
//endpoint:default b=2
func Add(a int, b int) int { return a + b }

func Negate(x float64) float64 { return -x }
`

func writeSource(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calc.go")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestInspect_YAML(t *testing.T) {
	out, _, err := run(t, "inspect", writeSource(t, calcSource), "--format", "yaml")
	require.NoError(t, err)

	var fns []signature.Function
	require.NoError(t, yaml.Unmarshal([]byte(out), &fns))
	require.Len(t, fns, 2)
	assert.Equal(t, "Add", fns[0].Name)
	assert.Equal(t, []string{"a", "b"}, fns[0].Parameters)
	assert.Equal(t, "2", fns[0].Defaults["b"])
	assert.Contains(t, fns[0].Documentation, "Add sums two numbers.")
	assert.Equal(t, "float64", fns[1].TypeHints["x"])
}

func TestInspect_JSON(t *testing.T) {
	out, _, err := run(t, "inspect", writeSource(t, calcSource), "--format", "json")
	require.NoError(t, err)

	var fns []signature.Function
	require.NoError(t, json.Unmarshal([]byte(out), &fns))
	require.Len(t, fns, 2)
	assert.Equal(t, "Negate", fns[1].Name)
}

func TestInspect_UnknownFormat(t *testing.T) {
	_, _, err := run(t, "inspect", writeSource(t, calcSource), "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestInspect_ParseError(t *testing.T) {
	_, _, err := run(t, "inspect", writeSource(t, "func broken( {"), "--format", "yaml")
	assert.True(t, apperr.Is(err, apperr.CodeParseError))
}

func TestGenerate_Stdout(t *testing.T) {
	out, _, err := run(t, "generate", writeSource(t, calcSource), "--output", "", "--title", "Calculator")
	require.NoError(t, err)

	assert.Contains(t, out, "DO NOT EDIT")
	assert.Contains(t, out, "package main")
	assert.Contains(t, out, "func Add(a int, b int) int")
	assert.Contains(t, out, "Calculator")
}

func TestGenerate_OutputFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "main.go")

	out, stderr, err := run(t, "generate", writeSource(t, calcSource), "--output", dest, "--title", "Calculator")
	require.NoError(t, err)

	assert.Empty(t, out)
	assert.Contains(t, stderr, "GET /Add")
	assert.Contains(t, stderr, "GET /Negate")

	doc, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "DO NOT EDIT")
}

func TestGenerate_NoFunctions(t *testing.T) {
	_, _, err := run(t, "generate", writeSource(t, "package calc\n\nvar x = 1\n"), "--output", "", "--title", "T")
	assert.True(t, apperr.Is(err, apperr.CodeEmptyInput))
}

func TestGenerate_MissingFile(t *testing.T) {
	_, _, err := run(t, "generate", filepath.Join(t.TempDir(), "absent.go"), "--output", "", "--title", "T")
	assert.Error(t, err)
}

func TestSupervisorOptions(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Supervisor.Host = "0.0.0.0"
	cfg.Supervisor.Port = 9123
	cfg.Supervisor.Reload = true

	sup := supervisor.New("generated/main.go", supervisorOptions(cfg, slog.Default(), supervisor.NewNoopMetricsCollector())...)

	// wildcard hosts are dialed on loopback
	assert.Equal(t, "http://127.0.0.1:9123", sup.BaseURL())
	snap := sup.Status()
	assert.Equal(t, supervisor.StateStopped, snap.State)
	assert.Equal(t, 9123, snap.Port)
}
