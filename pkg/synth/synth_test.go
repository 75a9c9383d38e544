package synth

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ibrahimsaleem/Swaggermcp/pkg/apperr"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const calcSource = `package calc

import (
	"errors"
	"strings"
)

// add returns a + b.
func add(a, b int) int { return a + b }

// greet says hello.
//
//endpoint:default punctuation="!"
func greet(name string, punctuation string) string {
	if punctuation == "" {
		punctuation = "."
	}
	return "hello " + strings.TrimSpace(name) + punctuation
}

func divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	return a / b, nil
}

func ping() string { return "pong" }
`

func synthesize(t *testing.T, src string) *Module {
	t.Helper()
	fns, err := signature.Extract(src)
	require.NoError(t, err)
	mod, err := Synthesize(src, fns, "Calc API")
	require.NoError(t, err)
	return mod
}

func TestSynthesize_Paths(t *testing.T) {
	mod := synthesize(t, calcSource)
	assert.Equal(t, []string{"/add", "/greet", "/divide", "/ping"}, mod.Paths)
}

func TestSynthesize_Deterministic(t *testing.T) {
	first := synthesize(t, calcSource)
	second := synthesize(t, calcSource)
	assert.Equal(t, first.Document, second.Document)
}

func TestSynthesize_DocumentLayout(t *testing.T) {
	doc := synthesize(t, calcSource).Document

	header := strings.Index(doc, "// Code generated by swaggermcp. DO NOT EDIT.")
	coerce := strings.Index(doc, "func _coerceParam(")
	original := strings.Index(doc, "func add(a, b int) int")
	handler := strings.Index(doc, "func _endpoint_add(")

	require.NotEqual(t, -1, coerce)
	require.NotEqual(t, -1, original)
	require.NotEqual(t, -1, handler)
	assert.Equal(t, 0, header)
	assert.Less(t, coerce, original)
	assert.Less(t, original, handler)

	assert.Contains(t, doc, "package main\n")
	assert.NotContains(t, doc, "package calc")
	assert.Contains(t, doc, "\t\"errors\"\n")
	assert.Contains(t, doc, "// Endpoints: add, greet, divide, ping")
}

func TestSynthesize_HandlerPolicy(t *testing.T) {
	doc := synthesize(t, calcSource).Document

	assert.Contains(t, doc, `if _missing := _synthMissing(_query, "a", "b"); len(_missing) > 0 {`)
	assert.Contains(t, doc, `_result, _err := _synthInvoke(add, false, _arg0, _arg1)`)

	// optional parameters are only coerced when present
	assert.Contains(t, doc, `if _missing := _synthMissing(_query, "name"); len(_missing) > 0 {`)
	assert.Contains(t, doc, "\tvar _arg1 _synthArg\n\tif _query.Has(\"punctuation\") {")
	assert.Contains(t, doc, `{Name: "punctuation", Type: "string", Default: "\"!\"", Required: false},`)

	// zero-parameter functions do not read the query
	ping := doc[strings.Index(doc, "func _endpoint_ping("):]
	ping = ping[:strings.Index(ping, "\n}\n")]
	assert.NotContains(t, ping, "_query")
}

func TestSynthesize_Title(t *testing.T) {
	mod, err := Synthesize(calcSource, nil, "  multi\nline  ")
	require.NoError(t, err)
	assert.Contains(t, mod.Document, `_synthTitle = "multi line"`)
	assert.Empty(t, mod.Paths)

	mod, err = Synthesize(calcSource, nil, "")
	require.NoError(t, err)
	assert.Contains(t, mod.Document, `_synthTitle = "Generated API"`)
}

func TestSynthesize_RejectsReservedNames(t *testing.T) {
	for _, src := range []string{
		"package p\nvar app = 1\n",
		"package p\nfunc _uploadedMain() {}\n",
		"package p\nfunc _coerceParam(s string) string { return s }\n",
		"package p\ntype _endpoint_x struct{}\n",
	} {
		_, err := Synthesize(src, nil, "t")
		require.Error(t, err, src)
		assert.Equal(t, apperr.CodeInvalidUpload, apperr.CodeOf(err))
	}
}

func TestSynthesize_RenamesUploadedMain(t *testing.T) {
	src := `package main

import "fmt"

func add(a, b int) int { return a + b }

func main() {
	fmt.Println(add(1, 2))
}

func again() { main() }
`
	mod := synthesize(t, src)

	assert.Equal(t, []string{"/add", "/again"}, mod.Paths)
	assert.Contains(t, mod.Document, "func _uploadedMain() {")
	assert.Contains(t, mod.Document, "func again() { _uploadedMain() }")
	assert.Equal(t, 1, strings.Count(mod.Document, "\nfunc main() {"))
}

func TestSynthesize_RejectsUnknownDescriptor(t *testing.T) {
	_, err := Synthesize(calcSource, []signature.Function{{Name: "missing"}}, "t")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeSynthesisError))
}

func TestSynthesize_SourceWithoutPackageOrImports(t *testing.T) {
	src := "func double(x int) int { return 2 * x }\n"
	mod := synthesize(t, src)
	assert.Equal(t, []string{"/double"}, mod.Paths)
	assert.Contains(t, mod.Document, "func double(x int) int")
}

func TestPlaceholder(t *testing.T) {
	mod, err := Placeholder("Empty")
	require.NoError(t, err)
	assert.Empty(t, mod.Paths)
	assert.Contains(t, mod.Document, "// Endpoints: (none)")
	assert.Contains(t, mod.Document, "func main()")
}

func TestSynthesize_Compiles(t *testing.T) {
	if testing.Short() {
		t.Skip("compiles a generated service")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not available")
	}

	dir := t.TempDir()
	mod := synthesize(t, calcSource)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(mod.Document), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module generated\n\ngo 1.22\n"), 0o644))

	cmd := exec.Command(goBin, "build", "-o", filepath.Join(dir, "service"), ".")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	assert.NoError(t, err, string(out))
}
