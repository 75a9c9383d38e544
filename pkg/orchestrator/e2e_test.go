//go:build unix

package orchestrator

import (
	"context"
	"io"
	"net"
	"net/http"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimsaleem/Swaggermcp/pkg/supervisor"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/workspace"
)

const e2eSource = `package calc

import "errors"

// add returns a + b.
func add(a, b int) int { return a + b }

// greet builds a greeting.
//
//endpoint:default suffix="!"
func greet(name string, suffix *string) string {
	if suffix == nil {
		return "hello " + name
	}
	return "hello " + name + *suffix
}

func divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	return a / b, nil
}
`

func TestEndToEnd_UploadServesEndpoints(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and runs a generated service")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	root := t.TempDir()
	ws := workspace.New(workspace.Config{
		Dir:        filepath.Join(root, "generated"),
		UploadsDir: filepath.Join(root, "uploads"),
	}, nil)
	sup := supervisor.New(ws.DocumentPath(), supervisor.WithPort(port), supervisor.WithProbeInterval(100*time.Millisecond))
	t.Cleanup(func() { _ = sup.Stop(context.Background(), 5*time.Second) })

	orch := New(Config{StartTimeout: 2 * time.Minute}, ws, sup, nil, nil)
	ctx := context.Background()

	require.NoError(t, orch.Boot(ctx))
	assert.Equal(t, supervisor.StateRunning, sup.Status().State)

	res, err := orch.Upload(ctx, "calc.go", []byte(e2eSource))
	require.NoError(t, err)
	assert.Equal(t, []string{"/add", "/greet", "/divide"}, res.Endpoints)

	get := func(path string) (int, string) {
		resp, err := http.Get(sup.BaseURL() + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/add?a=2&b=3")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"result":5}`, body)

	code, body = get("/add?a=2")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body, `"b"`)

	// absent optional parameter arrives as nil, not the declared default
	_, body = get("/greet?name=gopher")
	assert.JSONEq(t, `{"result":"hello gopher"}`, body)
	_, body = get("/greet?name=gopher&suffix=%3F")
	assert.JSONEq(t, `{"result":"hello gopher?"}`, body)

	code, body = get("/divide?a=1&b=0")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"error":"division by zero"}`, body)

	report := sup.HealthCheck(ctx)
	assert.Equal(t, supervisor.HealthHealthy, report.Status)
	assert.Equal(t, []string{"/add", "/divide", "/greet"}, report.Endpoints)
}
