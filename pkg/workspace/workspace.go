// Package workspace owns the files the generated service is built from: the
// synthesized document, its go.mod, and copies of uploaded sources.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/ibrahimsaleem/Swaggermcp/pkg/apperr"
)

// Config locates the workspace on disk.
type Config struct {
	// Dir holds the generated service module
	Dir string `mapstructure:"dir"`

	// UploadsDir receives a copy of every uploaded source
	UploadsDir string `mapstructure:"uploads_dir"`

	// DocumentName is the generated file inside Dir
	DocumentName string `mapstructure:"document_name"`

	// ModulePath is the module path written to Dir/go.mod
	ModulePath string `mapstructure:"module_path"`

	// GoVersion is the go directive written to Dir/go.mod
	GoVersion string `mapstructure:"go_version"`
}

// DefaultConfig returns the workspace layout used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Dir:          "generated",
		UploadsDir:   "uploads",
		DocumentName: "main.go",
		ModulePath:   "swaggermcp/generated",
		GoVersion:    "1.22",
	}
}

// Workspace manages the generated service directory.
type Workspace struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a workspace. Empty config fields take their defaults.
func New(cfg Config, logger *slog.Logger) *Workspace {
	def := DefaultConfig()
	if cfg.Dir == "" {
		cfg.Dir = def.Dir
	}
	if cfg.UploadsDir == "" {
		cfg.UploadsDir = def.UploadsDir
	}
	if cfg.DocumentName == "" {
		cfg.DocumentName = def.DocumentName
	}
	if cfg.ModulePath == "" {
		cfg.ModulePath = def.ModulePath
	}
	if cfg.GoVersion == "" {
		cfg.GoVersion = def.GoVersion
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{cfg: cfg, logger: logger.With("component", "workspace")}
}

// Dir returns the generated module directory.
func (w *Workspace) Dir() string { return w.cfg.Dir }

// DocumentPath returns the path of the generated document.
func (w *Workspace) DocumentPath() string {
	return filepath.Join(w.cfg.Dir, w.cfg.DocumentName)
}

// HasDocument reports whether a document has been written.
func (w *Workspace) HasDocument() bool {
	info, err := os.Stat(w.DocumentPath())
	return err == nil && info.Mode().IsRegular()
}

// ReadDocument returns the current document.
func (w *Workspace) ReadDocument() (string, error) {
	data, err := os.ReadFile(w.DocumentPath())
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(data), nil
}

// WriteDocument replaces the document in full and returns its SHA-256.
func (w *Workspace) WriteDocument(doc string) (string, error) {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace dir: %w", err)
	}
	if err := w.EnsureModule(); err != nil {
		return "", err
	}
	if err := WriteFileAtomic(w.DocumentPath(), []byte(doc), 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}

	sum := Digest([]byte(doc))
	w.logger.Info("document written", "path", w.DocumentPath(), "bytes", len(doc), "sha256", sum[:12])
	return sum, nil
}

// EnsureModule writes Dir/go.mod. An existing file keeps its require and
// replace directives; the module path and a missing go directive are set.
func (w *Workspace) EnsureModule() error {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create workspace dir: %w", err)
	}
	path := filepath.Join(w.cfg.Dir, "go.mod")

	f := &modfile.File{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		parsed, perr := modfile.Parse(path, data, nil)
		if perr != nil {
			w.logger.Warn("existing go.mod does not parse, regenerating", "path", path, "error", perr)
		} else {
			f = parsed
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("read go.mod: %w", err)
	}

	if f.Module == nil || f.Module.Mod.Path != w.cfg.ModulePath {
		if err := f.AddModuleStmt(w.cfg.ModulePath); err != nil {
			return fmt.Errorf("set module path: %w", err)
		}
	}
	if f.Go == nil {
		if err := f.AddGoStmt(w.cfg.GoVersion); err != nil {
			return fmt.Errorf("set go version: %w", err)
		}
	}
	f.Cleanup()

	out, err := f.Format()
	if err != nil {
		return fmt.Errorf("format go.mod: %w", err)
	}
	if string(out) == string(data) {
		return nil
	}
	return WriteFileAtomic(path, out, 0o644)
}

// SaveUpload stores an uploaded source under UploadsDir and returns its path.
// Only the base name of filename is used.
func (w *Workspace) SaveUpload(filename string, data []byte) (string, error) {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(filename, "\\", "/")))
	if name == "/" || name == "." || name == "" {
		return "", apperr.New(apperr.CodeInvalidUpload, "upload has no file name")
	}
	if err := os.MkdirAll(w.cfg.UploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}

	path := filepath.Join(w.cfg.UploadsDir, name)
	if err := WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	w.logger.Info("upload saved", "path", path, "bytes", len(data))
	return path, nil
}

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
