package supervisor

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ibrahimsaleem/Swaggermcp/pkg/workspace"
)

// processHandle tracks the OS-level process of one start attempt
type processHandle struct {
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	docHash   string

	// exited is closed once Wait returns; waitErr is valid after that
	exited  chan struct{}
	waitErr error

	// stopping marks an exit requested by the supervisor
	stopping atomic.Bool
}

func (h *processHandle) hasExited() bool {
	select {
	case <-h.exited:
		return true
	default:
		return false
	}
}

// Credential selects the user and group the service runs as.
type Credential struct {
	UID uint32
	GID uint32
}

// toolchainEnv is what a clean environment keeps so "go run" still works.
var toolchainEnv = []string{
	"PATH", "HOME", "TMPDIR", "GOPATH", "GOROOT", "GOCACHE", "GOMODCACHE",
	"GOFLAGS", "GOPROXY", "GOTOOLCHAIN", "SYSTEMROOT", "LOCALAPPDATA",
}

func (s *Supervisor) environ() []string {
	var env []string
	if s.cleanEnv {
		for _, key := range toolchainEnv {
			if v, ok := os.LookupEnv(key); ok {
				env = append(env, key+"="+v)
			}
		}
	} else {
		env = os.Environ()
	}
	return append(env, s.env...)
}

// spawn launches the service and starts the output and exit watchers.
func (s *Supervisor) spawn() (*processHandle, error) {
	doc, err := os.ReadFile(s.document)
	if err != nil {
		return nil, err
	}

	args := append([]string{}, s.command[1:]...)
	args = append(args, filepath.Base(s.document), "--host", s.host, "--port", strconv.Itoa(s.port))

	cmd := exec.Command(s.command[0], args...)
	cmd.Dir = filepath.Dir(s.document)
	cmd.Env = s.environ()
	cmd.SysProcAttr = sysProcAttr(s.credential)
	cmd.WaitDelay = s.killGrace

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return nil, err
	}

	h := &processHandle{
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		docHash:   workspace.Digest(doc),
		exited:    make(chan struct{}),
	}
	s.logger.Info("service process launched", "pid", h.pid, "command", cmd.String(), "dir", cmd.Dir)

	go s.capture(pr, h.pid)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		h.waitErr = err
		close(h.exited)
		s.onExit(h, err)
	}()

	return h, nil
}

// capture forwards service output to the logger and the log tail.
func (s *Supervisor) capture(r io.Reader, pid int) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		s.logs.add(line)
		s.logger.Debug("service output", "pid", pid, "line", line)
	}
	// drain so the writer side never blocks after a scan error
	_, _ = io.Copy(io.Discard, r)
}

// logTail keeps the last N lines of service output.
type logTail struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func newLogTail(size int) *logTail {
	if size <= 0 {
		size = 1
	}
	return &logTail{lines: make([]string, size)}
}

func (t *logTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines[t.next] = line
	t.next = (t.next + 1) % len(t.lines)
	if t.next == 0 {
		t.full = true
	}
}

// last returns up to n of the most recent lines, oldest first.
func (t *logTail) last(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ordered []string
	if t.full {
		ordered = append(ordered, t.lines[t.next:]...)
	}
	ordered = append(ordered, t.lines[:t.next]...)

	if n > 0 && n < len(ordered) {
		ordered = ordered[len(ordered)-n:]
	}
	return append([]string(nil), ordered...)
}
