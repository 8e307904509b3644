package process

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
)

const (
	maxLineSize   = 1024 * 1024
	maxStderrKept = 64 * 1024
	waitDelay     = 5 * time.Second
)

// Result is what a finished command left behind.
type Result struct {
	Stdout []string
	Stderr string
}

// Executor runs external tools. onLine, when set, receives every stdout line as it arrives.
type Executor interface {
	Run(ctx context.Context, name string, args []string, onLine func(string)) (Result, error)
	LookPath(name string) (string, error)
}

// OSProcessExecutor runs commands as child processes.
type OSProcessExecutor struct{}

func NewOSProcessExecutor() *OSProcessExecutor {
	return &OSProcessExecutor{}
}

func (*OSProcessExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run starts the command and streams its output until it exits or ctx ends.
// The command runs in its own process group. On cancellation the whole group receives SIGTERM,
// and after waitDelay the process is killed and its output pipes are closed, so helpers it spawned
// cannot keep Run blocked.
func (*OSProcessExecutor) Run(ctx context.Context, name string, args []string, onLine func(string)) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM) }
	cmd.WaitDelay = waitDelay

	logutils.Log.WithFields(map[string]any{
		"command": name,
		"args":    args,
	}).Debug("Executing command")

	var (
		result Result
		errBuf tailBuffer
	)
	stdout := &lineWriter{fn: func(line string) {
		result.Stdout = append(result.Stdout, line)
		if onLine != nil {
			onLine(line)
		}
	}}
	stderr := &lineWriter{fn: errBuf.writeLine}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return Result{}, err
	}
	waitErr := cmd.Wait()
	stdout.flush()
	stderr.flush()
	result.Stderr = errBuf.String()

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, waitErr
}

// lineWriter splits written bytes into lines. A line longer than maxLineSize is emitted in pieces.
// os/exec copies each stream on a single goroutine, so a lineWriter is never written concurrently.
type lineWriter struct {
	fn  func(string)
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	for len(w.buf) >= maxLineSize {
		w.emit(w.buf[:maxLineSize])
		w.buf = w.buf[maxLineSize:]
	}
	if len(w.buf) == 0 {
		w.buf = nil
	}
	return len(p), nil
}

// flush emits a trailing line that had no newline.
func (w *lineWriter) flush() {
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) emit(line []byte) {
	w.fn(strings.TrimSuffix(string(line), "\r"))
}

// tailBuffer keeps the last maxStderrKept bytes of stderr.
type tailBuffer struct {
	sb strings.Builder
}

func (b *tailBuffer) writeLine(line string) {
	b.sb.WriteString(line)
	b.sb.WriteByte('\n')
	if b.sb.Len() > maxStderrKept {
		s := b.sb.String()
		s = s[len(s)-maxStderrKept/2:]
		b.sb.Reset()
		b.sb.WriteString(s)
	}
}

func (b *tailBuffer) String() string { return b.sb.String() }
