package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"departure-board-backend/internal/metrics"
)

// DefaultTimeout bounds a single worker invocation.
const DefaultTimeout = 10 * time.Second

// ProcessRenderer runs each job in its own worker process.
type ProcessRenderer struct {
	Path string
	// Args are placed before the job arguments.
	Args    []string
	Env     []string
	Timeout time.Duration
	Logger  *log.Logger
}

// NewProcessRenderer runs the worker binary at path.
func NewProcessRenderer(path string, timeout time.Duration, logger *log.Logger) *ProcessRenderer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ProcessRenderer{Path: path, Timeout: timeout, Logger: logger}
}

// Render runs the worker and maps its exit status to a RenderError.
func (p *ProcessRenderer) Render(ctx context.Context, job Job) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, p.Args...), job.Args()...)
	cmd := exec.CommandContext(ctx, p.Path, args...)
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &RenderError{Kind: KindTimeout, Style: job.Style, ExitCode: -1, Stderr: stderr.String(),
			Err: fmt.Errorf("worker exceeded %s", timeout)}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			return &RenderError{Kind: KindForExit(code), Style: job.Style, ExitCode: code, Stderr: stderr.String(), Err: err}
		}
		return &RenderError{Kind: KindConfiguration, Style: job.Style, ExitCode: -1, Err: fmt.Errorf("start worker: %w", err)}
	}

	out := strings.TrimSpace(stdout.String())
	if stats, ok := ParseStats(out); ok && stats.Skipped > 0 {
		metrics.MalformedLines.Add(float64(stats.Skipped))
	}
	if p.Logger != nil && out != "" {
		p.Logger.Printf("Render worker: %s", out)
	}
	return nil
}
