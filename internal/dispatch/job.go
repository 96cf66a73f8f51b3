package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Style names a board layout.
type Style string

const (
	Classic Style = "classic"
	Modern  Style = "modern"
)

// ParseStyle accepts a style tag, case-insensitively.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case Classic:
		return Classic, nil
	case Modern:
		return Modern, nil
	}
	return "", fmt.Errorf("unknown style %q", s)
}

// ImagePath is where the style writes its image, given the classic path.
// Modern output gets a "_modern" suffix so the two never collide.
func (s Style) ImagePath(base string) string {
	if s != Modern {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_modern" + ext
}

// Job is one render invocation.
type Job struct {
	Style      Style
	ImagePath  string
	TextPath   string
	ParamsPath string
	Departures bool
}

// Args is the worker argv: image, text, params, YES|NO, style.
func (j Job) Args() []string {
	flag := "NO"
	if j.Departures {
		flag = "YES"
	}
	return []string{j.ImagePath, j.TextPath, j.ParamsPath, flag, string(j.Style)}
}

// Renderer draws one job.
type Renderer interface {
	Render(ctx context.Context, job Job) error
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(ctx context.Context, job Job) error

func (f RenderFunc) Render(ctx context.Context, job Job) error { return f(ctx, job) }

// Stats is the summary a worker prints on stdout after drawing.
type Stats struct {
	Services int
	Skipped  int
	Height   int
}

func (s Stats) String() string {
	return fmt.Sprintf("services=%d skipped=%d height=%d", s.Services, s.Skipped, s.Height)
}

// ParseStats finds a Stats summary in worker output.
func ParseStats(out string) (Stats, bool) {
	i := strings.LastIndex(out, "services=")
	if i < 0 {
		return Stats{}, false
	}
	var s Stats
	if _, err := fmt.Sscanf(out[i:], "services=%d skipped=%d height=%d", &s.Services, &s.Skipped, &s.Height); err != nil {
		return Stats{}, false
	}
	return s, true
}
