package dispatch

import (
	"fmt"
	"strings"
)

// Kind classifies a failed render.
type Kind int

const (
	KindUnknown Kind = iota
	KindFileIO
	KindRenderFault
	KindConfiguration
	KindTimeout
)

// Worker exit codes.
const (
	ExitOK            = 0
	ExitFileIO        = 1
	ExitRenderFault   = 2
	ExitConfiguration = 3
)

func (k Kind) String() string {
	switch k {
	case KindFileIO:
		return "file_io"
	case KindRenderFault:
		return "render_fault"
	case KindConfiguration:
		return "configuration"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ExitCode is the worker exit code reporting k. Errors of no other kind
// share the configuration status.
func (k Kind) ExitCode() int {
	switch k {
	case KindFileIO:
		return ExitFileIO
	case KindRenderFault:
		return ExitRenderFault
	default:
		return ExitConfiguration
	}
}

// KindForExit maps a worker exit code back to a Kind.
func KindForExit(code int) Kind {
	switch code {
	case ExitFileIO:
		return KindFileIO
	case ExitRenderFault:
		return KindRenderFault
	case ExitConfiguration:
		return KindConfiguration
	default:
		return KindUnknown
	}
}

// RenderError is a failed render of one style.
type RenderError struct {
	Kind     Kind
	Style    Style
	ExitCode int
	Stderr   string
	Err      error
}

func (e *RenderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s render failed: %s", e.Style, e.Kind)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if msg := firstLine(e.Stderr); msg != "" {
		b.WriteString(": " + msg)
	} else if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *RenderError) Unwrap() error { return e.Err }

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
