// Package dispatch runs the enabled board renderers for a route and
// collects their outcomes.
package dispatch

import (
	"context"
	"errors"
	"log"
	"time"

	"departure-board-backend/internal/metrics"
)

// Request describes the files for one route's render.
type Request struct {
	// ImagePath is the classic output path; other styles derive theirs.
	ImagePath  string
	TextPath   string
	ParamsPath string
	Departures bool
	Styles     []Style
}

// Outcome is the result of rendering one style.
type Outcome struct {
	Style    Style
	Success  bool
	Kind     Kind
	Err      error
	Duration time.Duration
}

// Report aggregates the outcomes of a request.
type Report struct {
	Outcomes []Outcome
	NoStyles bool
}

// Success reports whether at least one style rendered.
func (r Report) Success() bool {
	for _, o := range r.Outcomes {
		if o.Success {
			return true
		}
	}
	return false
}

// Complete reports whether every requested style rendered.
func (r Report) Complete() bool {
	if r.NoStyles || len(r.Outcomes) == 0 {
		return false
	}
	for _, o := range r.Outcomes {
		if !o.Success {
			return false
		}
	}
	return true
}

// LastError is the most recent failure, if any.
func (r Report) LastError() error {
	for i := len(r.Outcomes) - 1; i >= 0; i-- {
		if r.Outcomes[i].Err != nil {
			return r.Outcomes[i].Err
		}
	}
	return nil
}

// Dispatcher renders each enabled style independently.
type Dispatcher struct {
	renderer Renderer
	logger   *log.Logger
}

func New(renderer Renderer, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{renderer: renderer, logger: logger}
}

// Dispatch renders every style in req. A failing style does not stop
// the others.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Report {
	var report Report
	if len(req.Styles) == 0 {
		d.logger.Printf("Warning: no image styles enabled, nothing rendered for %s", req.TextPath)
		report.NoStyles = true
		return report
	}

	seen := make(map[Style]bool, len(req.Styles))
	for _, style := range req.Styles {
		if seen[style] {
			continue
		}
		seen[style] = true

		job := Job{
			Style:      style,
			ImagePath:  style.ImagePath(req.ImagePath),
			TextPath:   req.TextPath,
			ParamsPath: req.ParamsPath,
			Departures: req.Departures,
		}
		start := time.Now()
		err := d.renderer.Render(ctx, job)
		o := Outcome{Style: style, Success: err == nil, Err: err, Duration: time.Since(start)}

		result := "ok"
		if err != nil {
			o.Kind = kindOf(err)
			result = o.Kind.String()
			d.logger.Printf("Warning: %s image for %s failed: %v", style, req.TextPath, err)
		}
		metrics.RenderOutcomes.WithLabelValues(string(style), result).Inc()
		metrics.RenderDuration.WithLabelValues(string(style)).Observe(o.Duration.Seconds())
		report.Outcomes = append(report.Outcomes, o)
	}
	return report
}

func kindOf(err error) Kind {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}
