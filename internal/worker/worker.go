// Package worker draws one board image from a text file and a parameters
// file. It backs the boardrender binary and the in-process renderer.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"departure-board-backend/internal/board"
	"departure-board-backend/internal/dispatch"
	"departure-board-backend/internal/metrics"
	"departure-board-backend/internal/params"
	"departure-board-backend/internal/render"
	"departure-board-backend/internal/render/classic"
	"departure-board-backend/internal/render/modern"
)

// ErrConfig marks bad arguments or settings.
var ErrConfig = errors.New("configuration error")

// Usage describes the positional arguments.
const Usage = "<image> <text> <params> <YES|NO> [classic|modern]"

// ParseArgs decodes the worker argv (without the program name).
func ParseArgs(args []string) (dispatch.Job, error) {
	if len(args) < 4 || len(args) > 5 {
		return dispatch.Job{}, fmt.Errorf("%w: expected %s, got %d arguments", ErrConfig, Usage, len(args))
	}
	job := dispatch.Job{
		Style:      dispatch.Classic,
		ImagePath:  args[0],
		TextPath:   args[1],
		ParamsPath: args[2],
		Departures: strings.EqualFold(strings.TrimSpace(args[3]), "YES"),
	}
	if len(args) == 5 {
		s, err := dispatch.ParseStyle(args[4])
		if err != nil {
			return dispatch.Job{}, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		job.Style = s
	}
	return job, nil
}

// KindOf classifies a worker error.
func KindOf(err error) dispatch.Kind {
	var fe *render.FileError
	switch {
	case errors.As(err, &fe):
		return dispatch.KindFileIO
	case errors.Is(err, render.ErrDraw):
		return dispatch.KindRenderFault
	case errors.Is(err, ErrConfig), errors.Is(err, params.ErrMalformed):
		return dispatch.KindConfiguration
	default:
		return dispatch.KindUnknown
	}
}

// ExitCode is the process exit status for err.
func ExitCode(err error) int {
	if err == nil {
		return dispatch.ExitOK
	}
	return KindOf(err).ExitCode()
}

// Worker draws boards with a shared font cache.
type Worker struct {
	fonts  *render.Fonts
	logger *log.Logger
}

// New loads fonts from fontDir on demand.
func New(fontDir string, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{fonts: render.NewFonts(fontDir, logger), logger: logger}
}

// Run draws job and writes the PNG.
func (w *Worker) Run(job dispatch.Job) (dispatch.Stats, error) {
	text, err := os.ReadFile(job.TextPath)
	if err != nil {
		return dispatch.Stats{}, &render.FileError{Path: job.TextPath, Err: err}
	}
	p, err := params.Load(job.ParamsPath)
	if err != nil {
		if errors.Is(err, params.ErrMalformed) {
			return dispatch.Stats{}, fmt.Errorf("%s: %w", job.ParamsPath, err)
		}
		return dispatch.Stats{}, &render.FileError{Path: job.ParamsPath, Err: err}
	}
	doc := board.Document(text)

	var (
		c     *render.Canvas
		stats dispatch.Stats
	)
	switch job.Style {
	case dispatch.Classic, "":
		var plan classic.Plan
		c, plan, err = classic.Render(doc, p, classic.LoadFaces(w.fonts, p.FontSize), job.Departures)
		stats.Services = plan.Services
	case dispatch.Modern:
		var res modern.Result
		c, res, err = modern.Render(doc, modern.LoadFaces(w.fonts), w.logger)
		stats.Services = len(res.Cards)
		stats.Skipped = res.Report.Total()
	default:
		return dispatch.Stats{}, fmt.Errorf("%w: unknown style %q", ErrConfig, job.Style)
	}
	if err != nil {
		return stats, err
	}
	stats.Height = c.Height()

	if err := c.SavePNG(job.ImagePath); err != nil {
		return stats, err
	}
	return stats, nil
}

// Render runs job in-process, reporting failures like the worker binary.
func (w *Worker) Render(ctx context.Context, job dispatch.Job) error {
	if err := ctx.Err(); err != nil {
		return &dispatch.RenderError{Kind: dispatch.KindTimeout, Style: job.Style, ExitCode: -1, Err: err}
	}
	stats, err := w.Run(job)
	if err != nil {
		kind := KindOf(err)
		return &dispatch.RenderError{Kind: kind, Style: job.Style, ExitCode: kind.ExitCode(), Err: err}
	}
	if stats.Skipped > 0 {
		metrics.MalformedLines.Add(float64(stats.Skipped))
	}
	return nil
}
