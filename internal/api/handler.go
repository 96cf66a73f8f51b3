package api

import (
	"departure-board-backend/internal/store"

	"github.com/SherClockHolmes/webpush-go"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	webpush   *webpush.Options
	outputDir string
}

// NewHandler creates a new API handler. outputDir is where the poller
// writes board text and images.
func NewHandler(s store.Store, webpushOptions *webpush.Options, outputDir string) *Handler {
	return &Handler{
		store:     s,
		webpush:   webpushOptions,
		outputDir: outputDir,
	}
}
