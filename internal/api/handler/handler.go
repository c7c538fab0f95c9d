package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/audio-analysis-proxy/internal/analysis"
)

// Submitter forwards an uploaded file to the analysis service
type Submitter interface {
	Submit(ctx context.Context, sub analysis.Submission) (*analysis.Submitted, error)
}

// Poller reconciles the latest analysis result for a job
type Poller interface {
	Poll(ctx context.Context, jobID, credential string) (*analysis.PollResult, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Submitter   Submitter
	Poller      Poller
	ServiceName string
}

// AnalysisHandler handles audio analysis HTTP requests
type AnalysisHandler struct {
	logger    *slog.Logger
	submitter Submitter
	poller    Poller
}

// NewAnalysisHandler creates a new AnalysisHandler instance
func NewAnalysisHandler(deps *Dependencies) *AnalysisHandler {
	return &AnalysisHandler{
		logger:    deps.Logger,
		submitter: deps.Submitter,
		poller:    deps.Poller,
	}
}
