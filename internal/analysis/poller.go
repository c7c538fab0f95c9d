package analysis

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cuongbtq/audio-analysis-proxy/internal/domain"
	"github.com/cuongbtq/audio-analysis-proxy/shared/logger"
)

// PollResult is a reconciled outcome for one job identifier
type PollResult struct {
	JobID string
	Outcome
}

// Poller fetches results and reconciles them into a job status
type Poller struct {
	client     *Client
	reconciler *Reconciler
	publisher  StatusPublisher
	logger     *slog.Logger
}

// NewPoller creates a Poller. publisher may be nil.
func NewPoller(client *Client, publisher StatusPublisher, logger *slog.Logger) *Poller {
	cfg := client.Config()
	return &Poller{
		client:     client,
		reconciler: NewReconciler(cfg.PendingCodes, cfg.ExcerptLimit),
		publisher:  publisher,
		logger:     logger,
	}
}

// Poll queries the result endpoint once. The only error is a ValidationError;
// every upstream failure is reported as an outcome.
func (p *Poller) Poll(ctx context.Context, jobID, credential string) (*PollResult, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, domain.NewValidationError("jobId", "jobId query parameter is required")
	}
	if strings.TrimSpace(credential) == "" {
		return nil, domain.NewValidationError("userToken", "userToken query parameter is required")
	}

	log := p.logger.With(
		slog.String("job_id", jobID),
		logger.Secret("user_token", credential),
	)

	obs := p.observe(ctx, credential)
	if obs.Truncated {
		log.Warn("Result body exceeded the read limit and was truncated",
			slog.Int("limit_bytes", maxBodyBytes),
			slog.Int("upstream_status", obs.StatusCode),
		)
	}
	out := p.reconciler.Reconcile(obs)

	attrs := []any{
		slog.String("status", out.Status.String()),
		slog.String("rule", out.Rule),
		slog.Int("upstream_status", obs.StatusCode),
	}
	switch out.Rule {
	case RuleTransportFailure:
		log.Warn("Result fetch failed, reporting as processing",
			append(attrs, slog.String("error", obs.Err.Error()))...)
	case RuleUpstreamCode:
		log.Warn("Unrecognized upstream code, reporting as error; add it to pending_codes if it means not ready",
			append(attrs, slog.String("code", out.Code))...)
	case RuleNoContent:
		log.Info("No content or unexpected data structure",
			append(attrs, slog.String("body", Excerpt(obs.Body.Text, p.client.cfg.ExcerptLimit)))...)
	default:
		if out.Err != nil {
			log.Error("Poll reconciled to error", append(attrs, slog.String("error", out.Err.Error()))...)
		} else {
			log.Info("Poll reconciled", attrs...)
		}
	}

	emit(ctx, p.publisher, p.logger, StatusEvent{
		JobID:      jobID,
		Status:     out.Status,
		Rule:       out.Rule,
		HTTPStatus: out.HTTPStatus,
		Code:       out.Code,
	})

	return &PollResult{JobID: jobID, Outcome: out}, nil
}

// observe performs the bounded fetch. Cancellation is an observation, not an error.
func (p *Poller) observe(ctx context.Context, credential string) Observation {
	ctx, cancel := context.WithTimeout(ctx, p.client.cfg.PollTimeout)
	defer cancel()

	resp, err := p.client.fetchResult(ctx, credential)
	if err != nil {
		return Observation{Err: err}
	}
	return Observation{
		StatusCode: resp.StatusCode,
		Body:       DecodeBody(resp.Body),
		Truncated:  resp.Truncated,
	}
}
