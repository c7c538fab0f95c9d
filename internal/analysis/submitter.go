package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/audio-analysis-proxy/internal/domain"
	"github.com/cuongbtq/audio-analysis-proxy/shared/logger"
)

// Submission is one file forwarded to the analysis service
type Submission struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	Credential  string
}

// Submitted is the outcome of an accepted submission
type Submitted struct {
	JobID       string
	JobIDSource domain.JobIDSource
	Status      domain.JobStatus
	FileName    string
	ContentType string
	Size        int64
}

// Submitter forwards files to the submission endpoint
type Submitter struct {
	client    *Client
	publisher StatusPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewSubmitter creates a Submitter. publisher may be nil.
func NewSubmitter(client *Client, publisher StatusPublisher, logger *slog.Logger) *Submitter {
	return &Submitter{
		client:    client,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit uploads the payload and derives a job identifier
func (s *Submitter) Submit(ctx context.Context, sub Submission) (*Submitted, error) {
	if sub.Body == nil || sub.Size <= 0 {
		return nil, domain.NewValidationError("audio_file", "No audio_file provided")
	}
	if strings.TrimSpace(sub.Credential) == "" {
		return nil, domain.NewValidationError("user_token", "No user_token provided")
	}

	log := s.logger.With(
		slog.String("file_name", sub.FileName),
		logger.Secret("user_token", sub.Credential),
	)
	log.Info("Submitting audio for analysis",
		slog.String("file_type", sub.ContentType),
		slog.Int64("file_size", sub.Size),
	)

	resp, written, err := s.client.upload(ctx, sub)
	if err != nil {
		if errors.Is(err, errEmptyPayload) {
			return nil, domain.NewValidationError("audio_file", "No audio_file provided")
		}
		log.Error("Upload request failed", slog.String("error", err.Error()))
		return nil, &domain.UploadError{Cause: err}
	}

	if resp.Truncated {
		log.Warn("Upload response exceeded the read limit and was truncated",
			slog.Int("limit_bytes", maxBodyBytes),
			slog.Int("status", resp.StatusCode),
		)
	}

	limit := s.client.cfg.ExcerptLimit
	decoded := DecodeBody(resp.Body)
	if !isSuccess(resp.StatusCode) {
		excerpt := Excerpt(decoded.Text, limit)
		log.Error("Upload rejected by upstream",
			slog.Int("status", resp.StatusCode),
			slog.String("body", excerpt),
		)
		return nil, &domain.UploadError{HTTPStatus: resp.StatusCode, Excerpt: excerpt}
	}

	jobID, source := s.jobID(decoded, sub)
	if !decoded.OK() {
		log.Warn("Upload response was not JSON, synthesized job id",
			slog.String("error", decoded.Err.Error()),
			slog.String("body", Excerpt(decoded.Text, limit)),
		)
	}

	log.Info("Upload accepted",
		slog.String("job_id", jobID),
		slog.String("job_id_source", string(source)),
		slog.Int64("bytes_sent", written),
	)

	emit(ctx, s.publisher, s.logger, StatusEvent{
		JobID:      jobID,
		Status:     domain.JobStatusSubmitted,
		HTTPStatus: resp.StatusCode,
	})

	return &Submitted{
		JobID:       jobID,
		JobIDSource: source,
		Status:      domain.JobStatusSubmitted,
		FileName:    sub.FileName,
		ContentType: sub.ContentType,
		Size:        sub.Size,
	}, nil
}

func (s *Submitter) jobID(decoded Decoded, sub Submission) (string, domain.JobIDSource) {
	if decoded.OK() {
		if id := upstreamJobID(decoded.Value); id != "" {
			return id, domain.JobIDFromUpstream
		}
	}
	return SynthesizeJobID(sub.Credential, sub.FileName, s.now()), domain.JobIDSynthesized
}

// upstreamJobID checks data.id before the top-level id
func upstreamJobID(v any) string {
	for _, path := range [][]string{{"data", "id"}, {"id"}} {
		if id := strings.TrimSpace(stringAt(v, path...)); id != "" {
			return id
		}
	}
	return ""
}

// SynthesizeJobID builds credential_filename_unixMillis. Two uploads of the same
// file name by the same credential within one millisecond collide.
func SynthesizeJobID(credential, fileName string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", credential, fileName, at.UnixMilli())
}
