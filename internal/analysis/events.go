package analysis

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/audio-analysis-proxy/internal/domain"
	"github.com/google/uuid"
)

const publishTimeout = 5 * time.Second

// StatusEvent is emitted after every submission and every reconciled poll.
// It never carries the caller's credential.
type StatusEvent struct {
	EventID    string           `json:"event_id"`
	JobID      string           `json:"job_id"`
	Status     domain.JobStatus `json:"status"`
	Rule       string           `json:"rule,omitempty"`
	HTTPStatus int              `json:"http_status,omitempty"`
	Code       string           `json:"code,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// StatusPublisher delivers status events to downstream consumers
type StatusPublisher interface {
	PublishStatus(ctx context.Context, event StatusEvent) error
}

// JSONPublisher is a broker client that can publish a JSON document
type JSONPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, v any) error
}

type brokerPublisher struct {
	broker JSONPublisher
	prefix string
}

// NewBrokerPublisher routes events to "<prefix>.<status>" on the broker
func NewBrokerPublisher(broker JSONPublisher, prefix string) StatusPublisher {
	return &brokerPublisher{broker: broker, prefix: prefix}
}

func (p *brokerPublisher) PublishStatus(ctx context.Context, event StatusEvent) error {
	return p.broker.PublishJSON(ctx, RoutingKey(p.prefix, event.Status), event)
}

// RoutingKey builds the routing key for a status
func RoutingKey(prefix string, status domain.JobStatus) string {
	return prefix + "." + strings.ToLower(string(status))
}

// emit publishes without letting a broker failure reach the caller
func emit(ctx context.Context, publisher StatusPublisher, logger *slog.Logger, event StatusEvent) {
	if publisher == nil {
		return
	}
	event.EventID = uuid.NewString()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	// the caller may already have gone away
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := publisher.PublishStatus(ctx, event); err != nil {
		logger.Warn("Failed to publish status event",
			slog.String("job_id", event.JobID),
			slog.String("status", event.Status.String()),
			slog.String("error", err.Error()),
		)
	}
}
