// Package events fans report status changes out to other services. Delivery is
// best effort: notification and email workers subscribe on the broker side.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event types published for report lifecycle changes.
const (
	TypeReportCreated     = "report.created"
	TypeReportSubmitted   = "report.submitted"
	TypeReportResubmitted = "report.resubmitted"
	TypeReportReviewed    = "report.reviewed"
	TypeReportDeleted     = "report.deleted"
)

// ReportEvent describes a report status change.
type ReportEvent struct {
	Type           string    `json:"type"`
	Source         string    `json:"source"`
	ReportID       string    `json:"report_id"`
	StudentID      uint      `json:"student_id"`
	TeacherID      uint      `json:"teacher_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status"`
	ActorID        uint      `json:"actor_id"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher delivers report events.
type Publisher interface {
	Publish(ctx context.Context, event ReportEvent) error
}

// BrokerPublisher publishes to a Redis channel and a NATS subject when configured.
type BrokerPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
}

// NewBrokerPublisher derives channel names from channelBase, e.g. "progress" gives
// Redis channel "progress:reports" and NATS subject "progress.reports".
func NewBrokerPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *BrokerPublisher {
	channel := ""
	subject := ""
	if base := strings.TrimSpace(channelBase); base != "" {
		channel = base + ":reports"
		subject = strings.ReplaceAll(base, ":", ".") + ".reports"
	}

	return &BrokerPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "report_event_publisher").Logger(),
	}
}

// RedisChannel returns the channel events are published on.
func (p *BrokerPublisher) RedisChannel() string {
	return p.redisChannel
}

// NATSSubject returns the subject events are published on.
func (p *BrokerPublisher) NATSSubject() string {
	return p.natsSubject
}

func (p *BrokerPublisher) Publish(ctx context.Context, event ReportEvent) error {
	if event.Source == "" {
		event.Source = p.nodeID
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	p.logger.Debug().Str("type", event.Type).Str("report_id", event.ReportID).Msg("report event published")
	return nil
}
