package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"login-service/internal/config"
	"login-service/internal/models"
	"login-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher records security events emitted by the auth flow. Publishing
// is best-effort: a failed publish is logged and never fails the request
// that produced the event.
type Publisher interface {
	Publish(ctx context.Context, accountID int64, eventType, details string)
	Close() error
}

// KafkaPublisher writes security events to a Kafka topic, keyed by account
// id so one account's events stay ordered within a partition.
type KafkaPublisher struct {
	writer  *kafka.Writer
	brokers []string
	logger  *zap.Logger
}

// NewKafkaPublisher builds a publisher for the configured brokers/topic.
func NewKafkaPublisher(cfg *config.Config, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to write kafka messages",
					zap.Error(err),
					zap.Int("message_count", len(messages)),
				)
			}
		},
	}

	logger.Info("Kafka security event publisher initialized",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)

	return &KafkaPublisher{writer: writer, brokers: cfg.Kafka.Brokers, logger: logger}
}

// HealthCheck dials the first broker to verify connectivity.
func (p *KafkaPublisher) HealthCheck(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("kafka broker unreachable: %w", err)
	}
	return conn.Close()
}

func (p *KafkaPublisher) Publish(ctx context.Context, accountID int64, eventType, details string) {
	event := models.SecurityEvent{
		EventID:   uuid.NewString(),
		AccountID: accountID,
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Details:   details,
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode security event", zap.Error(err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(accountID, 10)),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("failed to publish security event",
			util.String("event_type", eventType),
			util.Int64("account_id", accountID),
			util.ErrorField(err),
		)
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, accountID int64, eventType, details string) {}

func (NopPublisher) Close() error { return nil }
