// Package pub publishes transaction and audit events for downstream
// consumers (dashboards, notification workers). Publishing is best-effort:
// the database row is the source of truth.
package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recharge-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const TransactionEventsChannel = "transaction_events"

type EventPublisher struct {
	rdb         *redis.Client
	auditWriter *kafka.Writer
	logger      *zap.Logger
}

func NewEventPublisher(rdb *redis.Client, brokers []string, auditTopic string, logger *zap.Logger) *EventPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        auditTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	return &EventPublisher{rdb: rdb, auditWriter: writer, logger: logger}
}

func (p *EventPublisher) Close() error {
	return p.auditWriter.Close()
}

type TransactionEvent struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"` // sale.printed, sale.confirmed, receipt.reissued
	AgentID       int64           `json:"agent_id"`
	TransactionID int64           `json:"transaction_id"`
	Status        string          `json:"status"`
	Price         decimal.Decimal `json:"price"`
	Commission    decimal.Decimal `json:"commission,omitempty"`
	BalanceAfter  decimal.Decimal `json:"balance_after,omitempty"`
	Source        string          `json:"source,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// PublishTransactionEvent publishes a transaction event to redis pub/sub.
func (p *EventPublisher) PublishTransactionEvent(ctx context.Context, event *TransactionEvent) error {
	event.Timestamp = time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, TransactionEventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("transaction event published",
		zap.String("event_type", event.EventType),
		zap.Int64("transaction_id", event.TransactionID),
	)
	return nil
}

// PublishAudit streams an already-committed audit entry to kafka.
func (p *EventPublisher) PublishAudit(ctx context.Context, e *domain.AuditEntry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(string(e.Action)),
		Value: payload,
		Time:  time.Now(),
	}
	if err := p.auditWriter.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write audit message: %w", err)
	}
	return nil
}
