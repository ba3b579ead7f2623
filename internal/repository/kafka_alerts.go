package repository

import (
	"context"
	"fmt"
	"time"

	"IndiPull/internal/domain/models"
	domrepo "IndiPull/internal/domain/repository"
	pkgkafka "IndiPull/pkg/kafka"
	applogger "IndiPull/pkg/logger"
)

type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// AlertEvent is the message value; the key is the indicator code so alerts
// for one indicator stay ordered within a partition.
type AlertEvent struct {
	CycleID     string       `json:"cycle_id"`
	PublishedAt time.Time    `json:"published_at"`
	Alert       models.Alert `json:"alert"`
}

// KafkaAlertPublisher notifies downstream consumers of raised alerts.
type KafkaAlertPublisher struct {
	producer batchPublisher
	topic    string
	l        *applogger.Logger
	now      func() time.Time
}

func NewKafkaAlertPublisher(p *pkgkafka.Producer, topic string) *KafkaAlertPublisher {
	return newKafkaAlertPublisher(p, topic)
}

func newKafkaAlertPublisher(p batchPublisher, topic string) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: p, topic: topic, l: applogger.Nop(), now: time.Now}
}

var _ domrepo.AlertPublisher = (*KafkaAlertPublisher)(nil)

// SetLogger injects a structured logger.
func (p *KafkaAlertPublisher) SetLogger(l *applogger.Logger) { p.l = l }

func (p *KafkaAlertPublisher) Publish(ctx context.Context, cycleID string, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	at := p.now().UTC()
	msgs := make([]pkgkafka.Message, 0, len(alerts))
	for _, a := range alerts {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(a.Indicator),
			Value: AlertEvent{CycleID: cycleID, PublishedAt: at, Alert: a},
		})
	}
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		p.l.Error("kafka alerts publish error",
			applogger.String("topic", p.topic),
			applogger.String("cycle_id", cycleID),
			applogger.Int("alerts", len(alerts)),
			applogger.Error(err),
		)
		return fmt.Errorf("publish alerts: %w", err)
	}
	p.l.Info("kafka alerts published",
		applogger.String("topic", p.topic),
		applogger.String("cycle_id", cycleID),
		applogger.Int("alerts", len(alerts)),
	)
	return nil
}

func (p *KafkaAlertPublisher) Close() error { return p.producer.Close() }

// NopAlertPublisher drops alerts; used when Kafka publishing is disabled.
type NopAlertPublisher struct{}

var _ domrepo.AlertPublisher = NopAlertPublisher{}

func (NopAlertPublisher) Publish(context.Context, string, []models.Alert) error { return nil }
func (NopAlertPublisher) Close() error                                          { return nil }
