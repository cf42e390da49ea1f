package publisher

import (
	"context"
	"time"

	"github.com/fjod/go_store/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "purchase-events"

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller relays committed outbox rows to Kafka. Delivery is
// at-least-once: a row is marked only after the write succeeds.
type OutboxPoller struct {
	eventTick time.Duration
	batchSize int
	repo      OutboxRepository
	writer    MessageWriter
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo OutboxRepository, writer MessageWriter, tick time.Duration) *OutboxPoller {
	if tick <= 0 {
		tick = time.Second
	}
	return &OutboxPoller{eventTick: tick, batchSize: 100, repo: repo, writer: writer}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch outbox events")
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			log.Error().Err(err).Str("event_id", event.ID).Msg("failed to publish outbox event")
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.Error().Err(err).Str("event_id", event.ID).Msg("failed to mark outbox event as processed")
			continue
		}
		published++
	}
	return published
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *domain.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
