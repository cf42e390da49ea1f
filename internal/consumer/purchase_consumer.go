package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_store/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type CartClearer interface {
	ClearFor(ctx context.Context, email string) error
}

// PurchaseConsumer empties the buyer's cart once a purchase is fulfilled.
type PurchaseConsumer struct {
	reader  MessageReader
	carts   CartClearer
	backoff time.Duration
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewPurchaseConsumer(reader MessageReader, carts CartClearer) *PurchaseConsumer {
	return &PurchaseConsumer{reader: reader, carts: carts, backoff: time.Second}
}

func (c *PurchaseConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Err(err).Msg("error reading purchase message")
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		if err := c.processMessage(ctx, m); err != nil {
			log.Error().Err(err).Int64("offset", m.Offset).Msg("failed to process purchase message")
		}
	}
}

func (c *PurchaseConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Error().Err(err).Msg("error closing reader")
	}
}

func (c *PurchaseConsumer) processMessage(ctx context.Context, m kafka.Message) error {
	if eventType := header(m, "event_type"); eventType != "" && eventType != domain.EventTypePurchaseCompleted {
		return nil
	}

	var event domain.PurchaseCompletedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("parse purchase event: %w", err)
	}
	if event.Email == "" {
		log.Warn().Str("user_id", event.UserID).Msg("purchase event without email, cart left as is")
		return nil
	}

	if err := c.carts.ClearFor(ctx, event.Email); err != nil {
		return fmt.Errorf("clear cart for %s: %w", event.UserID, err)
	}
	log.Info().Str("user_id", event.UserID).Str("session_id", event.SessionID).Msg("cart cleared after purchase")
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
