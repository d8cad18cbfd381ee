package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/yanun0323/errors"

	"main/internal/model"
)

// KafkaNotifier publishes movement batches to one topic, keyed by tenant so
// per-tenant ordering is preserved within a partition.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier builds a notifier on top of a kafka-go writer.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (n *KafkaNotifier) Publish(ctx context.Context, tc model.TenantContext, movements []model.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	payload, err := json.Marshal(newEnvelope(tc, movements))
	if err != nil {
		return errors.Wrap(err, "marshal movement batch")
	}

	msg := kafka.Message{
		Key:   []byte(tc.TenantID.String()),
		Value: payload,
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "write movement batch")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

type envelope struct {
	TenantID  uuid.UUID       `json:"tenantId"`
	ChannelID uuid.UUID       `json:"channelId"`
	Movements []envelopeEntry `json:"movements"`
}

type envelopeEntry struct {
	ID          uuid.UUID  `json:"id"`
	ItemID      uuid.UUID  `json:"itemId"`
	Kind        string     `json:"kind"`
	Quantity    int64      `json:"quantity"`
	OrderLineID *uuid.UUID `json:"orderLineId,omitempty"`
	OrderItemID *uuid.UUID `json:"orderItemId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func newEnvelope(tc model.TenantContext, movements []model.Movement) envelope {
	entries := make([]envelopeEntry, 0, len(movements))
	for _, m := range movements {
		entries = append(entries, envelopeEntry{
			ID:          m.ID,
			ItemID:      m.ItemID,
			Kind:        m.Kind.String(),
			Quantity:    m.Quantity,
			OrderLineID: m.OrderLineID,
			OrderItemID: m.OrderItemID,
			CreatedAt:   m.CreatedAt,
		})
	}
	return envelope{
		TenantID:  tc.TenantID,
		ChannelID: tc.ChannelID,
		Movements: entries,
	}
}
