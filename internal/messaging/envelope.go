// Package messaging описывает формат событий, которые outbox публикует
// во внешние брокеры (Kafka, RabbitMQ).
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
)

// Заголовки сообщений, общие для всех брокеров.
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
)

// Envelope конверт события, который видят потребители.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope упаковывает outbox-сообщение.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
		OccurredAt:    msg.CreatedAt.UTC(),
		PublishedAt:   publishedAt.UTC(),
	}
}

// PartitionKey ключ партиционирования: события одного агрегата идут по порядку.
func PartitionKey(msg domain.OutboxMessage) string {
	if msg.AggregateID != "" {
		return msg.AggregateID
	}
	return msg.ID
}

// Headers возвращает заголовки, описывающие сообщение.
func Headers(msg domain.OutboxMessage) map[string]string {
	return map[string]string{
		HeaderEventType:     msg.EventType,
		HeaderAggregateType: msg.AggregateType,
		HeaderOutboxID:      msg.ID,
	}
}

// DeadLetter запись о событии, которое не удалось опубликовать.
type DeadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	OccurredAt     time.Time       `json:"occurred_at"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}

// NewDeadLetterMessage формирует outbox-сообщение для DLQ. Payload содержит
// исходное событие и текст ошибки публикации.
func NewDeadLetterMessage(msg domain.OutboxMessage, publishErr error, at time.Time) (domain.OutboxMessage, error) {
	reason := ""
	if publishErr != nil {
		reason = publishErr.Error()
	}
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	data, err := json.Marshal(DeadLetter{
		OutboxID:       msg.ID,
		AggregateType:  msg.AggregateType,
		AggregateID:    msg.AggregateID,
		EventType:      msg.EventType,
		Payload:        payload,
		OccurredAt:     msg.CreatedAt.UTC(),
		PublishError:   reason,
		DLQPublishedAt: at.UTC(),
	})
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal dlq payload: %w", err)
	}

	return domain.OutboxMessage{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       data,
		CreatedAt:     msg.CreatedAt,
	}, nil
}

// DecodeDeadLetter разбирает сообщение DLQ: конверт, внутри которого лежит DeadLetter.
func DecodeDeadLetter(value []byte) (DeadLetter, error) {
	var envelope Envelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		return DeadLetter{}, fmt.Errorf("decode dlq envelope: %w", err)
	}
	if len(envelope.Payload) == 0 || string(envelope.Payload) == "null" {
		return DeadLetter{}, fmt.Errorf("dlq envelope %s has no payload", envelope.ID)
	}

	var letter DeadLetter
	if err := json.Unmarshal(envelope.Payload, &letter); err != nil {
		return DeadLetter{}, fmt.Errorf("decode dlq payload: %w", err)
	}
	if len(letter.Payload) == 0 {
		return DeadLetter{}, fmt.Errorf("dlq payload %s does not contain original event", envelope.ID)
	}

	if letter.OutboxID == "" {
		letter.OutboxID = envelope.ID
	}
	if letter.AggregateType == "" {
		letter.AggregateType = envelope.AggregateType
	}
	if letter.AggregateID == "" {
		letter.AggregateID = envelope.AggregateID
	}
	if letter.EventType == "" {
		letter.EventType = envelope.EventType
	}
	if letter.OccurredAt.IsZero() {
		letter.OccurredAt = envelope.OccurredAt
	}
	return letter, nil
}

// Original восстанавливает исходное outbox-сообщение для повторной публикации.
func (d DeadLetter) Original() domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            d.OutboxID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       []byte(d.Payload),
		CreatedAt:     d.OccurredAt,
	}
}
