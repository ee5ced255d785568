package outbox

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
)

// Emitter записывает доменные события в outbox. Запись best-effort:
// ошибка логируется и не влияет на результат бизнес-операции.
// nil-Emitter ничего не делает.
type Emitter struct {
	repo   domain.OutboxRepository
	logger *log.Entry
	now    func() time.Time
}

// NewEmitter создаёт Emitter поверх outbox-репозитория.
func NewEmitter(repo domain.OutboxRepository, logger *log.Entry) *Emitter {
	if repo == nil {
		return nil
	}
	if logger == nil {
		logger = log.WithField("component", "outbox-emitter")
	}
	return &Emitter{repo: repo, logger: logger, now: time.Now}
}

// Emit сериализует payload в JSON и ставит событие в очередь.
func (e *Emitter) Emit(ctx context.Context, aggregateType, aggregateID, eventType string, payload any) {
	if e == nil {
		return
	}

	fields := log.Fields{
		"aggregate_type": aggregateType,
		"aggregate_id":   aggregateID,
		"event_type":     eventType,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		outboxEnqueueFailures.Inc()
		e.logger.WithError(err).WithFields(fields).Warn("failed to marshal outbox payload")
		return
	}

	_, err = e.repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
		CreatedAt:     e.now().UTC(),
	})
	if err != nil {
		outboxEnqueueFailures.Inc()
		e.logger.WithError(err).WithFields(fields).Warn("failed to enqueue outbox message")
		return
	}

	e.logger.WithFields(fields).Debug("outbox message enqueued")
}
