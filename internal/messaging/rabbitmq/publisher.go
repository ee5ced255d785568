// Package rabbitmq публикует outbox-события в очередь RabbitMQ.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
	"github.com/vladislavdragonenkov/dailygoods/internal/messaging"
)

// DefaultQueue очередь событий магазина по умолчанию.
const DefaultQueue = "dailygoods.shop.events"

// DLQSuffix добавляется к имени очереди для dead letter очереди.
const DLQSuffix = ".dlq"

// Channel подмножество *amqp.Channel, нужное паблишеру.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher публикует события в durable-очередь через default exchange.
type Publisher struct {
	mu     *sync.Mutex
	conn   *amqp.Connection
	ch     Channel
	queue  string
	owner  bool
	now    func() time.Time
	logger *log.Entry
}

// Dial подключается к брокеру и объявляет очередь.
func Dial(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	p, err := NewPublisher(ch, queue)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher объявляет очередь на канале ch и возвращает паблишер,
// владеющий каналом.
func NewPublisher(ch Channel, queue string) (*Publisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	if err := declare(ch, queue); err != nil {
		return nil, err
	}
	return &Publisher{
		mu:     &sync.Mutex{},
		ch:     ch,
		queue:  queue,
		owner:  true,
		now:    time.Now,
		logger: log.WithFields(log.Fields{"component": "rabbitmq-publisher", "queue": queue}),
	}, nil
}

func declare(ch Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return nil
}

// Queue возвращает имя очереди.
func (p *Publisher) Queue() string {
	return p.queue
}

// DeadLetter возвращает паблишер для очереди <queue>.dlq на том же канале.
// Закрытие дочернего паблишера канал не закрывает.
func (p *Publisher) DeadLetter() (*Publisher, error) {
	queue := p.queue + DLQSuffix

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := declare(p.ch, queue); err != nil {
		return nil, err
	}
	return &Publisher{
		mu:     p.mu,
		ch:     p.ch,
		queue:  queue,
		now:    p.now,
		logger: log.WithFields(log.Fields{"component": "rabbitmq-publisher", "queue": queue}),
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.ch == nil {
		return fmt.Errorf("rabbitmq outbox publisher is not initialized")
	}

	now := p.now()
	body, err := json.Marshal(messaging.NewEnvelope(event, now))
	if err != nil {
		return fmt.Errorf("marshal outbox envelope: %w", err)
	}

	headers := amqp.Table{}
	for name, value := range messaging.Headers(event) {
		headers[name] = value
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.EventType,
		Timestamp:    now.UTC(),
		Headers:      headers,
		Body:         body,
	})
	p.mu.Unlock()
	if err != nil {
		p.logger.WithError(err).WithField("outbox_id", event.ID).Error("failed to publish message to rabbitmq")
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"outbox_id":  event.ID,
		"event_type": event.EventType,
	}).Debug("message published to rabbitmq")
	return nil
}

// Ping сообщает, живо ли соединение с брокером.
func (p *Publisher) Ping(context.Context) error {
	if p.conn != nil && p.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}

// Close закрывает канал и соединение, если паблишер ими владеет.
func (p *Publisher) Close() error {
	if !p.owner {
		return nil
	}
	if err := p.ch.Close(); err != nil {
		return fmt.Errorf("failed to close rabbitmq channel: %w", err)
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("failed to close rabbitmq connection: %w", err)
		}
	}
	return nil
}

var _ domain.OutboxPublisher = (*Publisher)(nil)
