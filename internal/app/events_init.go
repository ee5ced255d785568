package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/dailygoods/internal/health"
	"github.com/vladislavdragonenkov/dailygoods/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/dailygoods/internal/messaging/rabbitmq"
)

// eventPublishers брокер, в который outbox-воркер отправляет события.
type eventPublishers struct {
	broker  string
	primary domain.OutboxPublisher
	dlq     domain.OutboxPublisher
	checker healthcheck.Checker
	closeFn func()
}

func (p *eventPublishers) close() {
	if p != nil && p.closeFn != nil {
		p.closeFn()
	}
}

// initEventPublishers выбирает брокер: Kafka, если заданы KAFKA_BROKERS, иначе RabbitMQ.
// Возвращает nil, если брокер не настроен или недоступен: магазин работает без событий.
func initEventPublishers(cfg Config, logger *log.Entry) *eventPublishers {
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
		if err != nil {
			return nil
		}
		return &eventPublishers{
			broker:  "kafka",
			primary: kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
			dlq:     kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue),
			closeFn: func() { closeKafka(producer, logger) },
		}
	}

	if cfg.RabbitMQURL != "" {
		publisher, err := rabbitmq.Dial(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			logger.WithError(err).Warn("failed to connect to rabbitmq, continuing without events")
			return nil
		}
		dlq, err := publisher.DeadLetter()
		if err != nil {
			logger.WithError(err).Warn("failed to declare rabbitmq dead letter queue, continuing without events")
			_ = publisher.Close()
			return nil
		}
		logger.WithField("queue", publisher.Queue()).Info("rabbitmq publisher initialized")
		return &eventPublishers{
			broker:  "rabbitmq",
			primary: publisher,
			dlq:     dlq,
			checker: healthcheck.NewOptionalChecker("rabbitmq", publisher.Ping),
			closeFn: func() {
				if err := publisher.Close(); err != nil {
					logger.WithError(err).Warn("failed to close rabbitmq publisher")
				}
			},
		}
	}

	logger.Info("no message broker configured, domain events are not published")
	return nil
}

// initKafkaProducer инициализирует Kafka producer если brokers не пустой.
// Возвращает nil, nil если brokers пустой.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
