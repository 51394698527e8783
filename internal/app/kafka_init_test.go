package app

import (
	"testing"

	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/outbox"
)

func TestInitKafkaProducer_NoBrokers(t *testing.T) {
	producer, err := initKafkaProducer(nil, "test", log.WithField("test", "kafka"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if producer != nil {
		t.Fatal("expected nil producer without brokers")
	}
}

func TestOutboxPublishers_WithoutKafka(t *testing.T) {
	publisher, dlq := outboxPublishers(nil, kafka.TopicOrderEvents, log.WithField("test", "kafka"))

	if _, ok := publisher.(*outbox.LogPublisher); !ok {
		t.Fatalf("expected log publisher, got %T", publisher)
	}
	if dlq != nil {
		t.Fatalf("expected no dlq publisher, got %T", dlq)
	}
}

func TestOutboxPublishers_WithKafka(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := kafka.NewProducerFromSync(mockProducer, log.WithField("test", "kafka"))
	defer closeKafka(producer, log.WithField("test", "kafka"))

	publisher, dlq := outboxPublishers(producer, "custom.orders", log.WithField("test", "kafka"))

	primary, ok := publisher.(*kafka.OutboxTopicPublisher)
	if !ok {
		t.Fatalf("expected kafka publisher, got %T", publisher)
	}
	if primary.Topic() != "custom.orders" {
		t.Fatalf("unexpected topic %s", primary.Topic())
	}
	dead, ok := dlq.(*kafka.OutboxTopicPublisher)
	if !ok || dead.Topic() != kafka.TopicDeadLetterQueue {
		t.Fatalf("expected dlq publisher on %s, got %T", kafka.TopicDeadLetterQueue, dlq)
	}
}

func TestCloseKafka_Nil(_ *testing.T) {
	closeKafka(nil, log.WithField("test", "kafka"))
}
