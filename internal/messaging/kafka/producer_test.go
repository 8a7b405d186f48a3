package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func newTestProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()
	sync := mocks.NewSyncProducer(t, nil)
	producer := &Producer{
		producer: sync,
		logger:   log.WithField("component", "kafka-producer-test"),
	}
	return producer, sync
}

func TestProducer_PublishEvent(t *testing.T) {
	producer, sync := newTestProducer(t)
	sync.ExpectSendMessageAndSucceed()

	event := NewOrderEvent(EventTypeOrderPlaced, "test-order-123", "cust-1", "pending", map[string]interface{}{
		"amount": 1000,
	})

	if err := producer.PublishEvent(TopicOrderEvents, "test-order-123", event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := sync.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	producer, sync := newTestProducer(t)
	sync.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewOrderEvent(EventTypeOrderPlaced, "test-order-123", "cust-1", "pending", nil)

	if err := producer.PublishEvent(TopicOrderEvents, "test-order-123", event); err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := sync.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducerConfigIdempotent(t *testing.T) {
	config := producerConfig()
	if !config.Producer.Idempotent {
		t.Error("producer must be idempotent")
	}
	if config.Producer.RequiredAcks != sarama.WaitForAll {
		t.Errorf("expected acks from all ISR, got %v", config.Producer.RequiredAcks)
	}
	if config.Net.MaxOpenRequests != 1 {
		t.Errorf("idempotent producer requires one in-flight request, got %d", config.Net.MaxOpenRequests)
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("producer config invalid: %v", err)
	}
}

func TestNewOrderEvent(t *testing.T) {
	event := NewOrderEvent(EventTypeOrderConfirmed, "order-123", "cust-1", "confirmed", map[string]interface{}{
		"amount": 1000,
	})

	if event.EventType != EventTypeOrderConfirmed {
		t.Errorf("expected event type %s, got %s", EventTypeOrderConfirmed, event.EventType)
	}
	if event.OrderID != "order-123" {
		t.Errorf("expected order id order-123, got %s", event.OrderID)
	}
	if event.CustomerID != "cust-1" {
		t.Errorf("expected customer id cust-1, got %s", event.CustomerID)
	}
	if event.Status != "confirmed" {
		t.Errorf("expected status confirmed, got %s", event.Status)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}

func TestTopicForAggregate(t *testing.T) {
	cases := []struct {
		aggregate string
		topic     string
	}{
		{"order", TopicOrderEvents},
		{"payment", TopicPaymentEvents},
		{"delivery", TopicDeliveryEvents},
		{"inventory", TopicInventoryEvents},
		{"unknown", TopicOrderEvents},
	}
	for _, tc := range cases {
		if got := TopicForAggregate(tc.aggregate); got != tc.topic {
			t.Errorf("aggregate %s: expected topic %s, got %s", tc.aggregate, tc.topic, got)
		}
	}
}
