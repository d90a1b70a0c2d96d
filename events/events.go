package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
)

// Event types.
const (
	TypeAuthorizationSucceeded = "authorization.succeeded"
	TypeSignatureMismatch      = "signature.mismatch"
	TypeEchoMismatch           = "response.echo_mismatch"
	TypeDuplicateSettlement    = "settlement.duplicate"
	TypeSettlementFailed       = "settlement.failed"
)

// Event is a notification for reconciliation and security consumers. It
// never carries card data.
type Event struct {
	Type                 string    `json:"type"`
	Token                string    `json:"token"`
	OrderID              string    `json:"orderId"`
	UserID               string    `json:"userId,omitempty"`
	Amount               int64     `json:"amount,omitempty"`
	CurrencyCode         int       `json:"currencyCode,omitempty"`
	GatewayTransactionID string    `json:"gatewayTransactionId,omitempty"`
	ResponseCode         string    `json:"responseCode,omitempty"`
	Reason               string    `json:"reason,omitempty"`
	OccurredAt           time.Time `json:"occurredAt"`
}

// Publisher delivers events synchronously.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Kafka publishes events to one topic, keyed by order id.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafka dials brokers and returns a synchronous publisher.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaWithProducer(producer, topic), nil
}

// NewKafkaWithProducer wraps an existing producer; tests pass a sarama mock.
func NewKafkaWithProducer(p sarama.SyncProducer, topic string) *Kafka {
	return &Kafka{producer: p, topic: topic}
}

// Publish sends e as JSON keyed by order id, with the type in a header.
func (k *Kafka) Publish(_ context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(e.OrderID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(e.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Close closes the producer.
func (k *Kafka) Close() error {
	return k.producer.Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }
