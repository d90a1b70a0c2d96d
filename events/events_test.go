package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafka_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Type != TypeAuthorizationSucceeded || e.OrderID != "o1" {
			return errors.New("unexpected event")
		}
		if e.OccurredAt.IsZero() {
			return errors.New("missing timestamp")
		}
		return nil
	})

	pub := NewKafkaWithProducer(producer, "card-payments")
	require.NoError(t, pub.Publish(context.Background(), Event{
		Type:    TypeAuthorizationSucceeded,
		Token:   "t1",
		OrderID: "o1",
		Amount:  1000,
	}))
	require.NoError(t, pub.Close())
}

func TestKafka_PublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewKafkaWithProducer(producer, "card-payments")
	err := pub.Publish(context.Background(), Event{Type: TypeSignatureMismatch, OrderID: "o1"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}

func TestKafka_PublishCarriesResponseCode(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.ResponseCode != "0" || e.GatewayTransactionID != "gw-1" {
			return errors.New("response details missing")
		}
		return nil
	})

	pub := NewKafkaWithProducer(producer, "card-payments")
	require.NoError(t, pub.Publish(context.Background(), Event{
		Type:                 TypeAuthorizationSucceeded,
		OrderID:              "o1",
		GatewayTransactionID: "gw-1",
		ResponseCode:         "0",
	}))
	require.NoError(t, pub.Close())
}
