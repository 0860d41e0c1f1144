package events

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisherSendsJSON(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	publisher := newKafkaPublisher(producer, "")

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Type != TypeItemAdded || e.UserID != "u-1" || e.ProductID != "p-1" {
			return fmt.Errorf("unexpected event %+v", e)
		}
		return nil
	})

	err := publisher.Publish(context.Background(), NewEvent(TypeItemAdded, "u-1", "p-1"))
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, publisher.topic)
	require.NoError(t, publisher.Close())
}

func TestKafkaPublisherError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	publisher := newKafkaPublisher(producer, "cart-events-test")

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := publisher.Publish(context.Background(), NewEvent(TypeCartCleared, "u-1", ""))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, publisher.Close())
}

func TestKafkaPublisherCanceledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	publisher := newKafkaPublisher(producer, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, publisher.Publish(ctx, NewEvent(TypeItemRemoved, "u-1", "p-1")), context.Canceled)
	require.NoError(t, publisher.Close())
}

func TestNewEvent(t *testing.T) {
	a := NewEvent(TypeItemUpdated, "u-1", "p-1")
	b := NewEvent(TypeItemUpdated, "u-1", "p-1")

	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.OccurredAt.IsZero())
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), a))
}
