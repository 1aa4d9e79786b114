package messaging

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
)

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher(zap.NewNop())
	assert.NoError(t, p.PublishFulfillmentCompleted(context.Background(), domain.FulfillmentCompletedEvent{OrderID: "o-1"}))
}

func TestNewRabbitMQPublisher_RequiresExchange(t *testing.T) {
	_, err := NewRabbitMQPublisher(RabbitMQConfig{URL: "amqp://localhost"}, zap.NewNop())
	assert.Error(t, err)
}

func TestRabbitMQPublisher_DeliversEvent(t *testing.T) {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		t.Skip("RABBITMQ_URL not set")
	}

	cfg := RabbitMQConfig{URL: url, Exchange: "allshop_test_events", RoutingKey: "order.fulfilled"}
	pub, err := NewRabbitMQPublisher(cfg, zap.NewNop())
	require.NoError(t, err)
	defer pub.Close()

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil))
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	event := domain.FulfillmentCompletedEvent{EventID: "e-1", OrderID: "o-1", Serials: []string{"U1"}, OccurredAt: time.Now()}
	require.NoError(t, pub.PublishFulfillmentCompleted(context.Background(), event))

	select {
	case d := <-deliveries:
		var got domain.FulfillmentCompletedEvent
		require.NoError(t, json.Unmarshal(d.Body, &got))
		assert.Equal(t, "o-1", got.OrderID)
		assert.Equal(t, "e-1", d.MessageId)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}
