package port

import (
	"context"

	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
)

type EventPublisher interface {
	// PublishFulfillmentCompleted announces a committed fulfillment
	PublishFulfillmentCompleted(ctx context.Context, event domain.FulfillmentCompletedEvent) error
}
