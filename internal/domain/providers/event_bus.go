package providers

import (
	"context"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// verification events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.VerificationEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.VerificationEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event streams
const (
	// EventChannelVerifications is the channel for all verification outcomes
	EventChannelVerifications = "verification:updates"

	// EventChannelOpportunityPrefix is the prefix for per-opportunity channels
	EventChannelOpportunityPrefix = "opportunity:"
)

// GetOpportunityChannel returns the channel name for a specific opportunity
func GetOpportunityChannel(opportunityID string) string {
	return EventChannelOpportunityPrefix + opportunityID
}
