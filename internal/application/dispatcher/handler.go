package dispatcher

import (
	"context"

	"github.com/expensehub/claimflow/internal/domain/event"
)

// Handler processes domain events. Delivery is at-least-once: a handler may
// see the same event twice and must be idempotent.
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging.
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}
