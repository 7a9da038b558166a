package terminal

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/warung-pos/api/internal/enum"
)

// Notifier delivers resource-level change notifications. Satisfied by the
// restapi client's websocket subscription.
type Notifier interface {
	SubscribeChanges(ctx context.Context, resources []string) (<-chan string, error)
}

// Watch subscribes to order-related change notifications and refetches the
// loaded order whenever one arrives. Notifications carry only the resource
// name, so the refetch is unconditional: a stale refetch result is simply
// overwritten by the next one. Blocks until ctx is done or the
// subscription closes.
func (vm *ViewModel) Watch(ctx context.Context, n Notifier) error {
	events, err := n.SubscribeChanges(ctx, []string{
		enum.ResourceOrders,
		enum.ResourceOrderItems,
		enum.ResourcePayments,
	})
	if err != nil {
		return err
	}
	vm.Listen(ctx, events)
	return nil
}

// Listen consumes change notifications until ctx is done or the channel
// closes. Refetch failures are logged, not fatal: the next notification or
// mutation will reconcile.
func (vm *ViewModel) Listen(ctx context.Context, events <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case resource, ok := <-events:
			if !ok {
				return
			}
			vm.mu.Lock()
			orderID := vm.ord.ID
			vm.mu.Unlock()
			if orderID == uuid.Nil {
				continue
			}
			if err := vm.refetch(ctx, orderID); err != nil {
				log.Printf("ERROR: refetch after %s notification: %v", resource, err)
			}
		}
	}
}
