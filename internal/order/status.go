package order

import (
	"fmt"

	"github.com/warung-pos/api/internal/enum"
)

// allowedTransitions defines valid status transitions. COMPLETED and
// CANCELLED are terminal and mutually exclusive; no line mutation is
// permitted once an order reaches either.
var allowedTransitions = map[string][]string{
	enum.OrderStatusOpen: {enum.OrderStatusCompleted, enum.OrderStatusCancelled},
}

// ValidateStatusTransition checks whether current → next is allowed.
func ValidateStatusTransition(current, next string) error {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s", current, next)
}

// IsTerminal reports whether the status permits no further mutation.
func IsTerminal(status string) bool {
	return status == enum.OrderStatusCompleted || status == enum.OrderStatusCancelled
}
