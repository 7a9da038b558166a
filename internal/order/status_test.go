package order

import (
	"testing"

	"github.com/warung-pos/api/internal/enum"
)

func TestValidateStatusTransition(t *testing.T) {
	tests := []struct {
		current, next string
		wantErr       bool
	}{
		{enum.OrderStatusOpen, enum.OrderStatusCompleted, false},
		{enum.OrderStatusOpen, enum.OrderStatusCancelled, false},
		{enum.OrderStatusCompleted, enum.OrderStatusCancelled, true},
		{enum.OrderStatusCancelled, enum.OrderStatusCompleted, true},
		{enum.OrderStatusCompleted, enum.OrderStatusOpen, true},
		{enum.OrderStatusCancelled, enum.OrderStatusOpen, true},
		{enum.OrderStatusOpen, enum.OrderStatusOpen, true},
	}
	for _, tt := range tests {
		err := ValidateStatusTransition(tt.current, tt.next)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s -> %s: err = %v, wantErr = %v", tt.current, tt.next, err, tt.wantErr)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(enum.OrderStatusOpen) {
		t.Error("OPEN should not be terminal")
	}
	if !IsTerminal(enum.OrderStatusCompleted) || !IsTerminal(enum.OrderStatusCancelled) {
		t.Error("COMPLETED and CANCELLED should be terminal")
	}
}
