package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/warung-pos/api/internal/enum"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, resources ...string) *Client {
	return &Client{
		hub:       hub,
		resources: resources,
		send:      make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, enum.ResourceOrders, enum.ResourceOrderItems)

	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if !hub.rooms[enum.ResourceOrders][client] {
		t.Fatal("client not registered in orders room")
	}
	if !hub.rooms[enum.ResourceOrderItems][client] {
		t.Fatal("client not registered in order_items room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, enum.ResourceOrders)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[enum.ResourceOrders] != nil {
		t.Fatal("orders room not cleaned up after last client unregistered")
	}
}

func TestBroadcastReachesOnlySubscribedRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	ordersClient := mockClient(hub, enum.ResourceOrders)
	paymentsClient := mockClient(hub, enum.ResourcePayments)

	hub.register <- ordersClient
	hub.register <- paymentsClient
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(enum.ResourceOrders)

	select {
	case msg := <-ordersClient.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Resource != enum.ResourceOrders {
			t.Errorf("expected resource 'orders', got '%s'", received.Resource)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("orders client did not receive message")
	}

	select {
	case <-paymentsClient.send:
		t.Fatal("payments client should not have received an orders event")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastFansOutToAllSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := mockClient(hub, enum.ResourceOrderItems)
	client2 := mockClient(hub, enum.ResourceOrderItems)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(enum.ResourceOrderItems)

	for i, c := range []*Client{client1, client2} {
		select {
		case <-c.send:
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client %d did not receive message", i+1)
		}
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Buffer of 1: the second broadcast overflows and drops the client.
	slow := &Client{
		hub:       hub,
		resources: []string{enum.ResourceOrders},
		send:      make(chan []byte, 1),
	}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(enum.ResourceOrders)
	hub.Broadcast(enum.ResourceOrders)
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.rooms[enum.ResourceOrders][slow] {
		t.Fatal("slow client should have been dropped")
	}
}
