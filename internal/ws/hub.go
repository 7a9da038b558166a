package ws

import (
	"encoding/json"
	"sync"
)

// Event is a change notification pushed to subscribed terminals. It names
// the resource that changed and nothing else; terminals refetch on receipt
// rather than patching from a payload.
type Event struct {
	Resource string `json:"resource"`
}

// Hub maintains the set of active clients and broadcasts change
// notifications to them, one room per resource name.
type Hub struct {
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan Event

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			for _, resource := range client.resources {
				if h.rooms[resource] == nil {
					h.rooms[resource] = make(map[*Client]bool)
				}
				h.rooms[resource][client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropClient(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.Resource]

			// Marshal once per event
			message, err := json.Marshal(event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					h.dropClient(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// dropClient removes the client from every room it joined and closes its
// send channel. Caller must hold h.mu.
func (h *Hub) dropClient(client *Client) {
	dropped := false
	for _, resource := range client.resources {
		clients, ok := h.rooms[resource]
		if !ok {
			continue
		}
		if _, exists := clients[client]; exists {
			delete(clients, client)
			dropped = true
			if len(clients) == 0 {
				delete(h.rooms, resource)
			}
		}
	}
	if dropped {
		close(client.send)
	}
}

// Broadcast notifies every client subscribed to the resource that it
// changed. This is the public API for handlers.
func (h *Hub) Broadcast(resource string) {
	h.broadcast <- Event{Resource: resource}
}
