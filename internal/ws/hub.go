package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/khana-fast/api/internal/database"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// roleEvent is an internal struct for routing events to role rooms
type roleEvent struct {
	Roles []string
	Event Event
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Clients are grouped into rooms by role so picker screens only receive
// picker-relevant traffic.
type Hub struct {
	// Registered clients by role
	rooms map[string]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *roleEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roleEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.role] == nil {
				h.rooms[client.role] = make(map[*Client]bool)
			}
			h.rooms[client.role][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.role]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					// Clean up empty rooms
					if len(clients) == 0 {
						delete(h.rooms, client.role)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			for _, role := range event.Roles {
				for client := range h.rooms[role] {
					select {
					case client.send <- message:
					default:
						// Client's send buffer is full, close and unregister
						close(client.send)
						delete(h.rooms[role], client)
						if len(h.rooms[role]) == 0 {
							delete(h.rooms, role)
						}
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToRoles sends an event to every client connected under one of the
// given roles.
func (h *Hub) BroadcastToRoles(roles []string, event Event) {
	h.broadcast <- &roleEvent{
		Roles: roles,
		Event: event,
	}
}

// Publisher adapts the hub to the order service's event sink. Order events
// fan out to every role room: the admin board, picker and packer screens all
// refresh on status changes.
type Publisher struct {
	hub   *Hub
	roles []string
}

// NewPublisher creates a Publisher targeting the given role rooms.
func NewPublisher(hub *Hub, roles ...string) *Publisher {
	return &Publisher{hub: hub, roles: roles}
}

// orderEventPayload is the slim notification body. Clients refetch the full
// order over HTTP when they care about details.
type orderEventPayload struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
}

// Publish implements service.EventPublisher.
func (p *Publisher) Publish(event string, order database.Order) {
	payload, err := json.Marshal(orderEventPayload{
		ID:          order.ID.String(),
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
	})
	if err != nil {
		log.Printf("ERROR: marshal order event: %v", err)
		return
	}
	p.hub.BroadcastToRoles(p.roles, Event{Type: event, Payload: payload})
}
