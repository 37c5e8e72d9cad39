// internal/messaging/hub.go

package messaging

import (
	"encoding/json"
	"log"
	"sync"
)

// Event is the frame pushed to connected clients
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	EventNewMessage    = "new_message"
	EventSaleCompleted = "sale_completed"
)

// Hub tracks live websocket connections per user and fans events out
// to them. A user may hold several connections (phone and browser).
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registration traffic until Shutdown. Call in its own
// goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
	log.Printf("websocket: user %d connected (%d connections)", client.userID, len(h.clients[client.userID]))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[client.userID]
	if !ok || !conns[client] {
		return
	}
	delete(conns, client)
	close(client.send)
	if len(conns) == 0 {
		delete(h.clients, client.userID)
	}
}

// SendToUser delivers an event to all of a user's connections. Slow
// clients get dropped rather than blocking delivery to the rest.
func (h *Hub) SendToUser(userID int64, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket: failed to marshal %s event: %v", event.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- data:
		default:
			// Buffer full; the client's write pump is stuck.
			go client.conn.Close()
		}
	}
}

// NotifyNewMessage pushes a freshly inserted message to its receiver
func (h *Hub) NotifyNewMessage(message *Message) {
	h.SendToUser(message.ReceiverID, Event{Type: EventNewMessage, Payload: message})
}

// NotifySaleCompleted pushes the completed confirmation to both parties
func (h *Hub) NotifySaleCompleted(sc *SaleConfirmation) {
	event := Event{Type: EventSaleCompleted, Payload: sc}
	h.SendToUser(sc.BuyerID, event)
	h.SendToUser(sc.SellerID, event)
}

// IsOnline reports whether the user has at least one live connection
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// Shutdown closes every connection and stops Run
func (h *Hub) Shutdown() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for client := range conns {
			close(client.send)
			client.conn.Close()
		}
		delete(h.clients, userID)
	}
}
