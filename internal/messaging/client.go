// internal/messaging/client.go

package messaging

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one websocket connection of one user
type Client struct {
	hub    *Hub
	svc    Service
	conn   *websocket.Conn
	send   chan []byte
	userID int64
}

func NewClient(hub *Hub, svc Service, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		hub:    hub,
		svc:    svc,
		conn:   conn,
		send:   make(chan []byte, 64),
		userID: userID,
	}
}

// Start registers the client and launches its pumps
func (c *Client) Start() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		c.conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// inboundEvent is what clients may send upstream. Messages themselves
// go through the REST endpoint; the socket only carries read receipts.
type inboundEvent struct {
	Type       string  `json:"type"`
	MessageIDs []int64 `json:"message_ids,omitempty"`
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket: user %d read error: %v", c.userID, err)
			}
			return
		}

		var event inboundEvent
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}

		if event.Type == "mark_read" && len(event.MessageIDs) > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := c.svc.MarkMessagesRead(ctx, c.userID, event.MessageIDs); err != nil {
				log.Printf("websocket: user %d mark read failed: %v", c.userID, err)
			}
			cancel()
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
