package realtime

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Message is the frame written to websocket clients
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Message types
const (
	MessageSubscribed = "subscribed"
	MessageActivity   = "activity"
)

// Client pumps a subscriber's activity onto one websocket connection
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	sub    *Subscriber
	logger *zap.Logger
}

// NewClient binds an upgraded connection to a hub subscription
func NewClient(conn *websocket.Conn, hub *Hub, sub *Subscriber, logger *zap.Logger) *Client {
	return &Client{
		conn: conn,
		hub:  hub,
		sub:  sub,
		logger: logger.With(
			zap.String("project_id", sub.ProjectID.String()),
			zap.String("subscriber_id", sub.ID.String()),
		),
	}
}

// Run serves the connection until the client disconnects or the hub drops the subscriber
func (c *Client) Run() {
	go c.readPump()
	c.writePump()
}

// readPump only watches for disconnects and pongs; clients send nothing meaningful
func (c *Client) readPump() {
	defer func() {
		c.hub.Unsubscribe(c.sub)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.Unsubscribe(c.sub)
		_ = c.conn.Close()
	}()

	if err := c.write(Message{Type: MessageSubscribed, Data: map[string]string{
		"project_id": c.sub.ProjectID.String(),
	}}); err != nil {
		return
	}

	for {
		select {
		case entry, ok := <-c.sub.Events():
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"))
				return
			}
			if err := c.write(Message{Type: MessageActivity, Data: entry}); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(msg Message) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}
