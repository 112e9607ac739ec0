package statushub

import (
	"encoding/json"
	"time"

	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// WebSocketClient streams status events to one WebSocket connection. The
// stream is one-way; anything the peer sends is discarded.
type WebSocketClient struct {
	ID          string
	ComplaintID string
	Conn        *websocket.Conn
	Hub         *Hub
	Send        chan models.StatusEvent
	log         *zap.Logger
}

// NewWebSocketClient wraps conn. complaintID may be empty to follow every
// complaint.
func NewWebSocketClient(hub *Hub, conn *websocket.Conn, id, complaintID string, log *zap.Logger) *WebSocketClient {
	return &WebSocketClient{
		ID:          id,
		ComplaintID: complaintID,
		Conn:        conn,
		Hub:         hub,
		Send:        make(chan models.StatusEvent, sendBuffer),
		log:         logger.OrNop(log),
	}
}

func (c *WebSocketClient) GetSubscriberID() string                   { return c.ID }
func (c *WebSocketClient) Topic() string                             { return c.ComplaintID }
func (c *WebSocketClient) GetSendChannel() chan<- models.StatusEvent { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send, which stops writePump.
func (c *WebSocketClient) Close() {
	close(c.Send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("websocket read failed", zap.String("subscriber", c.ID), zap.Error(err))
			}
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				c.log.Error("encode status event", zap.String("subscriber", c.ID), zap.Error(err))
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
