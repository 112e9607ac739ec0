// Package statushub fans committed status changes out to live subscribers.
// Events travel through a redis channel so every replica sees every change;
// without redis they are delivered in-process.
package statushub

import (
	"sync/atomic"

	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the redis channel status events are published on.
const Channel = "civicshield:status"

const localBuffer = 256

// Hub keeps the set of connected clients. The clients map is owned by the
// Run goroutine.
type Hub struct {
	clients map[Client]struct{}

	RegisterCh   chan Client
	UnregisterCh chan Client

	redis *redis.Client
	local chan models.StatusEvent
	log   *zap.Logger
	count atomic.Int64
	ready chan struct{}
	done  chan struct{}
}

// NewHub creates a hub. rdb may be nil.
func NewHub(rdb *redis.Client, log *zap.Logger) *Hub {
	return &Hub{
		clients:      make(map[Client]struct{}),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		redis:        rdb,
		local:        make(chan models.StatusEvent, localBuffer),
		log:          logger.OrNop(log).Named("statushub"),
		ready:        make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Ready is closed once the hub listens for events.
func (h *Hub) Ready() <-chan struct{} { return h.ready }

// Subscribers reports the number of registered clients.
func (h *Hub) Subscribers() int { return int(h.count.Load()) }

// Register adds a client. It does nothing once the hub has stopped.
func (h *Hub) Register(c Client) bool {
	select {
	case h.RegisterCh <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes it.
func (h *Hub) Unregister(c Client) {
	select {
	case h.UnregisterCh <- c:
	case <-h.done:
	}
}

func (h *Hub) add(c Client) {
	h.clients[c] = struct{}{}
	h.count.Add(1)
	h.log.Debug("subscriber registered", zap.String("subscriber", c.GetSubscriberID()), zap.String("topic", c.Topic()))
}

func (h *Hub) remove(c Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.count.Add(-1)
	c.Close()
	h.log.Debug("subscriber removed", zap.String("subscriber", c.GetSubscriberID()))
}

// broadcast hands ev to every interested client. A client whose buffer is
// full is dropped rather than allowed to stall the hub.
func (h *Hub) broadcast(ev models.StatusEvent) {
	for c := range h.clients {
		if !wants(c, ev) {
			continue
		}
		select {
		case c.GetSendChannel() <- ev:
		default:
			h.log.Warn("subscriber too slow, disconnecting",
				zap.String("subscriber", c.GetSubscriberID()), zap.String("complaint_id", ev.ComplaintID))
			h.remove(c)
		}
	}
}
