package statushub

import (
	"context"
	"encoding/json"
	"fmt"

	"civicshield/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publish broadcasts ev to every replica. Without redis the event is
// delivered locally and dropped if the local buffer is full.
func (h *Hub) Publish(ctx context.Context, ev models.StatusEvent) error {
	if h.redis == nil {
		select {
		case h.local <- ev:
			return nil
		default:
			return fmt.Errorf("status event buffer full, dropped %s/%s", ev.ComplaintID, ev.Status)
		}
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode status event: %w", err)
	}
	return h.redis.Publish(ctx, Channel, payload).Err()
}

// Run dispatches events and (un)registrations until ctx is done, then
// closes every remaining client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	var remote <-chan *redis.Message
	if h.redis != nil {
		sub := h.redis.Subscribe(ctx, Channel)
		defer sub.Close()
		if _, err := sub.Receive(ctx); err != nil {
			h.log.Error("status channel subscription failed", zap.Error(err))
		}
		remote = sub.Channel()
	}
	close(h.ready)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return
		case c := <-h.RegisterCh:
			h.add(c)
		case c := <-h.UnregisterCh:
			h.remove(c)
		case ev := <-h.local:
			h.broadcast(ev)
		case msg, ok := <-remote:
			if !ok {
				remote = nil
				h.log.Warn("status channel closed")
				continue
			}
			var ev models.StatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.log.Warn("undecodable status event", zap.Error(err))
				continue
			}
			h.broadcast(ev)
		}
	}
}
