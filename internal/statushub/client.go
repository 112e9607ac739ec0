package statushub

import "civicshield/backend/internal/models"

// Client is a live subscriber to status events, e.g. a WebSocket
// connection. The hub only talks to it through this interface.
type Client interface {
	// GetSubscriberID identifies the subscriber in logs.
	GetSubscriberID() string
	// Topic is the complaint id the client follows. An empty topic
	// receives every event.
	Topic() string

	// GetSendChannel returns the channel the hub delivers events on.
	GetSendChannel() chan<- models.StatusEvent

	// Run starts the client's pumps.
	Run()
	// Close stops the client. The hub calls it at most once.
	Close()
}

func wants(c Client, ev models.StatusEvent) bool {
	topic := c.Topic()
	return topic == "" || topic == ev.ComplaintID
}
