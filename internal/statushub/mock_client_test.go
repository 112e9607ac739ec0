package statushub_test

import (
	"sync/atomic"

	"civicshield/backend/internal/models"
)

type MockClient struct {
	id          string
	topic       string
	RecvChannel chan models.StatusEvent
	closed      atomic.Int32
}

func newMockClient(id, topic string, buffer int) *MockClient {
	return &MockClient{
		id:          id,
		topic:       topic,
		RecvChannel: make(chan models.StatusEvent, buffer),
	}
}

func (c *MockClient) GetSubscriberID() string {
	return c.id
}

func (c *MockClient) Topic() string {
	return c.topic
}

func (c *MockClient) GetSendChannel() chan<- models.StatusEvent {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closed.Add(1)
}
