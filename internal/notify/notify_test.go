package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, msg Message) (Receipt, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(Receipt), args.Error(1)
}

func TestLogMailer_Send(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLogMailer(zap.New(core))

	r, err := m.Send(context.Background(), Message{Subject: "Legal Notice", Body: "\nLEGAL NOTICE\n", Reference: "CS-000001"})

	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, "log", r.Channel)
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "Concerned Authority", fields["to"])
	assert.Equal(t, "LEGAL NOTICE", fields["body"])
}

func TestLogMailer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLogMailer(nil).Send(ctx, Message{})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestMulti_OneSuccessIsEnough(t *testing.T) {
	// Arrange
	failing := new(MockNotifier)
	failing.On("Send", mock.Anything, mock.Anything).Return(Receipt{Channel: "telegram"}, errors.New("offline"))
	working := new(MockNotifier)
	working.On("Send", mock.Anything, mock.Anything).Return(Receipt{Success: true, Channel: "log"}, nil)
	multi := NewMulti(zap.NewNop(), nil, failing, working)

	// Act
	r, err := multi.Send(context.Background(), Message{Reference: "CS-000001"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "log", r.Channel)
	failing.AssertExpectations(t)
	working.AssertExpectations(t)
}

func TestMulti_AllFail(t *testing.T) {
	a := new(MockNotifier)
	a.On("Send", mock.Anything, mock.Anything).Return(Receipt{Channel: "a"}, errors.New("a down"))
	b := new(MockNotifier)
	b.On("Send", mock.Anything, mock.Anything).Return(Receipt{Channel: "b"}, errors.New("b down"))

	_, err := NewMulti(nil, nil, a, b).Send(context.Background(), Message{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "a down")
	assert.Contains(t, err.Error(), "b down")
}

func TestMulti_Empty(t *testing.T) {
	_, err := NewMulti(nil, nil).Send(context.Background(), Message{})

	assert.Error(t, err)
}
