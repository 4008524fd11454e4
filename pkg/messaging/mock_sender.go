package messaging

import (
	"context"
	"sync"
)

// MockMessageSender records every message it receives, for testing.
type MockMessageSender struct {
	mu       sync.Mutex
	messages []*DoneMessage
	closed   bool

	// Err is returned by SendDoneMessage when set
	Err error
}

// NewMockMessageSender creates a new MockMessageSender.
func NewMockMessageSender() *MockMessageSender {
	return &MockMessageSender{}
}

// SendDoneMessage records done.
func (m *MockMessageSender) SendDoneMessage(_ context.Context, done *DoneMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, done)
	return nil
}

// Close marks the sender closed.
func (m *MockMessageSender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Messages returns the recorded messages in arrival order.
func (m *MockMessageSender) Messages() []*DoneMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*DoneMessage(nil), m.messages...)
}

// Closed reports whether Close was called.
func (m *MockMessageSender) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Ensure MockMessageSender implements MessageSender
var _ MessageSender = (*MockMessageSender)(nil)
