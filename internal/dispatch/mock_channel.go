package dispatch

import (
	"context"
	"fmt"
	"sync"
)

// MockChannel implements Channel for testing. It records sends and can be
// configured to fail for specific recipients or entirely.
type MockChannel struct {
	mu       sync.Mutex
	name     string
	sent     []MockSend
	failAll  bool
	failFor  map[string]bool
	sendHook func(ctx context.Context, phone, body string) error
	counter  int
}

// MockSend is one recorded delivery attempt.
type MockSend struct {
	Phone string
	Body  string
}

// NewMockChannel creates a MockChannel with the given name.
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{name: name, failFor: make(map[string]bool)}
}

// FailAll makes every send return an error.
func (m *MockChannel) FailAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = true
}

// FailFor makes sends to one recipient return an error.
func (m *MockChannel) FailFor(phone string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor[phone] = true
}

// SetSendHook installs a hook invoked on every send, before the failure
// checks. Useful for injecting latency or context-sensitive behavior.
func (m *MockChannel) SetSendHook(hook func(ctx context.Context, phone, body string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendHook = hook
}

// Sent returns a copy of all recorded sends.
func (m *MockChannel) Sent() []MockSend {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSend, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *MockChannel) Name() string { return m.name }

func (m *MockChannel) Send(ctx context.Context, phone, body string) (string, string, error) {
	m.mu.Lock()
	hook := m.sendHook
	m.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, phone, body); err != nil {
			return "", "", err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll || m.failFor[phone] {
		return "", "", fmt.Errorf("%s: simulated failure for %s", m.name, phone)
	}
	m.counter++
	m.sent = append(m.sent, MockSend{Phone: phone, Body: body})
	return fmt.Sprintf("%s-%d", m.name, m.counter), "sent", nil
}
