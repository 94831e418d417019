// Package transport carries messages and taps between glance and the accessory.
package transport

import (
	"context"
	"sync"

	"github.com/spherical/glance/internal/domain"
)

// Memory is an in-process transport used by the simulator and tests.
// Outbound messages are recorded; taps are injected with Tap.
type Memory struct {
	mu     sync.Mutex
	sent   []domain.Message
	onSend func(domain.Message)

	tapMu  sync.Mutex
	taps   chan int
	closed bool
}

// NewMemory creates a memory transport. onSend, when set, is called for
// every outbound message in send order.
func NewMemory(buffer int, onSend func(domain.Message)) *Memory {
	if buffer < 0 {
		buffer = 0
	}
	return &Memory{taps: make(chan int, buffer), onSend: onSend}
}

// Send records msg.
func (m *Memory) Send(ctx context.Context, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return domain.TransportError("send cancelled", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, msg)
	if m.onSend != nil {
		m.onSend(msg)
	}
	return nil
}

// Taps returns the tap channel. It is closed by Close.
func (m *Memory) Taps(ctx context.Context) (<-chan int, error) {
	return m.taps, nil
}

// Tap delivers a tap count, blocking until it is buffered or ctx ends.
func (m *Memory) Tap(ctx context.Context, n int) error {
	m.tapMu.Lock()
	defer m.tapMu.Unlock()

	if m.closed {
		return domain.TransportError("transport closed", nil)
	}

	select {
	case m.taps <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the tap stream. Calling Tap after Close returns an error.
func (m *Memory) Close() error {
	m.tapMu.Lock()
	defer m.tapMu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.taps)
	}
	return nil
}

// Sent returns a copy of every message sent so far.
func (m *Memory) Sent() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]domain.Message(nil), m.sent...)
}

// LastText returns the payload of the most recent display-text message.
func (m *Memory) LastText() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Code == domain.MsgDisplayText {
			return m.sent[i].Payload, true
		}
	}
	return "", false
}
