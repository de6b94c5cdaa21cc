package ledstrip

import (
	"errors"
	"sync"
)

// Frame is one committed strip color.
type Frame struct {
	R, G, B uint8
}

// Mock records committed frames. Writes can be made to fail for tests.
type Mock struct {
	mu      sync.Mutex
	count   int
	pixels  []byte
	frames  []Frame
	fail    map[int]bool
	commits int
	closed  bool
}

// NewMock returns an in-memory strip of count pixels.
func NewMock(count int) *Mock {
	return &Mock{count: count, pixels: make([]byte, 3*count), fail: map[int]bool{}}
}

// FailCommit makes the n-th Commit (1-based) return an error.
func (m *Mock) FailCommit(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[n] = true
}

func (m *Mock) SetAll(r, g, b uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("strip closed")
	}
	fill(m.pixels, r, g, b)
	return nil
}

func (m *Mock) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("strip closed")
	}
	m.commits++
	if m.fail[m.commits] {
		return errors.New("spi transfer failed")
	}
	if len(m.pixels) >= 3 {
		m.frames = append(m.frames, Frame{m.pixels[0], m.pixels[1], m.pixels[2]})
	}
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Frames returns a copy of every committed frame.
func (m *Mock) Frames() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Frame(nil), m.frames...)
}

// Pixels returns a copy of the pixel buffer.
func (m *Mock) Pixels() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.pixels...)
}
