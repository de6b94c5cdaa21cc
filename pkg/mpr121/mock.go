package mpr121

import (
	"sync"

	"github.com/teslashibe/glow/pkg/touch"
)

// Mock replays a script of touch masks, one per read, looping at the end.
// An empty script reads as untouched.
type Mock struct {
	mu     sync.Mutex
	script []touch.Bitmask
	pos    int
	reads  int
}

// NewMock returns a sensor that replays script.
func NewMock(script ...touch.Bitmask) *Mock {
	return &Mock{script: script}
}

// PulseScript holds electrode down for `on` reads after `off` idle reads.
func PulseScript(electrode, off, on int) []touch.Bitmask {
	script := make([]touch.Bitmask, off+on)
	for i := off; i < off+on; i++ {
		script[i][electrode] = true
	}
	return script
}

// ReadBitmask returns the next scripted mask.
func (m *Mock) ReadBitmask() (touch.Bitmask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads++
	if len(m.script) == 0 {
		return touch.Bitmask{}, nil
	}
	mask := m.script[m.pos]
	m.pos = (m.pos + 1) % len(m.script)
	return mask, nil
}

// Reads reports how many times the mock was polled.
func (m *Mock) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Close is a no-op.
func (m *Mock) Close() error { return nil }

var _ touch.Sensor = (*Mock)(nil)
