package mpr121

import (
	"errors"
	"testing"

	"github.com/teslashibe/glow/pkg/touch"
)

type fakeBus struct {
	regs   map[byte]byte
	order  []byte
	status [2]byte
	failAt int
	txs    int
}

func newFakeBus() *fakeBus {
	return &fakeBus{regs: map[byte]byte{}}
}

func (b *fakeBus) Tx(w, r []byte) error {
	b.txs++
	if b.failAt == b.txs {
		return errors.New("nack")
	}
	if len(r) > 0 {
		if w[0] == regTouchStatus {
			copy(r, b.status[:])
		}
		return nil
	}
	b.regs[w[0]] = w[1]
	b.order = append(b.order, w[0])
	return nil
}

func TestInitRegisters(t *testing.T) {
	bus := newFakeBus()
	if _, err := New(bus, DefaultConfig()); err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < touch.Electrodes; i++ {
		if got := bus.regs[byte(regTouchThreshold+2*i)]; got != 12 {
			t.Errorf("touch threshold %d = %d, want 12", i, got)
		}
		if got := bus.regs[byte(regReleaseThreshold+2*i)]; got != 6 {
			t.Errorf("release threshold %d = %d, want 6", i, got)
		}
	}
	if bus.regs[regNCLFalling] != 0xFF || bus.regs[regFDLFalling] != 0x02 || bus.regs[regCDC] != 0x10 {
		t.Errorf("filter registers = %v", bus.regs)
	}

	// Stop first, run last: thresholds may only change in stop mode.
	if bus.order[0] != regElectrodeConfig || bus.order[len(bus.order)-1] != regElectrodeConfig {
		t.Errorf("electrode config not first and last: %v", bus.order)
	}
	if bus.regs[regElectrodeConfig] != runMode {
		t.Errorf("electrode config = 0x%02X, want 0x%02X", bus.regs[regElectrodeConfig], runMode)
	}
}

func TestInitFailure(t *testing.T) {
	bus := newFakeBus()
	bus.failAt = 1
	if _, err := New(bus, DefaultConfig()); err == nil {
		t.Fatal("New() should fail when the chip does not ack")
	}
}

func TestReadBitmask(t *testing.T) {
	tests := []struct {
		status [2]byte
		want   []int
	}{
		{[2]byte{0x00, 0x00}, nil},
		{[2]byte{0x01, 0x00}, []int{0}},
		{[2]byte{0x00, 0x08}, []int{11}},
		{[2]byte{0x81, 0x02}, []int{0, 7, 9}},
		// Bits 12-15 are status flags, not electrodes.
		{[2]byte{0x00, 0xF0}, nil},
	}

	for _, tt := range tests {
		bus := newFakeBus()
		dev, err := New(bus, DefaultConfig())
		if err != nil {
			t.Fatal(err)
		}
		bus.status = tt.status

		mask, err := dev.ReadBitmask()
		if err != nil {
			t.Fatalf("ReadBitmask() error = %v", err)
		}
		got := mask.Touched()
		if len(got) != len(tt.want) {
			t.Errorf("status %v: touched %v, want %v", tt.status, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("status %v: touched %v, want %v", tt.status, got, tt.want)
			}
		}
	}
}

func TestReadError(t *testing.T) {
	bus := newFakeBus()
	dev, err := New(bus, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	bus.failAt = bus.txs + 1
	if _, err := dev.ReadBitmask(); err == nil {
		t.Error("ReadBitmask() should surface bus errors")
	}
}

func TestMockLoops(t *testing.T) {
	m := NewMock(PulseScript(2, 1, 2)...)

	want := []bool{false, true, true, false, true}
	for i, w := range want {
		mask, err := m.ReadBitmask()
		if err != nil {
			t.Fatal(err)
		}
		if mask[2] != w {
			t.Errorf("read %d: electrode 2 = %v, want %v", i, mask[2], w)
		}
	}
	if m.Reads() != len(want) {
		t.Errorf("Reads() = %d, want %d", m.Reads(), len(want))
	}

	empty := NewMock()
	if mask, _ := empty.ReadBitmask(); mask.Count() != 0 {
		t.Errorf("empty mock read %v", mask)
	}
}
