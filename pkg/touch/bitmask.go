package touch

import "fmt"

// Electrodes is the number of sensing channels on the touch chip.
const Electrodes = 12

// Bitmask holds one touched flag per electrode.
type Bitmask [Electrodes]bool

// MaskFromSlice converts a sensor reading to a Bitmask. It panics if the
// reading does not have exactly Electrodes entries.
func MaskFromSlice(bits []bool) Bitmask {
	if len(bits) != Electrodes {
		panic(fmt.Sprintf("touch: bitmask has %d electrodes, want %d", len(bits), Electrodes))
	}
	var m Bitmask
	copy(m[:], bits)
	return m
}

// MaskFromBits decodes the low 12 bits of a touch status register.
func MaskFromBits(bits uint16) Bitmask {
	var m Bitmask
	for i := range m {
		m[i] = bits&(1<<i) != 0
	}
	return m
}

// Bits encodes the mask as a 12-bit value, electrode 0 in bit 0.
func (m Bitmask) Bits() uint16 {
	var bits uint16
	for i, on := range m {
		if on {
			bits |= 1 << i
		}
	}
	return bits
}

// Count returns the number of touched electrodes.
func (m Bitmask) Count() int {
	n := 0
	for _, on := range m {
		if on {
			n++
		}
	}
	return n
}

// Touched returns the indices of touched electrodes.
func (m Bitmask) Touched() []int {
	var idx []int
	for i, on := range m {
		if on {
			idx = append(idx, i)
		}
	}
	return idx
}
