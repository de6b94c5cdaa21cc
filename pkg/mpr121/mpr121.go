// Package mpr121 reads the 12-electrode MPR121 capacitive touch controller
// over I2C.
package mpr121

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/teslashibe/glow/pkg/touch"
)

// Register map.
const (
	regTouchStatus      = 0x00
	regMHDRising        = 0x2B
	regNHDRising        = 0x2C
	regNCLRising        = 0x2D
	regFDLRising        = 0x2E
	regMHDFalling       = 0x2F
	regNHDFalling       = 0x30
	regNCLFalling       = 0x31
	regFDLFalling       = 0x32
	regTouchThreshold   = 0x41 // electrode 0; electrode i is at +2i
	regReleaseThreshold = 0x42
	regCDC              = 0x5C
	regElectrodeConfig  = 0x5E
)

const (
	stopMode = 0x00
	runMode  = 0x8F // all 12 electrodes enabled
)

var (
	// ErrNotFound is returned when the chip does not answer on the bus.
	ErrNotFound = errors.New("mpr121 not found")
)

// Config selects the chip and its thresholds.
type Config struct {
	Bus              string `yaml:"bus"`     // I2C bus name, "1" for /dev/i2c-1
	Address          uint16 `yaml:"address"` // 7-bit address
	TouchThreshold   uint8  `yaml:"touch_threshold"`
	ReleaseThreshold uint8  `yaml:"release_threshold"`
}

// DefaultConfig returns the usual breakout wiring.
func DefaultConfig() Config {
	return Config{
		Bus:              "1",
		Address:          0x5A,
		TouchThreshold:   12,
		ReleaseThreshold: 6,
	}
}

// Conn is the register-level link to the chip.
type Conn interface {
	Tx(w, r []byte) error
}

// Dev is an initialized MPR121.
type Dev struct {
	mu     sync.Mutex
	c      Conn
	closer func() error
}

// New configures the chip on c and puts it in run mode.
func New(c Conn, cfg Config) (*Dev, error) {
	d := &Dev{c: c}
	if err := d.init(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// Open initializes the host drivers, opens the I2C bus and configures the
// chip.
func Open(cfg Config) (*Dev, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("%w: open i2c bus %q: %v", ErrNotFound, cfg.Bus, err)
	}

	d, err := New(&i2c.Dev{Addr: cfg.Address, Bus: bus}, cfg)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("%w at 0x%02X: %v", ErrNotFound, cfg.Address, err)
	}
	d.closer = bus.Close
	return d, nil
}

func (d *Dev) init(cfg Config) error {
	writes := [][2]byte{
		{regElectrodeConfig, stopMode},
	}
	for i := 0; i < touch.Electrodes; i++ {
		writes = append(writes,
			[2]byte{byte(regTouchThreshold + 2*i), cfg.TouchThreshold},
			[2]byte{byte(regReleaseThreshold + 2*i), cfg.ReleaseThreshold},
		)
	}
	writes = append(writes,
		[2]byte{regMHDRising, 0x01},
		[2]byte{regNHDRising, 0x01},
		[2]byte{regNCLRising, 0x00},
		[2]byte{regFDLRising, 0x00},
		[2]byte{regMHDFalling, 0x01},
		[2]byte{regNHDFalling, 0x01},
		[2]byte{regNCLFalling, 0xFF},
		[2]byte{regFDLFalling, 0x02},
		[2]byte{regCDC, 0x10},
		[2]byte{regElectrodeConfig, runMode},
	)

	for _, w := range writes {
		if err := d.c.Tx(w[:], nil); err != nil {
			return fmt.Errorf("write register 0x%02X: %w", w[0], err)
		}
	}
	return nil
}

// ReadBitmask reads the touch status registers.
func (d *Dev) ReadBitmask() (touch.Bitmask, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var r [2]byte
	if err := d.c.Tx([]byte{regTouchStatus}, r[:]); err != nil {
		return touch.Bitmask{}, fmt.Errorf("read touch status: %w", err)
	}
	return touch.MaskFromBits(uint16(r[0]) | uint16(r[1])<<8), nil
}

// Close stops the electrodes and releases the bus.
func (d *Dev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.c.Tx([]byte{regElectrodeConfig, stopMode}, nil)
	if d.closer != nil {
		if cerr := d.closer(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ touch.Sensor = (*Dev)(nil)
