// Package ledstrip drives a WS2812 (NeoPixel) strip where every pixel shows
// the same color.
package ledstrip

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"github.com/teslashibe/glow/internal/log"
)

// Backend selects the strip implementation.
type Backend string

const (
	BackendAuto Backend = "auto" // SPI, falling back to the mock
	BackendSPI  Backend = "spi"
	BackendMock Backend = "mock"
)

// ErrUnavailable is returned when the SPI strip cannot be opened.
var ErrUnavailable = errors.New("led strip unavailable")

// Config describes the strip.
type Config struct {
	Backend Backend `yaml:"backend"`
	Device  string  `yaml:"device"` // SPI port, e.g. /dev/spidev0.0
	Count   int     `yaml:"count"`  // Number of pixels
	FreqKHz int     `yaml:"freq"`   // NRZ bit rate in kHz
}

// DefaultConfig matches a short strip on the first SPI port.
func DefaultConfig() Config {
	return Config{
		Backend: BackendAuto,
		Device:  "/dev/spidev0.0",
		Count:   30,
		FreqKHz: 800,
	}
}

// Validate checks the strip geometry.
func (c Config) Validate() error {
	if c.Count <= 0 {
		return fmt.Errorf("led count must be positive, got %d", c.Count)
	}
	if c.FreqKHz <= 0 {
		return fmt.Errorf("led frequency must be positive, got %d", c.FreqKHz)
	}
	switch c.Backend {
	case "", BackendAuto, BackendSPI, BackendMock:
		return nil
	default:
		return fmt.Errorf("unsupported led backend %q", c.Backend)
	}
}

// Strip buffers one color for the whole strip and pushes it on Commit.
type Strip interface {
	SetAll(r, g, b uint8) error
	Commit() error
	Close() error
}

// Open builds the strip for cfg. In auto mode a missing SPI port yields a
// mock and a warning.
func Open(cfg Config, logger *slog.Logger) (Strip, error) {
	logger = log.Component(logger, "ledstrip")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendMock:
		return NewMock(cfg.Count), nil
	case BackendSPI:
		return OpenSPI(cfg)
	default:
		s, err := OpenSPI(cfg)
		if err != nil {
			logger.Warn("spi strip unavailable, using mock", "device", cfg.Device, "error", err)
			return NewMock(cfg.Count), nil
		}
		return s, nil
	}
}

// SPI is a WS2812 strip on an SPI port.
type SPI struct {
	mu     sync.Mutex
	port   spi.PortCloser
	dev    *nrzled.Dev
	pixels []byte
}

// OpenSPI opens the SPI port and the NRZ encoder.
func OpenSPI(cfg Config) (*SPI, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: init host drivers: %v", ErrUnavailable, err)
	}
	port, err := spireg.Open(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, cfg.Device, err)
	}

	opts := nrzled.DefaultOpts
	opts.NumPixels = cfg.Count
	opts.Channels = 3
	opts.Freq = physic.Frequency(cfg.FreqKHz) * physic.KiloHertz

	dev, err := nrzled.NewSPI(port, &opts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &SPI{port: port, dev: dev, pixels: make([]byte, 3*cfg.Count)}, nil
}

// SetAll fills the pixel buffer.
func (s *SPI) SetAll(r, g, b uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fill(s.pixels, r, g, b)
	return nil
}

// Commit writes the buffer to the strip.
func (s *SPI) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.dev.Write(s.pixels); err != nil {
		return fmt.Errorf("write pixels: %w", err)
	}
	return nil
}

// Close blanks the strip and releases the port.
func (s *SPI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.dev.Halt()
	if cerr := s.port.Close(); err == nil {
		err = cerr
	}
	return err
}

func fill(pixels []byte, r, g, b uint8) {
	for i := 0; i+2 < len(pixels); i += 3 {
		pixels[i], pixels[i+1], pixels[i+2] = r, g, b
	}
}
