// glow-reset turns every LED on the strip off. Handy after a crash left the
// strip lit.
package main

import (
	"flag"

	"github.com/teslashibe/glow/internal/log"
	"github.com/teslashibe/glow/pkg/ledstrip"
)

func main() {
	cfg := ledstrip.DefaultConfig()
	flag.StringVar(&cfg.Device, "led-device", cfg.Device, "SPI device driving the strip")
	flag.IntVar(&cfg.Count, "led-count", 300, "Number of LEDs to clear")
	flag.IntVar(&cfg.FreqKHz, "led-freq", cfg.FreqKHz, "Strip data rate in kHz")
	flag.Parse()

	cfg.Backend = ledstrip.BackendSPI
	strip, err := ledstrip.Open(cfg, log.L())
	if err != nil {
		log.Fatalf("open strip: %v", err)
	}
	defer strip.Close()

	if err := strip.SetAll(0, 0, 0); err != nil {
		log.Fatalf("clear: %v", err)
	}
	if err := strip.Commit(); err != nil {
		log.Fatalf("commit: %v", err)
	}
	log.Info("strip cleared", "device", cfg.Device, "count", cfg.Count)
}
