// glow-watch follows the dashboard websocket from a terminal and prints one
// line per status change.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/glow/internal/log"
	"github.com/teslashibe/glow/pkg/light"
	"github.com/teslashibe/glow/pkg/protocol"
	"github.com/teslashibe/glow/pkg/status"
)

func main() {
	addr := flag.String("addr", "localhost:8000", "Dashboard host:port")
	intensity := flag.Float64("intensity", -1, "Set the LED intensity (0-1) before watching")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		log.Fatalf("connect %s: %v", u.String(), err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	if *intensity >= 0 {
		msg, err := protocol.NewIntensityMessage(*intensity)
		if err != nil {
			log.Fatalf("intensity: %v", err)
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Fatalf("send intensity: %v", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Error("connection lost", "error", err)
			}
			return
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Warn("bad message", "error", err)
			continue
		}
		show(msg)
	}
}

var (
	emotionStyle = lipgloss.NewStyle().Bold(true).Width(9)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// swatch renders the displayed LED color as a small block.
func swatch(c light.Color) string {
	hex := fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	return lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render("    ")
}

func show(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeStatus:
		var snap status.Snapshot
		if err := msg.ParseData(&snap); err != nil {
			log.Warn("bad status", "error", err)
			return
		}
		line := fmt.Sprintf("%s  %s %.2f  touch %d active, %d today",
			dimStyle.Render(snap.Time.Format(time.TimeOnly)),
			emotionStyle.Render(string(snap.Emotion.Current)), snap.Emotion.Confidence,
			snap.Touch.Active, snap.Touch.TodayTouches)
		if snap.Light != nil {
			line += fmt.Sprintf("  %s %s %.2f", swatch(snap.Light.Displayed), snap.Light.Mode, snap.Light.Intensity)
		}
		fmt.Println(line)
	case protocol.TypeError:
		var d protocol.ErrorData
		if err := msg.ParseData(&d); err == nil {
			fmt.Println(errorStyle.Render("server error: " + d.Message))
		}
	}
}
