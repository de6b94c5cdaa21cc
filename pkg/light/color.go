package light

import (
	"fmt"

	"github.com/teslashibe/glow/pkg/emotion"
)

// Color is an RGB triple.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Scale multiplies every channel by f, truncating.
func (c Color) Scale(f float64) Color {
	return Color{
		R: channel(float64(c.R) * f),
		G: channel(float64(c.G) * f),
		B: channel(float64(c.B) * f),
	}
}

// Lerp returns step s of a steps-long linear transition from one color to
// another. Step steps is exactly to.
func Lerp(from, to Color, s, steps int) Color {
	if steps <= 0 || s >= steps {
		return to
	}
	t := float64(s) / float64(steps)
	mix := func(a, b uint8) uint8 {
		return channel(float64(a) + (float64(b)-float64(a))*t)
	}
	return Color{R: mix(from.R, to.R), G: mix(from.G, to.G), B: mix(from.B, to.B)}
}

// channel clamps v to [0,255] and truncates it.
func channel(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

var (
	Off   = Color{}
	White = Color{255, 255, 255}
)

// Palette maps each emotion to its unscaled color.
var Palette = map[emotion.Label]Color{
	emotion.Happy:    {128, 128, 0},   // yellow
	emotion.Sad:      {0, 0, 128},     // blue
	emotion.Angry:    {128, 0, 0},     // red
	emotion.Neutral:  {128, 128, 128}, // light gray
	emotion.Fear:     {64, 0, 64},     // purple
	emotion.Surprise: {0, 128, 128},   // cyan
	emotion.Disgust:  {0, 64, 0},      // green
	emotion.NoFace:   {128, 128, 128}, // shimmers
}

// ColorFor returns the palette color of label, neutral for unknown labels.
func ColorFor(label emotion.Label) Color {
	if c, ok := Palette[label]; ok {
		return c
	}
	return Palette[emotion.Neutral]
}
