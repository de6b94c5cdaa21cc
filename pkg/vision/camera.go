// Package vision grabs camera frames, finds faces with YuNet and scores
// their expression with the FER+ network.
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/glow/pkg/emotion"
)

var (
	// ErrNoFrame is returned when the camera delivers no image.
	ErrNoFrame = errors.New("camera returned no frame")

	// ErrCameraUnavailable is returned when the device cannot be opened.
	ErrCameraUnavailable = errors.New("camera unavailable")
)

// ferInput is the FER+ input size (64x64 grayscale).
const ferInput = 64

// Config selects the camera and models.
type Config struct {
	Device       int     `yaml:"device"`
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	FaceModel    string  `yaml:"face_model"`    // YuNet ONNX
	EmotionModel string  `yaml:"emotion_model"` // FER+ ONNX
	FaceScore    float64 `yaml:"face_score"`    // Minimum YuNet confidence
}

// DefaultConfig returns the installation defaults.
func DefaultConfig() Config {
	return Config{
		Device:       0,
		Width:        640,
		Height:       480,
		FaceModel:    "models/face_detection_yunet.onnx",
		EmotionModel: "models/emotion-ferplus-8.onnx",
		FaceScore:    0.6,
	}
}

// Camera implements emotion.FaceDetector on a local video device.
type Camera struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	faces   *faceFinder
	net     gocv.Net
	frame   gocv.Mat
}

// Open opens the camera and loads both models.
func Open(cfg Config) (*Camera, error) {
	if _, err := os.Stat(cfg.EmotionModel); err != nil {
		return nil, fmt.Errorf("emotion model not found: %s", cfg.EmotionModel)
	}
	faces, err := newFaceFinder(cfg)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(cfg.EmotionModel, "")
	if net.Empty() {
		faces.close()
		return nil, fmt.Errorf("load emotion model %s", cfg.EmotionModel)
	}

	capture, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		faces.close()
		net.Close()
		return nil, fmt.Errorf("%w: device %d: %v", ErrCameraUnavailable, cfg.Device, err)
	}
	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))

	return &Camera{
		capture: capture,
		faces:   faces,
		net:     net,
		frame:   gocv.NewMat(),
	}, nil
}

// DetectFaces grabs one frame and classifies every face in it.
func (c *Camera) DetectFaces(ctx context.Context) (emotion.Detection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return emotion.Detection{}, err
	}
	if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
		return emotion.Detection{}, ErrNoFrame
	}

	faces, err := firstFace(c.faces.find(c.frame), c.classify)
	if err != nil {
		return emotion.Detection{}, err
	}
	return emotion.Detection{Faces: faces, FrameWidth: c.frame.Cols(), FrameHeight: c.frame.Rows()}, nil
}

// firstFace classifies only the first detected face; nothing downstream
// reads the others.
func firstFace(boxes []image.Rectangle, classify func(image.Rectangle) (map[emotion.Label]float64, error)) ([]emotion.Face, error) {
	if len(boxes) == 0 {
		return nil, nil
	}
	scores, err := classify(boxes[0])
	if err != nil {
		return nil, err
	}
	return []emotion.Face{{Box: boxes[0], Scores: scores}}, nil
}

func (c *Camera) classify(box image.Rectangle) (map[emotion.Label]float64, error) {
	roi := c.frame.Region(box)
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray)

	blob := gocv.BlobFromImage(gray, 1.0, image.Pt(ferInput, ferInput), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	c.net.SetInput(blob, "")
	out := c.net.Forward("")
	defer out.Close()

	logits, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read emotion output: %w", err)
	}
	return ScoresFromLogits(logits), nil
}

// Close releases the camera and models.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.faces.close()
	c.frame.Close()
	err := c.net.Close()
	if cerr := c.capture.Close(); err == nil {
		err = cerr
	}
	return err
}

var _ emotion.FaceDetector = (*Camera)(nil)
