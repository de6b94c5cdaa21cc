package vision

import (
	"image"
	"math"
	"testing"

	"github.com/teslashibe/glow/pkg/emotion"
)

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float32{1, 2, 3})
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("sum = %v, want 1", sum)
	}
	if !(probs[2] > probs[1] && probs[1] > probs[0]) {
		t.Errorf("softmax not monotonic: %v", probs)
	}

	// Large logits must not overflow.
	big := Softmax([]float32{1000, 1000})
	if math.IsNaN(big[0]) || math.Abs(big[0]-0.5) > 1e-9 {
		t.Errorf("Softmax(1000, 1000) = %v", big)
	}

	if Softmax(nil) != nil {
		t.Error("Softmax(nil) should be nil")
	}
}

func TestScoresFromLogits(t *testing.T) {
	// Happy dominates.
	scores := ScoresFromLogits([]float32{0, 5, 0, 0, 0, 0, 0, 0})
	obs := emotion.ObservationFromScores(scores)
	if obs.Label != emotion.Happy {
		t.Errorf("label = %v, want happy", obs.Label)
	}

	// Contempt and disgust share a label.
	scores = ScoresFromLogits([]float32{0, 0, 0, 0, 0, 3, 0, 3})
	if _, ok := scores["contempt"]; ok {
		t.Error("contempt should fold into disgust")
	}
	if emotion.ObservationFromScores(scores).Label != emotion.Disgust {
		t.Errorf("scores = %v, want disgust on top", scores)
	}

	total := 0.0
	for _, s := range scores {
		total += s
	}
	if math.Abs(total-1) > 1e-9 {
		t.Errorf("scores sum to %v, want 1", total)
	}
}

func TestClip(t *testing.T) {
	bounds := image.Rect(0, 0, 640, 480)
	tests := []struct {
		box, want image.Rectangle
	}{
		{image.Rect(10, 10, 100, 100), image.Rect(10, 10, 100, 100)},
		{image.Rect(-20, -5, 50, 60), image.Rect(0, 0, 50, 60)},
		{image.Rect(600, 400, 700, 500), image.Rect(600, 400, 640, 480)},
		{image.Rect(700, 500, 800, 600), image.Rectangle{}},
	}
	for _, tt := range tests {
		if got := clip(tt.box, bounds); got != tt.want && !(got.Empty() && tt.want.Empty()) {
			t.Errorf("clip(%v) = %v, want %v", tt.box, got, tt.want)
		}
	}
}

func TestOpenMissingModels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmotionModel = "/nonexistent/ferplus.onnx"
	if _, err := Open(cfg); err == nil {
		t.Error("Open() should fail without the emotion model")
	}

	cfg = DefaultConfig()
	cfg.EmotionModel = t.TempDir() // exists, so the face model check runs next
	cfg.FaceModel = "/nonexistent/yunet.onnx"
	if _, err := Open(cfg); err == nil {
		t.Error("Open() should fail without the face model")
	}
}

func TestFirstFaceClassifiesOnce(t *testing.T) {
	var calls []image.Rectangle
	classify := func(box image.Rectangle) (map[emotion.Label]float64, error) {
		calls = append(calls, box)
		return map[emotion.Label]float64{emotion.Happy: 1}, nil
	}

	boxes := []image.Rectangle{image.Rect(0, 0, 100, 100), image.Rect(200, 0, 260, 60)}
	faces, err := firstFace(boxes, classify)
	if err != nil {
		t.Fatalf("firstFace() error = %v", err)
	}
	if len(calls) != 1 || calls[0] != boxes[0] {
		t.Errorf("classified %v, want only %v", calls, boxes[0])
	}
	if len(faces) != 1 || faces[0].Box != boxes[0] || faces[0].Scores[emotion.Happy] != 1 {
		t.Errorf("faces = %+v", faces)
	}

	calls = nil
	if faces, err := firstFace(nil, classify); err != nil || faces != nil || len(calls) != 0 {
		t.Errorf("firstFace(nil) = %v, %v with %d classifications", faces, err, len(calls))
	}
}
