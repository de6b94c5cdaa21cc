package vision

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

// faceFinder wraps OpenCV's FaceDetectorYN.
type faceFinder struct {
	detector gocv.FaceDetectorYN
}

func newFaceFinder(cfg Config) (*faceFinder, error) {
	if _, err := os.Stat(cfg.FaceModel); err != nil {
		return nil, fmt.Errorf("face model not found: %s", cfg.FaceModel)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.FaceModel,
		"",
		image.Pt(cfg.Width, cfg.Height),
		float32(cfg.FaceScore),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)
	return &faceFinder{detector: detector}, nil
}

// find returns face boxes in pixel coordinates, clipped to the frame.
func (f *faceFinder) find(img gocv.Mat) []image.Rectangle {
	f.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	f.detector.Detect(img, &faces)

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	var boxes []image.Rectangle
	for r := 0; r < faces.Rows(); r++ {
		// Columns 0-3 are x, y, w, h; 4-13 landmarks; 14 score.
		x := int(faces.GetFloatAt(r, 0))
		y := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))
		if box := clip(image.Rect(x, y, x+w, y+h), bounds); !box.Empty() {
			boxes = append(boxes, box)
		}
	}
	return boxes
}

func (f *faceFinder) close() {
	f.detector.Close()
}

func clip(box, bounds image.Rectangle) image.Rectangle {
	return box.Canon().Intersect(bounds)
}
