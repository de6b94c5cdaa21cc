package emotion

import (
	"image"
	"slices"
)

// Label is a stable or observed emotion category.
type Label string

const (
	Angry    Label = "angry"
	Disgust  Label = "disgust"
	Fear     Label = "fear"
	Happy    Label = "happy"
	Sad      Label = "sad"
	Surprise Label = "surprise"
	Neutral  Label = "neutral"

	// NoFace is the synthetic state entered when nobody is in front of the camera.
	NoFace Label = "no_face"
)

// Labels lists the classifier categories in canonical order. NoFace is not
// a classifier output.
var Labels = []Label{Angry, Disgust, Fear, Happy, Sad, Surprise, Neutral}

func (l Label) String() string { return string(l) }

// ParseLabel returns the label named s, including NoFace.
func ParseLabel(s string) (Label, bool) {
	l := Label(s)
	if l == NoFace {
		return l, true
	}
	for _, known := range Labels {
		if known == l {
			return l, true
		}
	}
	return "", false
}

// Observation is one classified face from one processed frame.
type Observation struct {
	Label      Label
	Confidence float64
	Scores     map[Label]float64

	// Box is the face bounding box in frame pixels, if known.
	Box         *image.Rectangle
	FrameWidth  int
	FrameHeight int
}

// ObservationFromScores builds an observation whose label is the highest
// scoring category. Ties go to the category listed first in Labels.
func ObservationFromScores(scores map[Label]float64) Observation {
	obs := Observation{Scores: scores}
	for _, l := range orderedKeys(scores) {
		if s := scores[l]; obs.Label == "" || s > obs.Confidence {
			obs.Label, obs.Confidence = l, s
		}
	}
	return obs
}

// orderedKeys returns the keys of scores in canonical order, with unknown
// labels sorted after the known ones.
func orderedKeys(scores map[Label]float64) []Label {
	keys := make([]Label, 0, len(scores))
	for _, l := range Labels {
		if _, ok := scores[l]; ok {
			keys = append(keys, l)
		}
	}
	if len(keys) == len(scores) {
		return keys
	}
	var extra []Label
	for l := range scores {
		if !slices.Contains(Labels, l) {
			extra = append(extra, l)
		}
	}
	slices.Sort(extra)
	return append(keys, extra...)
}
