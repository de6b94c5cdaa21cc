package vision

import (
	"math"

	"github.com/teslashibe/glow/pkg/emotion"
)

// ferPlusClasses is the output order of the FER+ network.
var ferPlusClasses = []emotion.Label{
	emotion.Neutral,
	emotion.Happy,
	emotion.Surprise,
	emotion.Sad,
	emotion.Angry,
	emotion.Disgust,
	emotion.Fear,
	emotion.Disgust, // contempt
}

// Softmax turns raw network outputs into probabilities.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	peak := float64(logits[0])
	for _, v := range logits[1:] {
		peak = math.Max(peak, float64(v))
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// ScoresFromLogits maps FER+ outputs onto emotion labels. Contempt has no
// light of its own and is added to disgust.
func ScoresFromLogits(logits []float32) map[emotion.Label]float64 {
	probs := Softmax(logits)
	scores := make(map[emotion.Label]float64, len(emotion.Labels))
	for i, p := range probs {
		if i >= len(ferPlusClasses) {
			break
		}
		scores[ferPlusClasses[i]] += p
	}
	return scores
}
