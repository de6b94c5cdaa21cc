// Package emotion turns noisy per-frame facial emotion classifications into
// a stable emotion that drives the light.
//
// A Stabilizer keeps the last few raw labels and the last few confidence
// samples per label. Each label is scored by how often it appeared times how
// strongly it was classified, and the best candidate replaces the current
// emotion only when it wins by a margin after a cooldown, or when it is
// forced by a very confident frame or a stale current emotion. Consecutive
// empty frames switch to the synthetic NoFace state.
package emotion

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/teslashibe/glow/internal/log"
	"github.com/teslashibe/glow/pkg/metrics"
)

// Light receives committed emotions.
type Light interface {
	NotifyEmotion(label Label)
}

// EventLogger records how long an emotion was held. Implementations must not
// block the caller.
type EventLogger interface {
	LogEmotion(label string, confidence float64, d time.Duration)
}

// State is a copy of the stabilizer's internal state.
type State struct {
	Current     Label               `json:"current"`
	Confidence  float64             `json:"confidence"`
	StartedAt   time.Time           `json:"started_at"`
	LastChange  time.Time           `json:"last_change"`
	History     []Label             `json:"history"`
	Rolling     map[Label][]float64 `json:"rolling"`
	NoFaceCount int                 `json:"no_face_count"`
}

// Stabilizer owns the stable emotion. Observe and ObserveNoFace are meant to
// be called from a single poll loop; readers may call Current and State from
// any goroutine.
type Stabilizer struct {
	cfg    Config
	light  Light
	events EventLogger
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	current    Label
	confidence float64
	startedAt  time.Time
	lastChange time.Time
	history    []Label
	rolling    map[Label][]float64
	order      []Label // rolling keys in insertion order
	noFace     int
}

// transition is a commit decided under the lock and acted on after it.
type transition struct {
	from, to   Label
	confidence float64
	held       time.Duration
	logHeld    bool
	heldConf   float64
}

// NewStabilizer creates a stabilizer in the NoFace state. light and events
// may be nil.
func NewStabilizer(cfg Config, light Light, events EventLogger, logger *slog.Logger) *Stabilizer {
	if light == nil {
		light = nopLight{}
	}
	if events == nil {
		events = nopEvents{}
	}
	s := &Stabilizer{
		cfg:     cfg,
		light:   light,
		events:  events,
		logger:  log.Component(logger, "emotion"),
		now:     time.Now,
		current: NoFace,
		rolling: make(map[Label][]float64),
	}
	s.lastChange = s.now()
	return s
}

// Observe folds one classified face into the stabilizer and commits a new
// stable emotion if it qualifies.
func (s *Stabilizer) Observe(obs Observation) {
	if s.tooSmall(obs) {
		s.logger.Debug("ignoring small face", "box", obs.Box, "frame_w", obs.FrameWidth, "frame_h", obs.FrameHeight)
		return
	}

	scores := obs.Scores
	if len(scores) == 0 {
		if obs.Label == "" {
			return
		}
		scores = map[Label]float64{obs.Label: obs.Confidence}
	}
	if obs.Label == "" {
		best := ObservationFromScores(scores)
		obs.Label, obs.Confidence = best.Label, best.Confidence
	}

	s.mu.Lock()
	now := s.now()
	s.noFace = 0

	s.history = append(s.history, obs.Label)
	if over := len(s.history) - s.cfg.HistorySize; over > 0 {
		s.history = s.history[over:]
	}
	for _, l := range orderedKeys(scores) {
		s.pushRolling(l, scores[l])
	}

	candidate, candidateScore := s.candidate()
	currentScore := s.score(s.current)
	sinceChange := now.Sub(s.lastChange)

	significant := candidate != s.current && candidateScore > currentScore+s.cfg.ChangeThreshold
	cooldownElapsed := sinceChange > s.cfg.MinDuration
	forcedByConfidence := obs.Confidence > s.cfg.ForceConfidence && obs.Label != s.current
	forcedByAge := sinceChange > s.cfg.MaxDuration

	var target Label
	switch {
	case forcedByConfidence:
		target = obs.Label
	case significant && cooldownElapsed, forcedByAge:
		target = candidate
	}

	if target == "" || target == s.current {
		if candidate == s.current {
			s.confidence = s.peak(s.current)
		}
		s.mu.Unlock()
		return
	}

	tr := s.commit(target, s.peak(target), now)
	s.mu.Unlock()

	s.apply(tr, "observation")
}

// ObserveNoFace records a poll with no usable face. After NoFaceThreshold
// consecutive calls the stabilizer switches to NoFace regardless of
// cooldown or score.
func (s *Stabilizer) ObserveNoFace() {
	s.mu.Lock()
	s.noFace++
	if s.noFace < s.cfg.NoFaceThreshold || s.current == NoFace {
		s.mu.Unlock()
		return
	}

	tr := s.commit(NoFace, 0, s.now())
	// A returning face starts from a clean slate.
	s.history = nil
	s.rolling = make(map[Label][]float64)
	s.order = nil
	s.mu.Unlock()

	s.apply(tr, "no_face")
}

// Current returns the stable emotion and its confidence.
func (s *Stabilizer) Current() (Label, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.confidence
}

// State returns a copy of the internal state.
func (s *Stabilizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	rolling := make(map[Label][]float64, len(s.rolling))
	for l, samples := range s.rolling {
		rolling[l] = slices.Clone(samples)
	}
	return State{
		Current:     s.current,
		Confidence:  s.confidence,
		StartedAt:   s.startedAt,
		LastChange:  s.lastChange,
		History:     slices.Clone(s.history),
		Rolling:     rolling,
		NoFaceCount: s.noFace,
	}
}

// commit switches the current emotion. Caller holds mu.
func (s *Stabilizer) commit(to Label, confidence float64, now time.Time) transition {
	tr := transition{
		from:       s.current,
		to:         to,
		confidence: confidence,
		heldConf:   s.confidence,
	}
	if !s.startedAt.IsZero() {
		tr.held = now.Sub(s.startedAt)
		tr.logHeld = true
	}

	s.current = to
	s.confidence = confidence
	s.lastChange = now
	s.startedAt = now
	if to == NoFace && !s.cfg.LogNoFaceDuration {
		s.startedAt = time.Time{}
	}
	return tr
}

// apply performs the side effects of a commit. Caller must not hold mu.
func (s *Stabilizer) apply(tr transition, reason string) {
	if tr.logHeld {
		s.events.LogEmotion(string(tr.from), tr.heldConf, tr.held)
	}
	metrics.EmotionTransitions.WithLabelValues(string(tr.to)).Inc()
	s.logger.Info("emotion changed",
		"from", tr.from,
		"to", tr.to,
		"confidence", tr.confidence,
		"held", tr.held,
		"reason", reason)
	s.light.NotifyEmotion(tr.to)
}

func (s *Stabilizer) pushRolling(l Label, confidence float64) {
	samples, ok := s.rolling[l]
	if !ok {
		s.order = append(s.order, l)
	}
	samples = append(samples, confidence)
	if over := len(samples) - s.cfg.RollingSize; over > 0 {
		samples = samples[over:]
	}
	s.rolling[l] = samples
}

// score is frequency in history times mean rolling confidence. Labels with
// no rolling samples score zero.
func (s *Stabilizer) score(l Label) float64 {
	samples := s.rolling[l]
	if len(samples) == 0 || len(s.history) == 0 {
		return 0
	}
	var freq int
	for _, h := range s.history {
		if h == l {
			freq++
		}
	}
	var sum float64
	for _, c := range samples {
		sum += c
	}
	return float64(freq) / float64(len(s.history)) * (sum / float64(len(samples)))
}

// candidate returns the best scoring label; ties go to the label that
// entered the rolling map first.
func (s *Stabilizer) candidate() (Label, float64) {
	best, bestScore := Label(""), -1.0
	for _, l := range s.order {
		if sc := s.score(l); sc > bestScore {
			best, bestScore = l, sc
		}
	}
	return best, bestScore
}

// peak is the highest rolling confidence for l.
func (s *Stabilizer) peak(l Label) float64 {
	samples := s.rolling[l]
	if len(samples) == 0 {
		return 0
	}
	return slices.Max(samples)
}

func (s *Stabilizer) tooSmall(obs Observation) bool {
	if obs.Box == nil || obs.FrameWidth <= 0 || obs.FrameHeight <= 0 {
		return false
	}
	limit := s.cfg.MinFaceFraction * float64(min(obs.FrameWidth, obs.FrameHeight))
	return float64(obs.Box.Dx()) < limit || float64(obs.Box.Dy()) < limit
}

type nopLight struct{}

func (nopLight) NotifyEmotion(Label) {}

type nopEvents struct{}

func (nopEvents) LogEmotion(string, float64, time.Duration) {}
