package touch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/glow/pkg/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeLight struct {
	mu      sync.Mutex
	enters  int
	returns int
}

func (l *fakeLight) EnterTouchFeedback() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enters++
}

func (l *fakeLight) ReturnFromTouch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.returns++
}

func (l *fakeLight) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enters, l.returns
}

type touchEvent struct {
	electrode int
	duration  time.Duration
}

type fakeEvents struct {
	mu     sync.Mutex
	events []touchEvent
}

func (e *fakeEvents) LogTouch(electrode int, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, touchEvent{electrode, d})
}

func (e *fakeEvents) logged() []touchEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]touchEvent(nil), e.events...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTracker(sensor Sensor) (*Tracker, *fakeLight, *fakeEvents, *fakeClock) {
	light := &fakeLight{}
	events := &fakeEvents{}
	clock := &fakeClock{t: time.Date(2026, 3, 14, 15, 0, 0, 0, time.Local)}

	tr := NewTracker(sensor, light, events, 0, quietLogger())
	tr.now = clock.now
	tr.daily.Date = store.DateOf(clock.t)
	return tr, light, events, clock
}

func mask(touched ...int) Bitmask {
	var m Bitmask
	for _, i := range touched {
		m[i] = true
	}
	return m
}

func TestSingleTouchScenario(t *testing.T) {
	tr, light, events, clock := newTestTracker(nil)

	for _, m := range []Bitmask{mask(), mask(0), mask(0), mask()} {
		tr.Observe(m)
		clock.advance(100 * time.Millisecond)
	}

	logged := events.logged()
	if len(logged) != 1 {
		t.Fatalf("logged %d touches, want 1", len(logged))
	}
	if logged[0].electrode != 0 || logged[0].duration != 200*time.Millisecond {
		t.Errorf("logged %+v, want electrode 0 for 200ms", logged[0])
	}

	enters, returns := light.counts()
	if enters != 1 || returns != 1 {
		t.Errorf("enter=%d return=%d, want 1 and 1", enters, returns)
	}

	stats := tr.Statistics()
	if stats.TodayTouches != 1 || stats.TodayTotalDuration != 0.2 || stats.TodayMaxDuration != 0.2 {
		t.Errorf("stats = %+v, want one 0.2s touch", stats)
	}
	if stats.ActiveTouches != 0 || stats.TotalPresses != 1 {
		t.Errorf("active=%d presses=%d, want 0 and 1", stats.ActiveTouches, stats.TotalPresses)
	}
}

func TestHeldTouchEntersFeedbackOnce(t *testing.T) {
	tr, light, _, clock := newTestTracker(nil)

	tr.Observe(mask(3))
	for i := 0; i < 10; i++ {
		clock.advance(100 * time.Millisecond)
		tr.Observe(mask(3))
	}
	// A second finger while the first is held is not a new feedback edge.
	tr.Observe(mask(3, 7))

	enters, returns := light.counts()
	if enters != 1 || returns != 0 {
		t.Errorf("enter=%d return=%d, want 1 and 0", enters, returns)
	}
	if got := tr.Statistics().ActiveTouches; got != 2 {
		t.Errorf("ActiveTouches = %d, want 2", got)
	}
}

func TestReturnOnlyWhenAllReleased(t *testing.T) {
	tr, light, events, clock := newTestTracker(nil)

	tr.Observe(mask(1, 2))
	clock.advance(300 * time.Millisecond)
	tr.Observe(mask(2))
	if _, returns := light.counts(); returns != 0 {
		t.Fatalf("returned from touch with electrode 2 still held")
	}

	clock.advance(200 * time.Millisecond)
	tr.Observe(mask())

	enters, returns := light.counts()
	if enters != 1 || returns != 1 {
		t.Errorf("enter=%d return=%d, want 1 and 1", enters, returns)
	}

	want := []touchEvent{{1, 300 * time.Millisecond}, {2, 500 * time.Millisecond}}
	got := events.logged()
	if len(got) != len(want) {
		t.Fatalf("logged %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	stats := tr.Statistics()
	if stats.TodayMaxDuration != 0.5 || stats.TodayAvgDuration != 0.4 {
		t.Errorf("max=%v avg=%v, want 0.5 and 0.4", stats.TodayMaxDuration, stats.TodayAvgDuration)
	}
}

func TestEdgePairingRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for run := 0; run < 50; run++ {
		tr, _, events, clock := newTestTracker(nil)

		var (
			prev     Bitmask
			pressed  [Electrodes]time.Time
			expected []touchEvent
		)
		for poll := 0; poll < 200; poll++ {
			var m Bitmask
			for i := range m {
				// Mostly keep the previous state so touches have some length.
				m[i] = prev[i]
				if rng.IntN(5) == 0 {
					m[i] = !prev[i]
				}
			}

			now := clock.now()
			for i := range m {
				switch {
				case m[i] && !prev[i]:
					pressed[i] = now
				case !m[i] && prev[i]:
					expected = append(expected, touchEvent{i, now.Sub(pressed[i])})
				}
			}

			tr.Observe(m)
			prev = m
			clock.advance(time.Duration(50+rng.IntN(100)) * time.Millisecond)
		}

		got := events.logged()
		if len(got) != len(expected) {
			t.Fatalf("run %d: logged %d touches, want %d", run, len(got), len(expected))
		}
		for i := range expected {
			if got[i] != expected[i] {
				t.Fatalf("run %d: event %d = %+v, want %+v", run, i, got[i], expected[i])
			}
		}
		if n := tr.Statistics().TodayTouches; n != len(expected) {
			t.Fatalf("run %d: TodayTouches = %d, want %d", run, n, len(expected))
		}
	}
}

func TestDailyCacheRollsOverAtMidnight(t *testing.T) {
	tr, _, events, clock := newTestTracker(nil)
	clock.t = time.Date(2026, 3, 14, 23, 59, 59, 0, time.Local)
	tr.daily.Date = store.DateOf(clock.t)

	tr.Observe(mask(0))
	clock.advance(500 * time.Millisecond)
	tr.Observe(mask())
	if n := tr.Statistics().TodayTouches; n != 1 {
		t.Fatalf("TodayTouches = %d, want 1", n)
	}

	clock.advance(time.Second)
	stats := tr.Statistics()
	if stats.TodayTouches != 0 || stats.TodayTotalDuration != 0 {
		t.Errorf("stats after midnight = %+v, want zeroed", stats)
	}
	// Lifetime counters survive the rollover.
	if stats.TotalPresses != 1 || len(events.logged()) != 1 {
		t.Errorf("presses=%d events=%d, want 1 and 1", stats.TotalPresses, len(events.logged()))
	}
}

func TestSeedAndReset(t *testing.T) {
	tr, _, _, clock := newTestTracker(nil)
	today := store.DateOf(clock.t)

	tr.Seed(DailyCache{Date: "2020-01-01", Count: 99})
	if n := tr.Statistics().TodayTouches; n != 0 {
		t.Fatalf("stale seed applied: TodayTouches = %d", n)
	}

	tr.Seed(CacheFromStats(store.DailyStats{
		Date:               today,
		TouchCount:         4,
		TotalTouchDuration: 2,
		MaxTouchDuration:   1.5,
	}))
	stats := tr.Statistics()
	if stats.TodayTouches != 4 || stats.TodayTotalDuration != 2 || stats.TodayMaxDuration != 1.5 || stats.TodayAvgDuration != 0.5 {
		t.Errorf("seeded stats = %+v", stats)
	}

	// Same day: the reset is a no-op.
	tr.ResetDaily()
	if n := tr.Statistics().TodayTouches; n != 4 {
		t.Errorf("TodayTouches after same-day reset = %d, want 4", n)
	}
}

func TestLateMidnightResetKeepsNewDayTouches(t *testing.T) {
	tr, _, _, clock := newTestTracker(nil)
	clock.t = time.Date(2026, 3, 14, 23, 59, 59, 0, time.Local)
	tr.daily.Date = store.DateOf(clock.t)

	tr.Observe(mask(0))
	clock.advance(200 * time.Millisecond)
	tr.Observe(mask())

	// Past midnight a touch lands before the scheduled reset runs.
	clock.advance(2 * time.Second)
	tr.Observe(mask(1))
	clock.advance(300 * time.Millisecond)
	tr.Observe(mask())

	tr.ResetDaily()
	stats := tr.Statistics()
	if stats.TodayTouches != 1 || stats.TodayMaxDuration != 0.3 {
		t.Errorf("stats after late reset = %+v, want the one new-day touch", stats)
	}
}

func TestResetDailyClearsStaleDay(t *testing.T) {
	tr, _, _, clock := newTestTracker(nil)
	tr.daily = DailyCache{Date: store.DateOf(clock.t), Count: 3}

	clock.advance(24 * time.Hour)
	tr.ResetDaily()

	tr.mu.Lock()
	daily := tr.daily
	tr.mu.Unlock()
	if daily.Count != 0 || daily.Date != store.DateOf(clock.t) {
		t.Errorf("daily = %+v, want an empty cache for %s", daily, store.DateOf(clock.t))
	}
}

type scriptedSensor struct {
	mu    sync.Mutex
	masks []Bitmask
	errAt map[int]error
	reads int
}

func (s *scriptedSensor) ReadBitmask() (Bitmask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.reads
	s.reads++
	if err := s.errAt[i]; err != nil {
		return Bitmask{}, err
	}
	if i < len(s.masks) {
		return s.masks[i], nil
	}
	return Bitmask{}, nil
}

func TestPollDropsFailedReads(t *testing.T) {
	boom := errors.New("i2c nack")
	sensor := &scriptedSensor{
		masks: []Bitmask{mask(5), {}, mask()},
		errAt: map[int]error{1: boom},
	}
	tr, light, events, clock := newTestTracker(sensor)

	ctx := context.Background()
	if err := tr.Poll(ctx); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	clock.advance(100 * time.Millisecond)
	if err := tr.Poll(ctx); !errors.Is(err, boom) {
		t.Fatalf("Poll() error = %v, want %v", err, boom)
	}
	// The failed read must not look like a release.
	if n := len(events.logged()); n != 0 {
		t.Fatalf("failed read logged %d touches", n)
	}

	clock.advance(100 * time.Millisecond)
	if err := tr.Poll(ctx); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	logged := events.logged()
	if len(logged) != 1 || logged[0].duration != 200*time.Millisecond {
		t.Errorf("logged %+v, want one 200ms touch", logged)
	}
	if enters, returns := light.counts(); enters != 1 || returns != 1 {
		t.Errorf("enter=%d return=%d, want 1 and 1", enters, returns)
	}
}

func TestTrackerStartStop(t *testing.T) {
	sensor := &scriptedSensor{}
	tr := NewTracker(sensor, nil, nil, 10*time.Millisecond, quietLogger())

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if !tr.Stop(time.Second) {
		t.Fatal("Stop() timed out")
	}

	sensor.mu.Lock()
	reads := sensor.reads
	sensor.mu.Unlock()
	if reads == 0 {
		t.Error("sensor never polled")
	}
}

func TestStartWithoutSensor(t *testing.T) {
	tr := NewTracker(nil, nil, nil, 0, quietLogger())
	if err := tr.Start(context.Background()); !errors.Is(err, ErrNoSensor) {
		t.Errorf("Start() error = %v, want %v", err, ErrNoSensor)
	}
}

func TestDisabledReportsZeroes(t *testing.T) {
	var svc Service = Disabled{}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := svc.Statistics(); got != (Statistics{}) {
		t.Errorf("Statistics() = %+v, want zero value", got)
	}
	if !svc.Stop(time.Second) {
		t.Error("Stop() = false")
	}
}

func TestStatisticsUsesLastPollWithoutReading(t *testing.T) {
	sensor := &scriptedSensor{masks: []Bitmask{mask(2, 9)}}
	tr, _, _, _ := newTestTracker(sensor)

	if err := tr.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if got := tr.Statistics(); got.ActiveTouches != 2 || !got.Active[2] || !got.Active[9] {
			t.Fatalf("Statistics() = %+v, want electrodes 2 and 9 active", got)
		}
	}

	sensor.mu.Lock()
	reads := sensor.reads
	sensor.mu.Unlock()
	if reads != 1 {
		t.Errorf("sensor read %d times, want only the poll's read", reads)
	}
}
