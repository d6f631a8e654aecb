package statemachine

import (
	"testing"

	"github.com/ayusman/gesturecast/internal/classifier"
)

func det(label classifier.Label, conf float64) *classifier.RawDetection {
	return &classifier.RawDetection{Label: label, Confidence: conf}
}

const fps = 30
const frameMS = int64(1000 / fps)

// Scenario 1: stable palm -> event at frame 5, none at 6/7.
func TestScenario_StablePalmYieldsSingleEvent(t *testing.T) {
	m := New(DefaultConfig())
	var got []*Event
	now := int64(0)
	for i := 0; i < 7; i++ {
		got = append(got, m.updateAt(0, det(classifier.OpenPalm, 0.9), now))
		now += frameMS
	}
	for i, e := range got {
		frame := i + 1
		if frame == 5 {
			if e == nil || e.Label != classifier.OpenPalm {
				t.Fatalf("expected OPEN_PALM event at frame 5, got %+v", e)
			}
		} else if e != nil {
			t.Fatalf("unexpected event at frame %d: %+v", frame, e)
		}
	}
}

// Scenario 2: unstable mix -> no event.
func TestScenario_UnstableMixYieldsNoEvent(t *testing.T) {
	m := New(DefaultConfig())
	seq := []classifier.Label{classifier.OpenPalm, classifier.OpenPalm, classifier.ClosedFist, classifier.OpenPalm, classifier.OpenPalm}
	now := int64(0)
	for _, l := range seq {
		if e := m.updateAt(0, det(l, 0.9), now); e != nil {
			t.Fatalf("unexpected event for unstable sequence: %+v", e)
		}
		now += frameMS
	}
}

// Scenario 3: cooldown suppression across 10 frames -> exactly one event.
func TestScenario_CooldownSuppressesRepeat(t *testing.T) {
	m := New(DefaultConfig())
	now := int64(0)
	count := 0
	var firstEmitFrame, secondEmitFrame = -1, -1
	for i := 0; i < 10; i++ {
		if e := m.updateAt(0, det(classifier.OpenPalm, 0.9), now); e != nil {
			count++
			if firstEmitFrame == -1 {
				firstEmitFrame = i
			} else if secondEmitFrame == -1 {
				secondEmitFrame = i
			}
		}
		now += frameMS
	}
	if count != 1 {
		t.Fatalf("expected exactly one event across 10 frames, got %d", count)
	}
	if firstEmitFrame != 4 {
		t.Fatalf("expected first emit at frame index 4 (frame 5), got %d", firstEmitFrame)
	}
}

// Scenario 5: pinch lifecycle via the state machine's Immediate/Continuous
// policies (classifier already resolved PINCH_* labels; the state machine
// must pass PINCH_HOLD through untouched and gate PINCH_START/END at K=1).
func TestScenario_PinchLifecycle(t *testing.T) {
	m := New(DefaultConfig())
	now := int64(0)

	e := m.updateAt(0, det(classifier.PinchStart, 0.9), now)
	if e == nil || e.Label != classifier.PinchStart {
		t.Fatalf("expected immediate PINCH_START emit, got %+v", e)
	}
	now += frameMS

	e = m.updateAt(0, det(classifier.PinchHold, 0.9), now)
	if e == nil || e.Label != classifier.PinchHold {
		t.Fatalf("expected PINCH_HOLD to emit every frame, got %+v", e)
	}
	now += frameMS

	e = m.updateAt(0, det(classifier.PinchEnd, 0.9), now)
	if e == nil || e.Label != classifier.PinchEnd {
		t.Fatalf("expected immediate PINCH_END emit, got %+v", e)
	}
}

func TestImmediateEmit_DoesNotStartCooldown(t *testing.T) {
	m := New(DefaultConfig())
	now := int64(0)

	if e := m.updateAt(0, det(classifier.PinchStart, 0.9), now); e == nil {
		t.Fatal("expected immediate PINCH_START emit")
	}

	// A stable gesture right after must not be swallowed by a refractory
	// period left behind by the immediate emit.
	var e *Event
	for i := 0; i < 5; i++ {
		now += frameMS
		e = m.updateAt(0, det(classifier.OpenPalm, 0.9), now)
	}
	if e == nil || e.Label != classifier.OpenPalm {
		t.Fatalf("expected OPEN_PALM %dms after a PINCH_START, got %+v", now, e)
	}
}

func TestPinchEnd_RequiresPrecedingPinchStart(t *testing.T) {
	m := New(DefaultConfig())
	e := m.updateAt(0, det(classifier.PinchEnd, 0.9), 0)
	if e != nil {
		t.Fatalf("expected no PINCH_END without a preceding PINCH_START, got %+v", e)
	}
}

func TestPinchHold_BypassesCooldownFromUnrelatedGesture(t *testing.T) {
	m := New(DefaultConfig())
	now := int64(0)
	for i := 0; i < 5; i++ {
		m.updateAt(0, det(classifier.OpenPalm, 0.9), now)
		now += frameMS
	}
	// Hand 0 is now in cooldown from the OPEN_PALM emit above.
	e := m.updateAt(0, det(classifier.PinchHold, 0.9), now)
	if e == nil || e.Label != classifier.PinchHold {
		t.Fatalf("expected PINCH_HOLD to bypass an unrelated cooldown, got %+v", e)
	}
}

func TestSameGestureLockout_SuppressesRepeatAfterCooldownExpires(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CooldownMS = 100
	cfg.SameGestureLockoutMS = 500
	m := New(cfg)
	now := int64(0)

	for i := 0; i < 5; i++ {
		m.updateAt(0, det(classifier.OpenPalm, 0.9), now)
		now += frameMS
	}
	now += cfg.CooldownMS + 10 // cooldown has expired, but lockout has not

	var e *Event
	for i := 0; i < 5; i++ {
		e = m.updateAt(0, det(classifier.OpenPalm, 0.9), now)
		now += frameMS
	}
	if e != nil {
		t.Fatalf("expected same-gesture lockout to suppress repeat emit, got %+v", e)
	}
}

func TestAllowSameGestureRepeat_BypassesLockout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CooldownMS = 100
	cfg.AllowSameGestureRepeat = true
	m := New(cfg)
	now := int64(0)

	for i := 0; i < 5; i++ {
		m.updateAt(0, det(classifier.OpenPalm, 0.9), now)
		now += frameMS
	}
	now += cfg.CooldownMS + 10

	var e *Event
	for i := 0; i < 5; i++ {
		e = m.updateAt(0, det(classifier.OpenPalm, 0.9), now)
		now += frameMS
	}
	if e == nil {
		t.Fatalf("expected repeat emit when allow_same_gesture_repeat is true")
	}
}

func TestNilDetection_ClearsBufferAndEmitsNothing(t *testing.T) {
	m := New(DefaultConfig())
	now := int64(0)
	m.updateAt(0, det(classifier.OpenPalm, 0.9), now)
	now += frameMS
	m.updateAt(0, det(classifier.OpenPalm, 0.9), now)
	now += frameMS

	if e := m.updateAt(0, nil, now); e != nil {
		t.Fatalf("nil detection must never emit, got %+v", e)
	}
	now += frameMS

	// Buffer was cleared, so two more OPEN_PALM frames are not yet stable.
	m.updateAt(0, det(classifier.OpenPalm, 0.9), now)
	now += frameMS
	if e := m.updateAt(0, det(classifier.OpenPalm, 0.9), now); e != nil {
		t.Fatalf("expected buffer reset after a miss frame, got premature emit %+v", e)
	}
}

// Scenario 6: two independent hands emit distinct events in the same frame.
func TestScenario_TwoIndependentHands(t *testing.T) {
	m := New(DefaultConfig())
	now := int64(0)
	var e0, e1 *Event
	for i := 0; i < 5; i++ {
		e0 = m.updateAt(0, det(classifier.OpenPalm, 0.9), now)
		e1 = m.updateAt(1, det(classifier.ClosedFist, 0.9), now)
		now += frameMS
	}
	if e0 == nil || e0.Label != classifier.OpenPalm || e0.HandID != 0 {
		t.Fatalf("expected OPEN_PALM for hand 0, got %+v", e0)
	}
	if e1 == nil || e1.Label != classifier.ClosedFist || e1.HandID != 1 {
		t.Fatalf("expected CLOSED_FIST for hand 1, got %+v", e1)
	}
}

// A constant stream of identical detections yields one event per cooldown
// window.
func TestConstantStream_OneEventPerCooldownWindow(t *testing.T) {
	m := New(DefaultConfig())
	now := int64(0)
	var emitTimes []int64
	// 90 frames at ~30 FPS spans three cooldown windows.
	for i := 0; i < 90; i++ {
		if e := m.updateAt(0, det(classifier.OpenPalm, 0.9), now); e != nil {
			emitTimes = append(emitTimes, e.TimestampMS)
		}
		now += frameMS
	}
	if len(emitTimes) < 2 {
		t.Fatalf("expected repeated emits across cooldown windows, got %d", len(emitTimes))
	}
	for i := 1; i < len(emitTimes); i++ {
		if gap := emitTimes[i] - emitTimes[i-1]; gap < DefaultConfig().CooldownMS {
			t.Fatalf("emits %d and %d only %dms apart, want >= cooldown", i-1, i, gap)
		}
	}
}

func TestClockRegression_FallsBackToFrameInterval(t *testing.T) {
	m := New(DefaultConfig())
	now := int64(5000)
	for i := 0; i < 5; i++ {
		m.updateAt(0, det(classifier.OpenPalm, 0.9), now)
		now += frameMS
	}
	// The hand is in cooldown. Feed a regressed clock for the equivalent of
	// a full cooldown window worth of frames; the machine must substitute
	// its synthetic per-frame interval and eventually leave cooldown.
	frames := int(DefaultConfig().CooldownMS/DefaultConfig().FrameIntervalMS) + DefaultConfig().StabilityFrames + 2
	var emitted bool
	for i := 0; i < frames; i++ {
		if e := m.updateAt(0, det(classifier.ClosedFist, 0.9), 0); e != nil {
			emitted = true
		}
	}
	if !emitted {
		t.Fatal("expected cooldown to expire via frame-interval fallback despite a regressed clock")
	}
}

func TestResetAll_ClearsBothHands(t *testing.T) {
	m := New(DefaultConfig())
	now := int64(0)
	m.updateAt(0, det(classifier.OpenPalm, 0.9), now)
	m.updateAt(1, det(classifier.ClosedFist, 0.9), now)

	m.ResetAll()

	for i := 0; i < 4; i++ {
		now += frameMS
		if e := m.updateAt(0, det(classifier.OpenPalm, 0.9), now); e != nil {
			t.Fatalf("unexpected early emit after reset: %+v", e)
		}
	}
}
