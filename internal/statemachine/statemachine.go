// Package statemachine promotes noisy per-frame RawDetections into clean
// discrete GestureEvents, one independent machine per tracked hand.
package statemachine

import (
	"time"

	"github.com/ayusman/gesturecast/internal/classifier"
)

// EmitPolicy selects how a label's stability/cooldown rules are applied.
// Chosen per-label via a lookup table, never by name matching.
type EmitPolicy int

const (
	// Stable requires K consecutive matching frames and enters cooldown on
	// emit.
	Stable EmitPolicy = iota
	// Immediate forces the stability window to 1 frame and does not enter
	// cooldown on emit, for responsiveness (PINCH_START/PINCH_END).
	Immediate
	// Continuous bypasses stability and cooldown entirely and emits every
	// frame it is reported (PINCH_HOLD).
	Continuous
)

// policyFor is the per-label emit_policy table.
var policyFor = map[classifier.Label]EmitPolicy{
	classifier.PinchStart: Immediate,
	classifier.PinchEnd:   Immediate,
	classifier.PinchHold:  Continuous,
}

func policyOf(l classifier.Label) EmitPolicy {
	if p, ok := policyFor[l]; ok {
		return p
	}
	return Stable
}

// State is the FSM state for one hand.
type State int

const (
	Idle State = iota
	Detecting
	Cooldown
)

// Config holds the promotion and refractory thresholds.
type Config struct {
	StabilityFrames        int
	CooldownMS             int64
	AllowSameGestureRepeat bool
	SameGestureLockoutMS   int64
	// FrameIntervalMS substitutes for elapsed wall-clock time when the
	// clock regresses between frames, so cooldowns keep counting down at
	// the configured frame rate.
	FrameIntervalMS int64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		StabilityFrames:        5,
		CooldownMS:             1000,
		AllowSameGestureRepeat: false,
		SameGestureLockoutMS:   1000,
		FrameIntervalMS:        1000 / 30,
	}
}

// Event is a promoted, immutable gesture event.
type Event struct {
	Label       classifier.Label
	Confidence  float64
	HandID      int
	TimestampMS int64
	Metadata    classifier.Metadata
}

// HandState is the per-hand FSM bookkeeping.
type HandState struct {
	state              State
	buffer             []classifier.RawDetection
	cooldownDeadlineMS int64
	lastEmittedLabel   classifier.Label
	lastEmitMS         int64
	havePrevEmit       bool
}

// Reset clears all FSM state for a hand, used on retirement and on
// clear_gesture_history.
func (hs *HandState) Reset() {
	hs.state = Idle
	hs.buffer = hs.buffer[:0]
	hs.cooldownDeadlineMS = 0
	hs.havePrevEmit = false
}

// Machine runs one independent per-hand FSM for each of the two possible
// HandIds: an arena indexed by HandId, not a dynamically-keyed map.
type Machine struct {
	cfg   Config
	hands [2]HandState
	// pinchActive tracks whether a PINCH_START was emitted for a hand with
	// no intervening PINCH_END, so a stray PINCH_END is never surfaced.
	pinchActive [2]bool
	// lastNowMS is the highest timestamp seen so far; a regressed clock is
	// replaced with lastNowMS + FrameIntervalMS.
	lastNowMS int64
}

// New creates a Machine with the given configuration.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// Reset clears a single hand's FSM state.
func (m *Machine) Reset(handID int) {
	m.hands[handID].Reset()
	m.pinchActive[handID] = false
}

// ResetAll clears every hand's FSM state atomically, backing the
// clear_gesture_history control message.
func (m *Machine) ResetAll() {
	for id := range m.hands {
		m.Reset(id)
	}
}

// nowMS is overridable in tests to drive the FSM with synthetic clocks.
var nowMS = func() int64 { return time.Now().UnixMilli() }

// Update feeds one frame's RawDetection (or nil, meaning no detection this
// frame) for handID and returns an emitted Event, or nil.
func (m *Machine) Update(handID int, det *classifier.RawDetection) *Event {
	return m.updateAt(handID, det, nowMS())
}

func (m *Machine) updateAt(handID int, det *classifier.RawDetection, now int64) *Event {
	if now < m.lastNowMS {
		now = m.lastNowMS + m.cfg.FrameIntervalMS
	}
	m.lastNowMS = now

	hs := &m.hands[handID]

	// PINCH_HOLD bypasses stability/cooldown entirely and emits every frame
	// reported, isolated to this one branch: it runs before the
	// cooldown gate so an unrelated gesture's refractory period never
	// swallows a live pinch-drag.
	if det != nil && policyOf(det.Label) == Continuous {
		hs.buffer = hs.buffer[:0]
		return m.emit(hs, handID, det, now, false)
	}

	if hs.state == Cooldown {
		if now >= hs.cooldownDeadlineMS {
			hs.state = Idle
			hs.buffer = hs.buffer[:0]
		} else {
			return nil
		}
	}

	if det == nil {
		hs.state = Idle
		hs.buffer = hs.buffer[:0]
		return nil
	}

	policy := policyOf(det.Label)

	window := m.cfg.StabilityFrames
	if policy == Immediate {
		window = 1
	}

	hs.buffer = append(hs.buffer, *det)
	if len(hs.buffer) > window {
		hs.buffer = hs.buffer[len(hs.buffer)-window:]
	}
	hs.state = Detecting

	if len(hs.buffer) < window {
		return nil
	}
	label := hs.buffer[0].Label
	for _, d := range hs.buffer {
		if d.Label != label {
			return nil
		}
	}

	if !m.cfg.AllowSameGestureRepeat && hs.havePrevEmit && hs.lastEmittedLabel == label {
		lockout := m.cfg.SameGestureLockoutMS
		if now-hs.lastEmitMS < lockout {
			return nil
		}
	}

	// Only Stable emits are refractory: an Immediate PINCH_START must not
	// start a cooldown that would swallow the PINCH_END a few frames later.
	return m.emit(hs, handID, det, now, policy == Stable)
}

func (m *Machine) emit(hs *HandState, handID int, det *classifier.RawDetection, now int64, enterCooldown bool) *Event {
	if det.Label == classifier.PinchStart {
		m.pinchActive[handID] = true
	}
	if det.Label == classifier.PinchEnd && !m.pinchActive[handID] {
		// Invariant: PINCH_END only follows PINCH_HOLD/PINCH_START for this
		// hand. Without a preceding PINCH_START this is a stray transition
		// from the classifier and must not be surfaced.
		return nil
	}
	if det.Label == classifier.PinchEnd {
		m.pinchActive[handID] = false
	}

	var conf float64
	if len(hs.buffer) > 0 {
		var sum float64
		for _, d := range hs.buffer {
			sum += d.Confidence
		}
		conf = sum / float64(len(hs.buffer))
	} else {
		conf = det.Confidence
	}

	evt := &Event{
		Label:       det.Label,
		Confidence:  conf,
		HandID:      handID,
		TimestampMS: now,
		Metadata:    det.Metadata,
	}

	hs.lastEmittedLabel = det.Label
	hs.lastEmitMS = now
	hs.havePrevEmit = true
	hs.buffer = hs.buffer[:0]

	if enterCooldown {
		hs.state = Cooldown
		hs.cooldownDeadlineMS = now + m.cfg.CooldownMS
	}

	return evt
}
