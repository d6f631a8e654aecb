// Package classifier turns per-hand landmark observations into confidence
// scored gesture detections using geometric heuristics. No
// learned/model-based classification is performed.
package classifier

import (
	"math"

	"github.com/ayusman/gesturecast/internal/landmark"
)

// Label identifies a recognized gesture, or NoGesture when none fired.
type Label string

const (
	OpenPalm    Label = "OPEN_PALM"
	ClosedFist  Label = "CLOSED_FIST"
	SwipeLeft   Label = "SWIPE_LEFT"
	SwipeRight  Label = "SWIPE_RIGHT"
	SwipeUp     Label = "SWIPE_UP"
	SwipeDown   Label = "SWIPE_DOWN"
	PinchStart  Label = "PINCH_START"
	PinchHold   Label = "PINCH_HOLD"
	PinchEnd    Label = "PINCH_END"
	PushForward Label = "PUSH_FORWARD"
	NoGesture   Label = "NONE"
)

// Metadata is attached to every RawDetection and carried through to the
// emitted GestureEvent.
type Metadata struct {
	HandCenter      landmark.Point
	HandSize        float64
	WristZ          float64
	FingersExtended int
}

// RawDetection is the per-frame, per-hand classifier output.
type RawDetection struct {
	Label      Label
	Confidence float64
	Metadata   Metadata
}

// Config holds every classifier threshold.
type Config struct {
	OpenPalmFingerThreshold   float64
	OpenPalmMinFingers        int
	ClosedFistDistThreshold   float64
	ClosedFistMinFingers      int
	PinchEnter                float64
	PinchExit                 float64
	SwipeWindowSize           int
	SwipeDxThreshold          float64
	SwipeDyThreshold          float64
	CrossAxisRatio            float64
	PushWindowSize            int
	PushSizeIncreaseThreshold float64
	PushZThreshold            float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		OpenPalmFingerThreshold:   0.02,
		OpenPalmMinFingers:        3,
		ClosedFistDistThreshold:   0.10,
		ClosedFistMinFingers:      4,
		PinchEnter:                0.05,
		PinchExit:                 0.07,
		SwipeWindowSize:           8,
		SwipeDxThreshold:          0.08,
		SwipeDyThreshold:          0.08,
		CrossAxisRatio:            0.8,
		PushWindowSize:            8,
		PushSizeIncreaseThreshold: 0.15,
		PushZThreshold:            0.10,
	}
}

type posSample struct {
	center landmark.Point
}

type sizeSample struct {
	size   float64
	wristZ float64
}

// HandHistory holds the rolling buffers and continuous-gesture state for
// one tracked hand. The arena is indexed by HandId (0 or 1): at most two
// ever exist, so a map is unnecessary.
type HandHistory struct {
	position []posSample
	size     []sizeSample
	pinching bool
}

// Reset clears all rolling state for a hand, used on retirement and on
// clear_gesture_history.
func (h *HandHistory) Reset() {
	h.position = h.position[:0]
	h.size = h.size[:0]
	h.pinching = false
}

// Classifier computes RawDetections from landmark observations, maintaining
// a small per-hand history arena. Owned exclusively by the vision loop.
type Classifier struct {
	cfg     Config
	history [2]HandHistory
}

// New creates a Classifier with the given configuration.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// ResetHand clears the rolling history for a single HandId, e.g. after
// retirement.
func (c *Classifier) ResetHand(handID int) {
	c.history[handID].Reset()
}

// ResetAll clears every hand's rolling history atomically, implementing the
// clear_gesture_history control message.
func (c *Classifier) ResetAll() {
	c.history[0].Reset()
	c.history[1].Reset()
}

// Classify advances the rolling history for handID with obs and returns the
// RawDetection for this frame, or nil if no gesture fired. An invalid
// observation (NaN/out-of-range landmark) yields no detection for the
// frame but still ages the rolling windows.
func (c *Classifier) Classify(handID int, obs landmark.Observation) *RawDetection {
	h := &c.history[handID]

	if !obs.Valid() {
		// The frame counts as a miss but the rolling windows still age, so
		// a later valid frame cannot complete a window built on samples
		// from before the fault.
		if len(h.position) > 0 {
			h.position = h.position[1:]
		}
		if len(h.size) > 0 {
			h.size = h.size[1:]
		}
		return nil
	}

	center := obs.Center()
	size := obs.Size()
	wristZ := obs.Points[landmark.Wrist].Z

	h.position = append(h.position, posSample{center: center})
	if len(h.position) > c.cfg.SwipeWindowSize {
		h.position = h.position[len(h.position)-c.cfg.SwipeWindowSize:]
	}
	h.size = append(h.size, sizeSample{size: size, wristZ: wristZ})
	if len(h.size) > c.cfg.PushWindowSize {
		h.size = h.size[len(h.size)-c.cfg.PushWindowSize:]
	}

	meta := Metadata{
		HandCenter:      center,
		HandSize:        size,
		WristZ:          wristZ,
		FingersExtended: countExtendedFingers(obs, c.cfg.OpenPalmFingerThreshold),
	}

	if d := c.classifySwipe(h, meta); d != nil {
		return d
	}
	if d := c.classifyPush(h, meta); d != nil {
		return d
	}
	if d := c.classifyPinch(h, obs, meta); d != nil {
		return d
	}
	if d := c.classifyOpenPalm(obs, meta); d != nil {
		return d
	}
	if d := c.classifyClosedFist(obs, meta); d != nil {
		return d
	}
	return nil
}

func (c *Classifier) classifySwipe(h *HandHistory, meta Metadata) *RawDetection {
	if len(h.position) < c.cfg.SwipeWindowSize {
		return nil
	}
	first := h.position[0].center
	last := h.position[len(h.position)-1].center
	dx := last.X - first.X
	dy := last.Y - first.Y

	var label Label
	var mag, threshold float64
	switch {
	case math.Abs(dx) > c.cfg.SwipeDxThreshold && math.Abs(dy) <= c.cfg.CrossAxisRatio*math.Abs(dx):
		if dx < 0 {
			label = SwipeLeft
		} else {
			label = SwipeRight
		}
		mag, threshold = math.Abs(dx), c.cfg.SwipeDxThreshold
	case math.Abs(dy) > c.cfg.SwipeDyThreshold && math.Abs(dx) <= c.cfg.CrossAxisRatio*math.Abs(dy):
		// Image convention: y increases downward.
		if dy < 0 {
			label = SwipeUp
		} else {
			label = SwipeDown
		}
		mag, threshold = math.Abs(dy), c.cfg.SwipeDyThreshold
	default:
		return nil
	}

	h.position = h.position[:0]
	return &RawDetection{
		Label:      label,
		Confidence: clamp01(mag / (2 * threshold)),
		Metadata:   meta,
	}
}

func (c *Classifier) classifyPush(h *HandHistory, meta Metadata) *RawDetection {
	if len(h.size) < c.cfg.PushWindowSize {
		return nil
	}
	first := h.size[0]
	last := h.size[len(h.size)-1]
	if first.size == 0 {
		return nil
	}
	dSize := (last.size - first.size) / first.size
	dz := first.wristZ - last.wristZ

	if dSize > c.cfg.PushSizeIncreaseThreshold && dz > c.cfg.PushZThreshold {
		h.size = h.size[:0]
		h.position = h.position[:0]
		return &RawDetection{
			Label:      PushForward,
			Confidence: clamp01(dSize / (2 * c.cfg.PushSizeIncreaseThreshold)),
			Metadata:   meta,
		}
	}
	return nil
}

func (c *Classifier) classifyPinch(h *HandHistory, obs landmark.Observation, meta Metadata) *RawDetection {
	d := landmark.Distance2D(obs.Points[landmark.ThumbTip], obs.Points[landmark.IndexTip])
	conf := 1 - clamp01(d/c.cfg.PinchExit)

	switch {
	case !h.pinching && d < c.cfg.PinchEnter:
		h.pinching = true
		return &RawDetection{Label: PinchStart, Confidence: conf, Metadata: meta}
	case h.pinching && d > c.cfg.PinchExit:
		h.pinching = false
		return &RawDetection{Label: PinchEnd, Confidence: conf, Metadata: meta}
	case h.pinching:
		return &RawDetection{Label: PinchHold, Confidence: conf, Metadata: meta}
	default:
		return nil
	}
}

func (c *Classifier) classifyOpenPalm(obs landmark.Observation, meta Metadata) *RawDetection {
	extended := countExtendedFingers(obs, c.cfg.OpenPalmFingerThreshold)
	if extended >= c.cfg.OpenPalmMinFingers {
		return &RawDetection{
			Label:      OpenPalm,
			Confidence: float64(extended) / 4,
			Metadata:   meta,
		}
	}
	return nil
}

func (c *Classifier) classifyClosedFist(obs landmark.Observation, meta Metadata) *RawDetection {
	palm := obs.PalmCenter()
	tips := []int{landmark.ThumbTip, landmark.IndexTip, landmark.MiddleTip, landmark.RingTip, landmark.PinkyTip}
	closed := 0
	for _, tip := range tips {
		if landmark.Distance2D(obs.Points[tip], palm) < c.cfg.ClosedFistDistThreshold {
			closed++
		}
	}
	if closed >= c.cfg.ClosedFistMinFingers {
		return &RawDetection{
			Label:      ClosedFist,
			Confidence: float64(closed) / 5,
			Metadata:   meta,
		}
	}
	return nil
}

var nonThumbFingers = [4][2]int{
	{landmark.IndexTip, landmark.IndexPIP},
	{landmark.MiddleTip, landmark.MiddlePIP},
	{landmark.RingTip, landmark.RingPIP},
	{landmark.PinkyTip, landmark.PinkyPIP},
}

func countExtendedFingers(obs landmark.Observation, threshold float64) int {
	count := 0
	for _, f := range nonThumbFingers {
		tip, pip := obs.Points[f[0]], obs.Points[f[1]]
		if tip.Y < pip.Y-threshold {
			count++
		}
	}
	return count
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
