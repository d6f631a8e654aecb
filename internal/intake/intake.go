// Package intake assigns stable hand identities to per-frame landmark
// observations and retires identities once the extractor stops reporting
// them.
package intake

import (
	"sort"

	"github.com/ayusman/gesturecast/internal/landmark"
)

// MaxHands is the maximum number of simultaneously tracked hands.
const MaxHands = 2

// DefaultMissFramesToRetire is the number of consecutive frames a hand may
// go unobserved before its HandId is retired.
const DefaultMissFramesToRetire = 10

// DefaultMatchThreshold is the maximum wrist-to-wrist normalized distance
// allowed when matching an untracked observation to an existing hand.
const DefaultMatchThreshold = 0.15

// Tracked pairs a HandId with the observation assigned to it this frame.
type Tracked struct {
	HandID      int
	Observation landmark.Observation
}

type slot struct {
	active     bool
	missFrames int
	lastWrist  landmark.Point
}

// Config parameterizes the intake policy.
type Config struct {
	MissFramesToRetire int
	MatchThreshold     float64
}

// DefaultConfig returns the default intake parameters.
func DefaultConfig() Config {
	return Config{
		MissFramesToRetire: DefaultMissFramesToRetire,
		MatchThreshold:     DefaultMatchThreshold,
	}
}

// Intake assigns and retires HandIds across frames. It is owned exclusively
// by the vision loop; nothing else may read or mutate it.
type Intake struct {
	cfg   Config
	slots [MaxHands]slot
}

// New creates an Intake with the given configuration.
func New(cfg Config) *Intake {
	return &Intake{cfg: cfg}
}

// Retired reports a HandId torn down by the most recent Update call, so the
// caller can destroy the matching HandState.
type Retired struct {
	HandID int
}

// Update assigns a HandId to each observation in obs (arbitrary order,
// length 0..2, but only the top MaxHands by tracker score are kept if more
// arrive) and reports which previously active HandIds were retired this
// frame. The returned Tracked slice is ordered by HandId ascending.
func (in *Intake) Update(obs []landmark.Observation) ([]Tracked, []Retired) {
	obs = topByScore(obs, MaxHands)

	assignedID := make([]int, len(obs))
	for i := range assignedID {
		assignedID[i] = -1
	}
	idTaken := make([]bool, MaxHands)

	// 1. Honor extractor-provided tracking ids first.
	for i, o := range obs {
		if o.TrackID == nil {
			continue
		}
		id := *o.TrackID
		if id < 0 || id >= MaxHands || idTaken[id] {
			continue
		}
		idTaken[id] = true
		assignedID[i] = id
	}

	// 2. Nearest-wrist-distance match for remaining observations against
	// remaining active slots.
	for i, o := range obs {
		if assignedID[i] >= 0 {
			continue
		}
		best := -1
		bestDist := in.cfg.MatchThreshold
		for id := 0; id < MaxHands; id++ {
			if idTaken[id] || !in.slots[id].active {
				continue
			}
			d := landmark.Distance2D(o.Points[landmark.Wrist], in.slots[id].lastWrist)
			if d <= bestDist {
				bestDist = d
				best = id
			}
		}
		if best >= 0 {
			idTaken[best] = true
			assignedID[i] = best
		}
	}

	// 3. Unmatched observations take the lowest free HandId, i.e. one not
	// taken this frame and not held by an active, unretired hand. Only when
	// no such id exists do they take any id not taken this frame.
	for i := range obs {
		if assignedID[i] >= 0 {
			continue
		}
		for id := 0; id < MaxHands; id++ {
			if !idTaken[id] && !in.slots[id].active {
				idTaken[id] = true
				assignedID[i] = id
				break
			}
		}
		if assignedID[i] >= 0 {
			continue
		}
		for id := 0; id < MaxHands; id++ {
			if !idTaken[id] {
				idTaken[id] = true
				assignedID[i] = id
				break
			}
		}
	}

	seen := make([]bool, MaxHands)
	result := make([]Tracked, 0, len(obs))
	for i, o := range obs {
		id := assignedID[i]
		if id < 0 {
			continue
		}
		seen[id] = true
		in.slots[id].active = true
		in.slots[id].missFrames = 0
		in.slots[id].lastWrist = o.Points[landmark.Wrist]
		result = append(result, Tracked{HandID: id, Observation: o})
	}

	var retired []Retired
	for id := 0; id < MaxHands; id++ {
		if seen[id] || !in.slots[id].active {
			continue
		}
		in.slots[id].missFrames++
		if in.slots[id].missFrames >= in.cfg.MissFramesToRetire {
			in.slots[id].active = false
			in.slots[id].missFrames = 0
			retired = append(retired, Retired{HandID: id})
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].HandID < result[j].HandID })
	return result, retired
}

// ActiveIDs returns the HandIds that currently hold a live hand, including
// hands missed this frame but not yet retired. The caller uses it to feed
// "no detection" frames to the state machines of hands the extractor
// skipped.
func (in *Intake) ActiveIDs() []int {
	var ids []int
	for id := 0; id < MaxHands; id++ {
		if in.slots[id].active {
			ids = append(ids, id)
		}
	}
	return ids
}

// topByScore returns at most n observations from obs, keeping the ones with
// the highest tracker Score when len(obs) > n; extras are discarded
// silently.
func topByScore(obs []landmark.Observation, n int) []landmark.Observation {
	if len(obs) <= n {
		return obs
	}
	out := make([]landmark.Observation, len(obs))
	copy(out, obs)
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out[:n]
}
