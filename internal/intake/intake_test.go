package intake

import (
	"testing"

	"github.com/ayusman/gesturecast/internal/landmark"
)

func obsAt(x, y float64) landmark.Observation {
	o := landmark.OpenPalm()
	return landmark.AtCenter(o, x, y)
}

func trackID(id int) *int {
	return &id
}

func TestUpdate_AssignsLowestFreeID(t *testing.T) {
	in := New(DefaultConfig())

	tracked, retired := in.Update([]landmark.Observation{obsAt(0.3, 0.3)})
	if len(retired) != 0 {
		t.Fatalf("expected no retirements, got %v", retired)
	}
	if len(tracked) != 1 || tracked[0].HandID != 0 {
		t.Fatalf("expected single hand with id 0, got %+v", tracked)
	}

	tracked, _ = in.Update([]landmark.Observation{obsAt(0.3, 0.3), obsAt(0.8, 0.8)})
	if len(tracked) != 2 {
		t.Fatalf("expected two tracked hands, got %d", len(tracked))
	}
	if tracked[0].HandID != 0 || tracked[1].HandID != 1 {
		t.Fatalf("expected ids 0 and 1, got %d and %d", tracked[0].HandID, tracked[1].HandID)
	}
}

func TestUpdate_HonorsExtractorTrackID(t *testing.T) {
	in := New(DefaultConfig())

	o := obsAt(0.3, 0.3)
	o.TrackID = trackID(1)
	tracked, _ := in.Update([]landmark.Observation{o})
	if len(tracked) != 1 || tracked[0].HandID != 1 {
		t.Fatalf("expected hand assigned to track id 1, got %+v", tracked)
	}
}

func TestUpdate_MatchesByNearestWrist(t *testing.T) {
	in := New(DefaultConfig())

	in.Update([]landmark.Observation{obsAt(0.3, 0.3)})
	// Hand moves a small amount, well within the 0.15 match threshold.
	tracked, _ := in.Update([]landmark.Observation{obsAt(0.32, 0.31)})
	if len(tracked) != 1 || tracked[0].HandID != 0 {
		t.Fatalf("expected continuity of hand id 0, got %+v", tracked)
	}
}

func TestUpdate_UnmatchedBeyondThresholdGetsNewID(t *testing.T) {
	in := New(DefaultConfig())

	in.Update([]landmark.Observation{obsAt(0.1, 0.1)})
	tracked, _ := in.Update([]landmark.Observation{obsAt(0.9, 0.9)})
	if len(tracked) != 1 || tracked[0].HandID != 1 {
		t.Fatalf("expected a new hand id for the distant observation, got %+v", tracked)
	}
}

func TestUpdate_RetiresAfterMissFrames(t *testing.T) {
	in := New(DefaultConfig())
	in.Update([]landmark.Observation{obsAt(0.3, 0.3)})

	for i := 0; i < DefaultMissFramesToRetire-1; i++ {
		_, retired := in.Update(nil)
		if len(retired) != 0 {
			t.Fatalf("unexpected retirement at miss frame %d", i+1)
		}
	}

	_, retired := in.Update(nil)
	if len(retired) != 1 || retired[0].HandID != 0 {
		t.Fatalf("expected hand 0 retired at miss_frames_to_retire, got %v", retired)
	}
}

func TestUpdate_RetiredIDIsReusable(t *testing.T) {
	in := New(DefaultConfig())
	in.Update([]landmark.Observation{obsAt(0.3, 0.3)})
	for i := 0; i < DefaultMissFramesToRetire; i++ {
		in.Update(nil)
	}

	tracked, _ := in.Update([]landmark.Observation{obsAt(0.6, 0.6)})
	if len(tracked) != 1 || tracked[0].HandID != 0 {
		t.Fatalf("expected retired id 0 to be reused, got %+v", tracked)
	}
}

func TestActiveIDs_IncludesMissedButUnretiredHands(t *testing.T) {
	in := New(DefaultConfig())
	in.Update([]landmark.Observation{obsAt(0.3, 0.3)})

	// Missed for a few frames, but still short of retirement.
	in.Update(nil)
	in.Update(nil)

	ids := in.ActiveIDs()
	if len(ids) != 1 || ids[0] != 0 {
		t.Fatalf("expected hand 0 still active while missed, got %v", ids)
	}

	for i := 0; i < DefaultMissFramesToRetire; i++ {
		in.Update(nil)
	}
	if ids := in.ActiveIDs(); len(ids) != 0 {
		t.Fatalf("expected no active hands after retirement, got %v", ids)
	}
}

func TestUpdate_DiscardsExtraObservationsByScore(t *testing.T) {
	in := New(DefaultConfig())

	low := obsAt(0.1, 0.1)
	low.Score = 0.2
	mid := obsAt(0.5, 0.5)
	mid.Score = 0.6
	high := obsAt(0.9, 0.9)
	high.Score = 0.95

	tracked, _ := in.Update([]landmark.Observation{low, mid, high})
	if len(tracked) != 2 {
		t.Fatalf("expected only top-2 by score kept, got %d", len(tracked))
	}
	for _, tr := range tracked {
		if tr.Observation.Score == 0.2 {
			t.Fatalf("lowest-score observation should have been discarded")
		}
	}
}
