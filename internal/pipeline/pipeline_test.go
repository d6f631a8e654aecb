package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/gesturecast/internal/classifier"
	"github.com/ayusman/gesturecast/internal/intake"
	"github.com/ayusman/gesturecast/internal/landmark"
	"github.com/ayusman/gesturecast/internal/statemachine"
)

type scriptedExtractor struct {
	mu     sync.Mutex
	frames [][]landmark.Observation
	idx    int
	failAt map[int]bool
}

func (e *scriptedExtractor) Extract(ctx context.Context) ([]landmark.Observation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.idx
	e.idx++
	if e.failAt[i] {
		return nil, ErrExtractorFailure
	}
	if i >= len(e.frames) {
		return nil, nil
	}
	return e.frames[i], nil
}

type fakePublisher struct {
	mu         sync.Mutex
	events     []statemachine.Event
	clearAsked bool
	statusN    int
}

func (f *fakePublisher) Publish(evt statemachine.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

func (f *fakePublisher) PublishStatus(fps, latencyMS float64, handsDetected int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusN++
}

func (f *fakePublisher) ClearHistoryRequested() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	asked := f.clearAsked
	f.clearAsked = false
	return asked
}

func (f *fakePublisher) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestPipeline_EmitsEventAfterStableFrames(t *testing.T) {
	frames := make([][]landmark.Observation, 7)
	for i := range frames {
		frames[i] = []landmark.Observation{landmark.OpenPalm()}
	}
	ext := &scriptedExtractor{frames: frames}
	pub := &fakePublisher{}

	cfg := DefaultConfig()
	cfg.TargetFPS = 200 // fast ticks to keep the test quick

	p := New(cfg, zerolog.Nop(), ext, intake.New(intake.DefaultConfig()), classifier.New(classifier.DefaultConfig()), statemachine.New(statemachine.DefaultConfig()), pub, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = p.Run(ctx)

	if pub.eventCount() == 0 {
		t.Fatalf("expected at least one emitted event")
	}
}

func TestPipeline_MissedFrameResetsStability(t *testing.T) {
	// Four stable frames, a one-frame miss, then four more: the miss must
	// clear the stability buffer, so no event is promoted (K=5).
	var frames [][]landmark.Observation
	for i := 0; i < 4; i++ {
		frames = append(frames, []landmark.Observation{landmark.OpenPalm()})
	}
	frames = append(frames, nil)
	for i := 0; i < 4; i++ {
		frames = append(frames, []landmark.Observation{landmark.OpenPalm()})
	}
	ext := &scriptedExtractor{frames: frames}
	pub := &fakePublisher{}

	cfg := DefaultConfig()
	cfg.TargetFPS = 200

	p := New(cfg, zerolog.Nop(), ext, intake.New(intake.DefaultConfig()), classifier.New(classifier.DefaultConfig()), statemachine.New(statemachine.DefaultConfig()), pub, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Run(ctx)

	if n := pub.eventCount(); n != 0 {
		t.Fatalf("expected the missed frame to reset stability, got %d events", n)
	}
}

func TestPipeline_FatalAfterTooManyConsecutiveFailures(t *testing.T) {
	ext := &scriptedExtractor{failAt: map[int]bool{}}
	for i := 0; i < 100; i++ {
		ext.failAt[i] = true
	}
	pub := &fakePublisher{}

	cfg := DefaultConfig()
	cfg.TargetFPS = 500
	cfg.MaxConsecutiveFailures = 5

	p := New(cfg, zerolog.Nop(), ext, intake.New(intake.DefaultConfig()), classifier.New(classifier.DefaultConfig()), statemachine.New(statemachine.DefaultConfig()), pub, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := p.Run(ctx)
	if err == nil || !errors.Is(err, ErrTooManyReadFailures) {
		t.Fatalf("expected fatal ErrTooManyReadFailures, got %v", err)
	}
}

func TestPipeline_GracefulShutdownReturnsNil(t *testing.T) {
	ext := &scriptedExtractor{}
	pub := &fakePublisher{}

	cfg := DefaultConfig()
	cfg.TargetFPS = 200

	p := New(cfg, zerolog.Nop(), ext, intake.New(intake.DefaultConfig()), classifier.New(classifier.DefaultConfig()), statemachine.New(statemachine.DefaultConfig()), pub, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("expected graceful shutdown to return nil, got %v", err)
	}
}
