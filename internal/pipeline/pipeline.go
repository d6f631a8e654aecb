// Package pipeline runs the single-threaded vision loop: each tick reads
// landmark observations, updates intake/classifier/state-machine state, and
// publishes emitted gesture events.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/gesturecast/internal/broadcast"
	"github.com/ayusman/gesturecast/internal/classifier"
	"github.com/ayusman/gesturecast/internal/intake"
	"github.com/ayusman/gesturecast/internal/landmark"
	"github.com/ayusman/gesturecast/internal/statemachine"
)

// ErrExtractorFailure is returned by an Extractor when it cannot produce
// observations for the current frame.
var ErrExtractorFailure = errors.New("pipeline: landmark extraction failed")

// ErrTooManyReadFailures is the fatal error surfaced when consecutive
// extractor faults exceed the configured threshold.
var ErrTooManyReadFailures = errors.New("pipeline: exceeded consecutive extraction failure threshold")

// DefaultMaxConsecutiveFailures is the default fatal threshold for repeated
// extractor faults.
const DefaultMaxConsecutiveFailures = 30

// DefaultTargetFPS is the vision loop's target camera frame rate.
const DefaultTargetFPS = 30

// Extractor is the contract of the external hand-landmark extractor
// collaborator.
type Extractor interface {
	Extract(ctx context.Context) ([]landmark.Observation, error)
}

// Publisher is the subset of broadcast.Broadcaster the pipeline depends on.
type Publisher interface {
	Publish(evt statemachine.Event)
	PublishStatus(fps, latencyMS float64, handsDetected int)
	ClearHistoryRequested() bool
}

// Config parameterizes the vision loop.
type Config struct {
	TargetFPS              int
	MaxConsecutiveFailures int
	StatusInterval         time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TargetFPS:              DefaultTargetFPS,
		MaxConsecutiveFailures: DefaultMaxConsecutiveFailures,
		StatusInterval:         broadcast.DefaultStatusInterval,
	}
}

// Pipeline owns the intake, classifier, and state-machine arenas
// exclusively; nothing outside the vision loop goroutine may touch them.
type Pipeline struct {
	cfg Config
	log zerolog.Logger

	extractor  Extractor
	intake     *intake.Intake
	classifier *classifier.Classifier
	machine    *statemachine.Machine
	publisher  Publisher

	consecutiveFailures int
	lastHandsCount      int
	latencyEWMAms       float64

	metrics *broadcast.Metrics
}

// New wires a Pipeline from its collaborators. metrics may be nil to skip
// instrumentation.
func New(cfg Config, log zerolog.Logger, extractor Extractor, in *intake.Intake, cl *classifier.Classifier, mach *statemachine.Machine, pub Publisher, metrics *broadcast.Metrics) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		log:        log.With().Str("component", "pipeline").Logger(),
		extractor:  extractor,
		intake:     in,
		classifier: cl,
		machine:    mach,
		publisher:  pub,
		metrics:    metrics,
	}
}

// Run drives the vision loop until ctx is cancelled or a fatal extractor
// failure occurs. On graceful shutdown it drains pending publishes (there
// are none to drain since publish is synchronous) and returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(p.cfg.TargetFPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statusEvery := p.cfg.StatusInterval
	if statusEvery <= 0 {
		statusEvery = broadcast.DefaultStatusInterval
	}

	var frameCount int
	windowStart := time.Now()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("vision loop shutting down")
			return nil
		case <-ticker.C:
			tickStart := time.Now()
			if err := p.tick(ctx); err != nil {
				return fmt.Errorf("vision loop: %w", err)
			}
			p.recordLatency(time.Since(tickStart))

			frameCount++
			if elapsed := time.Since(windowStart); elapsed >= statusEvery {
				fps := float64(frameCount) / elapsed.Seconds()
				p.maybePublishStatus(fps)
				frameCount = 0
				windowStart = time.Now()
			}
		}
	}
}

func (p *Pipeline) tick(ctx context.Context) error {
	if p.publisher.ClearHistoryRequested() {
		p.classifier.ResetAll()
		p.machine.ResetAll()
	}

	obs, err := p.extractor.Extract(ctx)
	if err != nil {
		p.consecutiveFailures++
		p.log.Debug().Err(err).Int("consecutive_failures", p.consecutiveFailures).Msg("landmark extraction faulted; treating frame as no hands")
		if p.consecutiveFailures >= p.cfg.MaxConsecutiveFailures {
			return ErrTooManyReadFailures
		}
		obs = nil
	} else {
		p.consecutiveFailures = 0
	}

	tracked, retired := p.intake.Update(obs)
	for _, r := range retired {
		p.classifier.ResetHand(r.HandID)
		p.machine.Reset(r.HandID)
	}

	p.lastHandsCount = len(tracked)
	if p.metrics != nil {
		p.metrics.HandsActive.Set(float64(len(tracked)))
	}

	var seen [intake.MaxHands]bool
	for _, t := range tracked {
		seen[t.HandID] = true
		det := p.classifier.Classify(t.HandID, t.Observation)
		evt := p.machine.Update(t.HandID, det)
		if evt != nil {
			p.publisher.Publish(*evt)
		}
	}

	// Hands still alive but unobserved this frame get an explicit "no
	// detection" input so their stability buffers clear.
	for _, id := range p.intake.ActiveIDs() {
		if !seen[id] {
			p.machine.Update(id, nil)
		}
	}

	return nil
}

func (p *Pipeline) recordLatency(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0
	const alpha = 0.2
	p.latencyEWMAms = alpha*ms + (1-alpha)*p.latencyEWMAms
	if p.metrics != nil {
		p.metrics.PipelineLatencyMS.Observe(ms)
	}
}

func (p *Pipeline) maybePublishStatus(fps float64) {
	if p.metrics != nil {
		p.metrics.PipelineFPS.Set(fps)
	}
	p.publisher.PublishStatus(fps, p.latencyEWMAms, p.lastHandsCount)
}
