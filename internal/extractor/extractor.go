// Package extractor adapts an external hand-landmark extractor process
// into the pipeline.Extractor contract. The extractor itself (camera
// capture, model inference) runs outside this process.
// It speaks a line-delimited JSON protocol: the subprocess writes one JSON
// object per frame to stdout, of the shape {"hands":[{"points":[...],
// "handedness":"Left","score":0.9,"track_id":1}]}.
package extractor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ayusman/gesturecast/internal/landmark"
)

// jsonPoint mirrors one landmark on the wire.
type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// jsonHand mirrors one observed hand on the wire. The optional tracking
// id, when present, is honored by intake as the hand's stable identity.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
	TrackID    *int        `json:"track_id"`
}

type jsonFrame struct {
	Hands []jsonHand `json:"hands"`
}

func (h jsonHand) toObservation() landmark.Observation {
	obs := landmark.Observation{
		Handedness: landmark.Handedness(h.Handedness),
		Score:      h.Score,
		TrackID:    h.TrackID,
	}
	for i := 0; i < landmark.NumPoints && i < len(h.Points); i++ {
		p := h.Points[i]
		obs.Points[i] = landmark.Point{X: p.X, Y: p.Y, Z: p.Z}
	}
	return obs
}

// SubprocessExtractor runs an external landmark-extraction process and
// reads one JSON frame per line from its stdout. The process is started
// lazily on the first Extract call.
type SubprocessExtractor struct {
	path string
	args []string
	log  zerolog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  *bufio.Reader
	started bool
}

// NewSubprocess creates an extractor that will lazily start path (with
// args) on first Extract call.
func NewSubprocess(path string, args []string, log zerolog.Logger) *SubprocessExtractor {
	return &SubprocessExtractor{
		path: path,
		args: args,
		log:  log.With().Str("component", "extractor").Logger(),
	}
}

func (e *SubprocessExtractor) ensureStarted() error {
	if e.started {
		return nil
	}

	cmd := exec.Command(e.path, e.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("extractor: create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("extractor: start process: %w", err)
	}
	e.log.Info().Str("path", e.path).Int("pid", cmd.Process.Pid).Msg("landmark extractor process started")

	e.cmd = cmd
	e.stdout = bufio.NewReader(stdout)
	e.started = true
	return nil
}

// Extract reads and decodes the next available frame. A read/decode fault
// is reported as an error; the pipeline treats that as "no hands this
// frame" unless faults exceed the configured consecutive-failure
// threshold.
func (e *SubprocessExtractor) Extract(ctx context.Context) ([]landmark.Observation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureStarted(); err != nil {
		return nil, err
	}

	line, err := e.stdout.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			e.started = false
		}
		return nil, fmt.Errorf("extractor: read frame: %w", err)
	}

	var frame jsonFrame
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		return nil, fmt.Errorf("extractor: decode frame: %w", err)
	}

	obs := make([]landmark.Observation, len(frame.Hands))
	for i, h := range frame.Hands {
		obs[i] = h.toObservation()
	}
	return obs, nil
}

// Close terminates the subprocess, if running.
func (e *SubprocessExtractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || e.cmd == nil {
		return nil
	}
	_ = e.cmd.Process.Kill()
	err := e.cmd.Wait()
	e.started = false
	return err
}

// StreamExtractor reads the same line-delimited JSON protocol from an
// arbitrary io.Reader (a named pipe, a persistent network connection, or a
// test fixture) instead of owning a subprocess.
type StreamExtractor struct {
	r *bufio.Reader
}

// NewStream wraps r as an Extractor.
func NewStream(r io.Reader) *StreamExtractor {
	return &StreamExtractor{r: bufio.NewReader(r)}
}

// Extract reads and decodes the next frame from the stream.
func (e *StreamExtractor) Extract(ctx context.Context) ([]landmark.Observation, error) {
	line, err := e.r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("extractor: read frame: %w", err)
	}
	var frame jsonFrame
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		return nil, fmt.Errorf("extractor: decode frame: %w", err)
	}
	obs := make([]landmark.Observation, len(frame.Hands))
	for i, h := range frame.Hands {
		obs[i] = h.toObservation()
	}
	return obs, nil
}
