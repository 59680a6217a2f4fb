package stage

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Instrument is the physical (or simulated) motion stage driven by the
// scan server. Implementations must tolerate one call at a time per
// session; the server never overlaps session commands.
type Instrument interface {
	// Init prepares the stage for a new scan and returns the number of
	// scan steps the instrument intends to perform.
	Init(ctx context.Context) (int32, error)

	// Move advances the stage to the position for the given 0-based step
	// and returns the ack payload for the controller. The payload is
	// opaque to the controller; it is logged, not parsed.
	Move(ctx context.Context, step int) ([]byte, error)

	// Done finalizes the scan and releases the stage.
	Done(ctx context.Context) error

	// SetAxis moves the named axis to value and returns the position
	// actually reached.
	SetAxis(axis string, value float64) (float64, error)

	// Axis returns the current position of the named axis.
	Axis(axis string) (float64, error)
}

// SimStage is a simulated motion stage. Moves take a configurable settling
// time; axis positions start at a random value, mimicking a cold stage
// whose encoders report an arbitrary parked position.
type SimStage struct {
	steps  int32
	settle time.Duration

	step atomic.Int32
	axes *xsync.MapOf[string, float64]
}

var _ Instrument = (*SimStage)(nil)

// NewSimStage creates a simulated stage performing the given number of
// scan steps, each taking settle to complete.
func NewSimStage(steps int32, settle time.Duration) *SimStage {
	return &SimStage{
		steps:  steps,
		settle: settle,
		axes:   xsync.NewMapOf[string, float64](),
	}
}

// Init resets the step counter and announces the scan length.
func (s *SimStage) Init(_ context.Context) (int32, error) {
	s.step.Store(0)

	return s.steps, nil
}

// Move simulates the settling time of one scan step.
func (s *SimStage) Move(ctx context.Context, step int) ([]byte, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}

	s.step.Store(int32(step) + 1) //nolint:gosec

	return []byte("ok"), nil
}

// Done releases the simulated stage.
func (s *SimStage) Done(_ context.Context) error {
	s.step.Store(0)

	return nil
}

// Step returns the number of completed scan steps.
func (s *SimStage) Step() int32 { return s.step.Load() }

// SetAxis simulates moving the named axis to value.
func (s *SimStage) SetAxis(axis string, value float64) (float64, error) {
	if axis == "" {
		return 0, fmt.Errorf("stage: empty axis name")
	}
	if err := s.sleep(context.Background()); err != nil {
		return 0, err
	}

	s.axes.Store(axis, value)

	return value, nil
}

// Axis returns the current position of the named axis, initializing an
// unseen axis to a random parked position in [0, 1).
func (s *SimStage) Axis(axis string) (float64, error) {
	if axis == "" {
		return 0, fmt.Errorf("stage: empty axis name")
	}

	pos, _ := s.axes.LoadOrStore(axis, rand.Float64())

	return pos, nil
}

func (s *SimStage) sleep(ctx context.Context) error {
	if s.settle <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.settle):
		return nil
	}
}
