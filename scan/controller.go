package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/peaklab/scanctl/internal/pool"
	"github.com/peaklab/scanctl/logger"
)

// Result reports the outcome of one experiment run.
type Result struct {
	// StepsCompleted is the number of MOVE exchanges that received a
	// non-empty reply.
	StepsCompleted int

	// TotalSteps is the step count announced by the server on INIT,
	// or 0 when INIT failed.
	TotalSteps int32

	// State is the terminal session state.
	State SessionState

	// LastReply holds the raw payload of the last non-empty reply.
	// The server's per-step reply semantics are undocumented, so the
	// payload is surfaced for operator audit instead of being validated.
	LastReply []byte

	// CleanupErr records a failed best-effort DONE exchange when an
	// earlier error is already the primary outcome.
	CleanupErr error
}

// Controller sequences one experiment run against a scan server.
//
// Each command opens its own short-lived connection, decoupling transient
// network failures on one step from the rest of the session. Commands are
// strictly serial: step i+1's MOVE is never sent before step i's reply has
// been fully read and its connection closed.
//
// A controller runs exactly one session; create a new controller for each
// experiment.
type Controller struct {
	cfg     *ControllerConfig
	logger  logger.Logger
	state   AtomicSessionState
	metrics SessionMetrics
}

// NewController creates a scan controller from the given configuration.
func NewController(cfg *ControllerConfig) (*Controller, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	return &Controller{cfg: cfg, logger: cfg.logger}, nil
}

// RunExperiment runs a complete scan session against host:port with the
// given options. It is shorthand for NewControllerConfig, NewController
// and Run.
func RunExperiment(ctx context.Context, host string, port int, opts ...ControllerOption) (*Result, error) {
	cfg, err := NewControllerConfig(host, port, opts...)
	if err != nil {
		return nil, err
	}

	ctrl, err := NewController(cfg)
	if err != nil {
		return nil, err
	}

	return ctrl.Run(ctx)
}

// State returns the current session state.
func (c *Controller) State() SessionState { return c.state.Get() }

// Metrics returns the session metrics. The returned struct is updated
// atomically while the session runs.
func (c *Controller) Metrics() *SessionMetrics { return &c.metrics }

// Run executes one complete scan session:
//
//  1. INIT: read the 4-byte big-endian step count N. Failure aborts the
//     session before any MOVE or DONE.
//  2. MOVE × N: one fresh connection per step, a minimum settling pause
//     between consecutive steps. The first failed step aborts the
//     remaining steps; a failed MOVE is never retried, since a silent
//     retry could double-move the physical stage.
//  3. DONE: attempted whenever INIT succeeded, even after a step failure
//     or cancellation, so the server releases the instrument lock. Its
//     failure never masks an earlier error.
//
// Cancellation is honored between steps, not mid-exchange, to avoid
// leaving the stage mid-motion without a matching reply.
//
// The returned error is nil only when every step and the final DONE
// succeeded.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !c.state.ToInitializing() {
		return nil, ErrSessionReused
	}

	res := &Result{}
	c.logger.Info("scan session starting", "address", c.cfg.Addr())

	reply, err := c.exchange(ctx, CmdInit, StepCountLength)
	if err != nil {
		c.state.ToAborted()
		res.State = c.state.Get()

		return res, fmt.Errorf("%w: %w", ErrInit, err)
	}

	count, err := DecodeStepCount(reply)
	if err != nil {
		c.state.ToAborted()
		res.State = c.state.Get()

		return res, fmt.Errorf("%w: %w", ErrInit, err)
	}

	res.TotalSteps = count
	c.logger.Info("scan session initialized", "steps", count)

	if count < 0 {
		primary := fmt.Errorf("%w: negative step count %d", ErrProtocol, count)

		return res, c.finish(ctx, res, primary)
	}

	var primary error
	if count > 0 {
		c.state.ToStepping()
		primary = c.runSteps(ctx, res, count)
	}

	return res, c.finish(ctx, res, primary)
}

// runSteps issues the MOVE sequence and returns the first error
// encountered, leaving the remaining steps unvisited.
func (c *Controller) runSteps(ctx context.Context, res *Result, count int32) error {
	for i := 0; int32(i) < count; i++ {
		if err := ctx.Err(); err != nil {
			return &AbortError{Reason: err}
		}

		c.metrics.incStepSendCount()

		reply, err := c.exchange(ctx, CmdMove, 0)
		if err != nil {
			c.metrics.incStepErrCount()

			return &StepError{Index: i, Cause: err}
		}

		res.StepsCompleted++
		res.LastReply = reply
		c.logger.Info("scan step complete", "step", i, "total", count)

		if int32(i) < count-1 {
			if err := c.pause(ctx); err != nil {
				return &AbortError{Reason: err}
			}
		}
	}

	return nil
}

// finish performs the best-effort DONE exchange and settles the terminal
// state. It runs on every path where INIT succeeded, including aborts and
// cancellation, and returns the primary error of the session.
func (c *Controller) finish(ctx context.Context, res *Result, primary error) error {
	if primary != nil {
		c.state.ToAborted()
		c.logger.Warn("scan sequence aborted, finalizing session", "error", primary)
	}
	c.state.ToFinishing()

	// The server holds the instrument lock until DONE, so cleanup proceeds
	// even when the run context is already canceled.
	reply, err := c.exchange(context.WithoutCancel(ctx), CmdDone, 0)
	if err != nil {
		c.metrics.incCleanupErrCount()
		c.logger.Error("DONE exchange failed", "error", err)
		c.state.ToAborted()
		res.State = c.state.Get()

		cleanup := &CleanupError{Cause: err}
		if primary == nil {
			return cleanup
		}
		res.CleanupErr = cleanup

		return primary
	}

	res.LastReply = reply
	if primary == nil {
		c.state.ToDone()
		c.logger.Info("scan session complete", "steps_completed", res.StepsCompleted)
	} else {
		c.state.ToAborted()
	}
	res.State = c.state.Get()

	return primary
}

// exchange performs one command over its own connection: dial, send the
// 4-byte tag, read the reply, close. When exactLen > 0 the reply must be
// exactly that many bytes; otherwise any non-empty payload below the
// configured cap is accepted.
func (c *Controller) exchange(ctx context.Context, cmd Command, exactLen int) ([]byte, error) {
	start := time.Now()
	c.metrics.incExchangeCount()

	dialer := net.Dialer{Timeout: c.cfg.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("%w: %s to %s: %w", ErrConnect, cmd, c.cfg.Addr(), err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.cfg.exchangeTimeout)); err != nil {
		return nil, fmt.Errorf("scan: set deadline for %s: %w", cmd, err)
	}

	if _, err := conn.Write(cmd.Bytes()); err != nil {
		return nil, fmt.Errorf("scan: send %s: %w", cmd, err)
	}

	var reply []byte
	if exactLen > 0 {
		buf := make([]byte, exactLen)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return nil, fmt.Errorf("%w: %s reply: %w", ErrMalformedReply, cmd, err)
		}
		reply = buf
	} else {
		buf := make([]byte, c.cfg.maxReplySize)
		n, err := conn.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("scan: read %s reply: %w", cmd, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyReply, cmd)
		}
		if n == c.cfg.maxReplySize {
			return nil, fmt.Errorf("%w: %s reply reached the %d byte cap", ErrProtocol, cmd, n)
		}
		reply = buf[:n]
	}

	c.metrics.addReply(len(reply))
	c.logger.Debug("exchange complete",
		"command", cmd.String(),
		"reply", fmt.Sprintf("%q", reply),
		"elapsed", time.Since(start))

	return reply, nil
}

// pause waits out the inter-step settling delay, honoring cancellation.
// The delay is a minimum; scheduling jitter beyond it is acceptable.
func (c *Controller) pause(ctx context.Context) error {
	if c.cfg.stepDelay <= 0 {
		return ctx.Err()
	}

	timer := pool.GetTimer(c.cfg.stepDelay)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
