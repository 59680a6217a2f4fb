package stage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/peaklab/scanctl/logger"
	"github.com/peaklab/scanctl/scan"
)

// motorPrefix starts the manual positioning commands:
// MOTOR_<axis>_<value> sets, MOTOR_<axis> queries.
const motorPrefix = "MOTOR_"

var (
	// ErrServerClosed is returned by Serve after Close.
	ErrServerClosed = errors.New("stage: server closed")

	// ErrInstrumentNil indicates that a nil Instrument was provided.
	ErrInstrumentNil = errors.New("stage: instrument is nil")

	// ErrConfigNil indicates that a nil ServerConfig was provided.
	ErrConfigNil = errors.New("stage: server config is nil")
)

// Server accepts scan-control connections and drives an Instrument.
//
// The wire contract matches the controller exactly: one command per
// connection, bare 4-byte tags for session commands, a 4-byte big-endian
// step count as the INIT reply, short ASCII acks otherwise. Connections
// are handled serially; the instrument can only do one thing at a time.
type Server struct {
	cfg    *ServerConfig
	inst   Instrument
	logger logger.Logger

	listener      net.Listener
	listenerMutex sync.Mutex

	shutdown  atomic.Bool
	nextStep  atomic.Int32
	connCount atomic.Uint64
}

// NewServer creates a scan server driving the given instrument.
func NewServer(cfg *ServerConfig, inst Instrument) (*Server, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if inst == nil {
		return nil, ErrInstrumentNil
	}

	return &Server{cfg: cfg, inst: inst, logger: cfg.logger}, nil
}

// Listen opens the TCP listener on the configured bind address.
func (s *Server) Listen() error {
	s.listenerMutex.Lock()
	defer s.listenerMutex.Unlock()

	if s.listener != nil {
		return nil
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", s.cfg.Addr())
	if err != nil {
		s.logger.Error("stage: failed to listen", "address", s.cfg.Addr(), "error", err)

		return err
	}

	s.listener = listener
	s.logger.Info("stage: listening", "address", listener.Addr())

	return nil
}

// Addr returns the listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.listenerMutex.Lock()
	defer s.listenerMutex.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// ConnCount returns the number of connections accepted so far.
func (s *Server) ConnCount() uint64 { return s.connCount.Load() }

// ListenAndServe opens the listener and serves until ctx is canceled or
// Close is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	return s.Serve(ctx)
}

// Serve accepts and handles connections serially until ctx is canceled or
// Close is called. The accept deadline is refreshed each iteration so
// shutdown is observed within one accept timeout.
func (s *Server) Serve(ctx context.Context) error {
	s.listenerMutex.Lock()
	listener := s.listener
	s.listenerMutex.Unlock()

	if listener == nil {
		return fmt.Errorf("stage: Serve called before Listen")
	}

	tcpListener, _ := listener.(*net.TCPListener)

	for {
		if s.shutdown.Load() {
			return ErrServerClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if tcpListener != nil {
			_ = tcpListener.SetDeadline(time.Now().Add(s.cfg.acceptTimeout))
		}

		conn, err := listener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if s.shutdown.Load() || errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			s.logger.Error("stage: accept failed", "error", err)

			return err
		}

		s.connCount.Add(1)
		s.handleConn(ctx, conn)
	}
}

// Close stops the accept loop and closes the listener.
func (s *Server) Close() error {
	s.shutdown.Store(true)

	s.listenerMutex.Lock()
	defer s.listenerMutex.Unlock()

	if s.listener == nil {
		return nil
	}

	err := s.listener.Close()
	s.listener = nil

	return err
}

// handleConn reads one command, dispatches it, writes the reply and closes
// the connection.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.readTimeout))

	buf := make([]byte, s.cfg.maxCommandSize)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		s.logger.Warn("stage: failed to read command", "remote", conn.RemoteAddr(), "error", err)

		return
	}

	cmd := string(buf[:n])
	s.logger.Debug("stage: command received", "command", cmd, "remote", conn.RemoteAddr())

	reply := s.dispatch(ctx, cmd)
	if len(reply) == 0 {
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.writeTimeout))
	if _, err := conn.Write(reply); err != nil {
		s.logger.Error("stage: failed to write reply", "command", cmd, "error", err)
	}
}

// dispatch maps one command to its reply payload.
func (s *Server) dispatch(ctx context.Context, cmd string) []byte {
	switch {
	case cmd == scan.CmdInit.String():
		count, err := s.inst.Init(ctx)
		if err != nil {
			s.logger.Error("stage: instrument init failed", "error", err)

			return nil
		}
		s.nextStep.Store(0)
		s.logger.Info("stage: scan initialized", "steps", count)

		return scan.EncodeStepCount(count)

	case cmd == scan.CmdMove.String():
		step := int(s.nextStep.Add(1)) - 1
		payload, err := s.inst.Move(ctx, step)
		if err != nil {
			s.logger.Error("stage: move failed", "step", step, "error", err)

			return nil
		}
		s.logger.Info("stage: scan step done", "step", step)

		return payload

	case cmd == scan.CmdDone.String():
		if err := s.inst.Done(ctx); err != nil {
			s.logger.Error("stage: instrument finalize failed", "error", err)

			return nil
		}
		s.logger.Info("stage: scan finalized")

		return []byte("ok")

	case strings.HasPrefix(cmd, motorPrefix):
		return s.dispatchMotor(cmd)

	default:
		s.logger.Warn("stage: unknown command", "command", cmd)

		return []byte("ERR unknown command")
	}
}

// dispatchMotor handles MOTOR_<axis>[_<value>] set and query commands.
func (s *Server) dispatchMotor(cmd string) []byte {
	parts := strings.Split(cmd, "_")
	if len(parts) < 2 || parts[1] == "" {
		s.logger.Warn("stage: malformed motor command", "command", cmd)

		return []byte("ERR malformed motor command")
	}
	axis := parts[1]

	if len(parts) == 2 {
		pos, err := s.inst.Axis(axis)
		if err != nil {
			s.logger.Error("stage: axis query failed", "axis", axis, "error", err)

			return []byte("ERR axis query failed")
		}

		return []byte("current_" + axis + "_" + formatPosition(pos))
	}

	value, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		s.logger.Warn("stage: bad motor value", "command", cmd, "error", err)

		return []byte("ERR bad motor value")
	}

	pos, err := s.inst.SetAxis(axis, value)
	if err != nil {
		s.logger.Error("stage: axis move failed", "axis", axis, "error", err)

		return []byte("ERR axis move failed")
	}

	return []byte("set_" + axis + "_" + formatPosition(pos))
}

func formatPosition(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
