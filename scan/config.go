package scan

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/peaklab/scanctl/logger"
)

// Default configuration values. The address default matches the lab scan
// server; the step delay matches the stage settling time it was tuned for.
const (
	DefaultHost = "localhost"
	DefaultPort = 9000

	DefaultStepDelay       = 100 * time.Millisecond // stage settling time between steps
	DefaultExchangeTimeout = 10 * time.Second       // per send+receive on one connection
	DefaultConnectTimeout  = 3 * time.Second        // TCP dial timeout per command
)

// Configuration range limits.
const (
	MaxStepDelay = 60 * time.Second

	MinExchangeTimeout = 100 * time.Millisecond
	MaxExchangeTimeout = 120 * time.Second

	MinConnectTimeout = 100 * time.Millisecond
	MaxConnectTimeout = 120 * time.Second

	MaxReplySizeLimit = 1 << 20
)

// ControllerConfig holds all configuration for a scan controller.
type ControllerConfig struct {
	host string
	port int

	// stepDelay is the minimum pause between consecutive MOVE exchanges,
	// giving the physical stage settling time.
	stepDelay time.Duration

	// Per-exchange timeouts.
	exchangeTimeout time.Duration
	connectTimeout  time.Duration

	// maxReplySize caps MOVE/DONE reply payloads.
	maxReplySize int

	logger logger.Logger
}

// NewControllerConfig creates a new scan controller configuration.
//
// host and port locate the scan server. opts are functional options applied
// in order; see With* functions.
func NewControllerConfig(host string, port int, opts ...ControllerOption) (*ControllerConfig, error) {
	cfg := &ControllerConfig{
		stepDelay:       DefaultStepDelay,
		exchangeTimeout: DefaultExchangeTimeout,
		connectTimeout:  DefaultConnectTimeout,
		maxReplySize:    DefaultMaxReplySize,
		logger:          logger.GetLogger(),
	}

	if err := cfg.setHost(host); err != nil {
		return nil, err
	}
	if err := cfg.setPort(port); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *ControllerConfig) setHost(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		cfg.host = host
		return nil
	}

	host = strings.TrimPrefix(host, ".")
	host = strings.TrimSuffix(host, ".")
	if _, err := net.LookupHost(host); err == nil {
		cfg.host = host
		return nil
	}

	return fmt.Errorf("scan: invalid host %q", host)
}

func (cfg *ControllerConfig) setPort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("scan: port %d out of range [0, 65535]", port)
	}
	cfg.port = port

	return nil
}

// --- Getters ---

// Host returns the configured scan server host.
func (cfg *ControllerConfig) Host() string { return cfg.host }

// Port returns the configured scan server TCP port.
func (cfg *ControllerConfig) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *ControllerConfig) Addr() string { return fmt.Sprintf("%s:%d", cfg.host, cfg.port) }

// StepDelay returns the minimum inter-step delay.
func (cfg *ControllerConfig) StepDelay() time.Duration { return cfg.stepDelay }

// ExchangeTimeout returns the per-exchange read/write timeout.
func (cfg *ControllerConfig) ExchangeTimeout() time.Duration { return cfg.exchangeTimeout }

// ConnectTimeout returns the TCP dial timeout.
func (cfg *ControllerConfig) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// MaxReplySize returns the reply payload cap.
func (cfg *ControllerConfig) MaxReplySize() int { return cfg.maxReplySize }

// GetLogger returns the configured logger.
func (cfg *ControllerConfig) GetLogger() logger.Logger { return cfg.logger }

// --- ControllerOption ---

// ControllerOption is a functional option for configuring a ControllerConfig.
type ControllerOption interface {
	apply(*ControllerConfig) error
}

type ctrlOptFunc func(*ControllerConfig) error

func (f ctrlOptFunc) apply(cfg *ControllerConfig) error { return f(cfg) }

// WithStepDelay sets the minimum pause between consecutive MOVE exchanges.
// Must be in [0, 60s]. Zero disables the pause.
func WithStepDelay(d time.Duration) ControllerOption {
	return ctrlOptFunc(func(cfg *ControllerConfig) error {
		if d < 0 || d > MaxStepDelay {
			return fmt.Errorf("scan: step delay %v out of range [0, %v]", d, MaxStepDelay)
		}
		cfg.stepDelay = d

		return nil
	})
}

// WithExchangeTimeout sets the timeout applied to each command exchange
// (write plus read) on one connection. Must be in [100ms, 120s].
func WithExchangeTimeout(d time.Duration) ControllerOption {
	return ctrlOptFunc(func(cfg *ControllerConfig) error {
		if d < MinExchangeTimeout || d > MaxExchangeTimeout {
			return fmt.Errorf("scan: exchange timeout %v out of range [%v, %v]",
				d, MinExchangeTimeout, MaxExchangeTimeout)
		}
		cfg.exchangeTimeout = d

		return nil
	})
}

// WithConnectTimeout sets the TCP dial timeout for each command connection.
// Must be in [100ms, 120s].
func WithConnectTimeout(d time.Duration) ControllerOption {
	return ctrlOptFunc(func(cfg *ControllerConfig) error {
		if d < MinConnectTimeout || d > MaxConnectTimeout {
			return fmt.Errorf("scan: connect timeout %v out of range [%v, %v]",
				d, MinConnectTimeout, MaxConnectTimeout)
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithMaxReplySize sets the reply payload cap. Must be in [1, 1MiB].
func WithMaxReplySize(size int) ControllerOption {
	return ctrlOptFunc(func(cfg *ControllerConfig) error {
		if size < 1 || size > MaxReplySizeLimit {
			return fmt.Errorf("scan: max reply size %d out of range [1, %d]", size, MaxReplySizeLimit)
		}
		cfg.maxReplySize = size

		return nil
	})
}

// WithLogger sets the logger used for exchange diagnostics.
func WithLogger(l logger.Logger) ControllerOption {
	return ctrlOptFunc(func(cfg *ControllerConfig) error {
		if l == nil {
			return fmt.Errorf("scan: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
