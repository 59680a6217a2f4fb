package stage

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/peaklab/scanctl/logger"
)

// Default configuration values.
const (
	DefaultHost = "localhost"
	DefaultPort = 9000

	DefaultAcceptTimeout = 1 * time.Second // accept deadline per iteration
	DefaultReadTimeout   = 5 * time.Second // per-connection command read
	DefaultWriteTimeout  = 5 * time.Second // per-connection reply write

	DefaultMaxCommandSize = 1024
)

// Configuration range limits.
const (
	MinIOTimeout = 100 * time.Millisecond
	MaxIOTimeout = 120 * time.Second

	MaxCommandSizeLimit = 1 << 20
)

// ServerConfig holds all configuration for a scan server.
type ServerConfig struct {
	host string
	port int

	acceptTimeout time.Duration
	readTimeout   time.Duration
	writeTimeout  time.Duration

	maxCommandSize int

	logger logger.Logger
}

// NewServerConfig creates a new scan server configuration.
//
// host and port are the bind address; port 0 selects an ephemeral port.
func NewServerConfig(host string, port int, opts ...ServerOption) (*ServerConfig, error) {
	cfg := &ServerConfig{
		acceptTimeout:  DefaultAcceptTimeout,
		readTimeout:    DefaultReadTimeout,
		writeTimeout:   DefaultWriteTimeout,
		maxCommandSize: DefaultMaxCommandSize,
		logger:         logger.GetLogger(),
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

func (cfg *ServerConfig) setHost(host string) error {
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

	return fmt.Errorf("stage: invalid host %q", host)
}

func (cfg *ServerConfig) setPort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("stage: port %d out of range [0, 65535]", port)
	}
	cfg.port = port

	return nil
}

// Host returns the configured bind host.
func (cfg *ServerConfig) Host() string { return cfg.host }

// Port returns the configured bind port.
func (cfg *ServerConfig) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", cfg.host, cfg.port) }

// AcceptTimeout returns the per-iteration accept deadline.
func (cfg *ServerConfig) AcceptTimeout() time.Duration { return cfg.acceptTimeout }

// ReadTimeout returns the per-connection command read timeout.
func (cfg *ServerConfig) ReadTimeout() time.Duration { return cfg.readTimeout }

// WriteTimeout returns the per-connection reply write timeout.
func (cfg *ServerConfig) WriteTimeout() time.Duration { return cfg.writeTimeout }

// MaxCommandSize returns the command payload cap.
func (cfg *ServerConfig) MaxCommandSize() int { return cfg.maxCommandSize }

// GetLogger returns the configured logger.
func (cfg *ServerConfig) GetLogger() logger.Logger { return cfg.logger }

// ServerOption is a functional option for configuring a ServerConfig.
type ServerOption interface {
	apply(*ServerConfig) error
}

type srvOptFunc func(*ServerConfig) error

func (f srvOptFunc) apply(cfg *ServerConfig) error { return f(cfg) }

// WithAcceptTimeout sets the accept deadline applied per accept-loop
// iteration. Must be in [100ms, 120s].
func WithAcceptTimeout(d time.Duration) ServerOption {
	return srvOptFunc(func(cfg *ServerConfig) error {
		if d < MinIOTimeout || d > MaxIOTimeout {
			return fmt.Errorf("stage: accept timeout %v out of range [%v, %v]", d, MinIOTimeout, MaxIOTimeout)
		}
		cfg.acceptTimeout = d

		return nil
	})
}

// WithReadTimeout sets the per-connection command read timeout.
// Must be in [100ms, 120s].
func WithReadTimeout(d time.Duration) ServerOption {
	return srvOptFunc(func(cfg *ServerConfig) error {
		if d < MinIOTimeout || d > MaxIOTimeout {
			return fmt.Errorf("stage: read timeout %v out of range [%v, %v]", d, MinIOTimeout, MaxIOTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithWriteTimeout sets the per-connection reply write timeout.
// Must be in [100ms, 120s].
func WithWriteTimeout(d time.Duration) ServerOption {
	return srvOptFunc(func(cfg *ServerConfig) error {
		if d < MinIOTimeout || d > MaxIOTimeout {
			return fmt.Errorf("stage: write timeout %v out of range [%v, %v]", d, MinIOTimeout, MaxIOTimeout)
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithMaxCommandSize sets the command payload cap. Must be in [1, 1MiB].
func WithMaxCommandSize(size int) ServerOption {
	return srvOptFunc(func(cfg *ServerConfig) error {
		if size < 1 || size > MaxCommandSizeLimit {
			return fmt.Errorf("stage: max command size %d out of range [1, %d]", size, MaxCommandSizeLimit)
		}
		cfg.maxCommandSize = size

		return nil
	})
}

// WithLogger sets the logger used for command diagnostics.
func WithLogger(l logger.Logger) ServerOption {
	return srvOptFunc(func(cfg *ServerConfig) error {
		if l == nil {
			return fmt.Errorf("stage: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
