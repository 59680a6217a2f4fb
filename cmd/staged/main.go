// Command staged runs a scan server backed by a simulated motion stage,
// for bench testing controllers without the physical instrument.
//
// Configuration comes from STAGE_* environment variables, overridable with
// flags.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/peaklab/scanctl/logger"
	"github.com/peaklab/scanctl/stage"
)

type config struct {
	Host   string        `env:"STAGE_HOST" envDefault:"localhost"`
	Port   int           `env:"STAGE_PORT" envDefault:"9000"`
	Steps  int           `env:"STAGE_STEPS" envDefault:"10"`
	Settle time.Duration `env:"STAGE_SETTLE" envDefault:"100ms"`
	Debug  bool          `env:"STAGE_DEBUG"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal("failed to parse environment", "error", err)
	}

	flag.StringVar(&cfg.Host, "host", cfg.Host, "bind host")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "bind port")
	flag.IntVar(&cfg.Steps, "steps", cfg.Steps, "scan steps announced on INIT")
	flag.DurationVar(&cfg.Settle, "settle", cfg.Settle, "simulated settling time per move")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	flag.Parse()

	if cfg.Debug {
		logger.SetLevel(logger.DebugLevel)
	}

	srvCfg, err := stage.NewServerConfig(cfg.Host, cfg.Port)
	if err != nil {
		logger.Fatal("invalid server config", "error", err)
	}

	srv, err := stage.NewServer(srvCfg, stage.NewSimStage(int32(cfg.Steps), cfg.Settle))
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = srv.ListenAndServe(ctx)
	if err != nil && !errors.Is(err, stage.ErrServerClosed) && !errors.Is(err, context.Canceled) {
		logger.Fatal("server failed", "error", err)
	}
}
