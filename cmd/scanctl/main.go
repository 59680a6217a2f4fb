// Command scanctl runs one scan experiment against a scan server: INIT to
// learn the step count, one MOVE per scan step, then DONE.
//
// Configuration comes from SCAN_* environment variables, overridable with
// flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/peaklab/scanctl/logger"
	"github.com/peaklab/scanctl/scan"
)

type config struct {
	Host            string        `env:"SCAN_HOST" envDefault:"localhost"`
	Port            int           `env:"SCAN_PORT" envDefault:"9000"`
	StepDelay       time.Duration `env:"SCAN_STEP_DELAY" envDefault:"100ms"`
	ExchangeTimeout time.Duration `env:"SCAN_EXCHANGE_TIMEOUT" envDefault:"10s"`
	ConnectTimeout  time.Duration `env:"SCAN_CONNECT_TIMEOUT" envDefault:"3s"`
	Debug           bool          `env:"SCAN_DEBUG"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal("failed to parse environment", "error", err)
	}

	flag.StringVar(&cfg.Host, "host", cfg.Host, "scan server host")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "scan server port")
	flag.DurationVar(&cfg.StepDelay, "step-delay", cfg.StepDelay, "minimum pause between scan steps")
	flag.DurationVar(&cfg.ExchangeTimeout, "exchange-timeout", cfg.ExchangeTimeout, "per-command exchange timeout")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	flag.Parse()

	if cfg.Debug {
		logger.SetLevel(logger.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := scan.RunExperiment(ctx, cfg.Host, cfg.Port,
		scan.WithStepDelay(cfg.StepDelay),
		scan.WithExchangeTimeout(cfg.ExchangeTimeout),
		scan.WithConnectTimeout(cfg.ConnectTimeout),
	)
	if err != nil {
		if res != nil {
			logger.Error("experiment failed",
				"error", err,
				"steps_completed", res.StepsCompleted,
				"state", res.State.String())
		} else {
			logger.Error("experiment failed", "error", err)
		}
		os.Exit(1)
	}

	fmt.Printf("completed %d of %d scan steps\n", res.StepsCompleted, res.TotalSteps)
}
