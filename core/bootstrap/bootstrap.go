package bootstrap

import (
	"fmt"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/metrics"
	"github.com/m3rciful/relaybot/core/telegram/state"
)

// Options control the bootstrap pipeline.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	NewStore   func(coreconfig.SessionConfig) state.Store
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Metrics  *metrics.Collector
	Sessions state.Store
}

// Run initializes the logger, the metrics collector and the session store.
// The collector is installed as the process default so router summaries record into it.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	newStore := opts.NewStore
	if newStore == nil {
		newStore = func(c coreconfig.SessionConfig) state.Store {
			return state.NewMemoryStore(c.Capacity, c.TTL)
		}
	}
	sessions := newStore(opts.Config.Session)
	if sessions == nil {
		return nil, fmt.Errorf("bootstrap: session store initialization failed")
	}

	collector := metrics.New()
	collector.RegisterSessionGauge(func() float64 { return float64(sessions.Len()) })
	metrics.SetDefault(collector)

	return &Result{Metrics: collector, Sessions: sessions}, nil
}
