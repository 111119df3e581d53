package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/m3rciful/relaybot/core/logger"
)

// Service is a long-running component started next to the bot, such as the metrics listener.
type Service interface {
	Name() string
	Run(ctx context.Context) error
}

// ServiceFunc adapts a bare function to the Service interface.
type ServiceFunc struct {
	ServiceName string
	Fn          func(ctx context.Context) error
}

// Name returns the service name used in logs.
func (f ServiceFunc) Name() string { return f.ServiceName }

// Run executes the underlying function.
func (f ServiceFunc) Run(ctx context.Context) error { return f.Fn(ctx) }

// Group runs services in the background until their context ends.
type Group struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// Start launches every service on its own goroutine. A service that fails
// is logged and does not stop the others.
func Start(ctx context.Context, services ...Service) *Group {
	ctx, cancel := context.WithCancel(ctx)
	g := &Group{cancel: cancel}
	for _, svc := range services {
		if svc == nil {
			continue
		}
		g.wg.Add(1)
		go func(svc Service) {
			defer g.wg.Done()
			if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(ctx, "app", "service.fail",
					slog.String("service", svc.Name()),
					slog.String("err", err.Error()),
				)
				g.mu.Lock()
				g.errs = append(g.errs, err)
				g.mu.Unlock()
			}
		}(svc)
	}
	return g
}

// Stop cancels all services, waits for them and returns their joined errors.
func (g *Group) Stop() error {
	if g == nil {
		return nil
	}
	g.cancel()
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
