// Package app composes the relay bot from the core building blocks.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/relaybot/core/bootstrap"
	"github.com/m3rciful/relaybot/core/cmd"
	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/metrics"
	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/router"
	"github.com/m3rciful/relaybot/core/telegram/sender"
	"github.com/m3rciful/relaybot/internal/relay"
)

// App holds the wired relay bot.
type App struct {
	cfg      *coreconfig.Config
	infra    *bootstrap.Result
	ctrl     *relay.Controller
	registry *tg.Registry

	services *bootstrap.Group
}

// Options overrides parts of the bootstrap, mostly for tests.
type Options struct {
	Bootstrap bootstrap.Options
}

// New implements the cmd.Options.Bootstrap hook.
func New(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	return Build(carrier.CoreConfig(), Options{})
}

// Build initializes infrastructure, the conversation controller and the handler registry.
func Build(cfg *coreconfig.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	bo := opts.Bootstrap
	bo.Config = cfg
	infra, err := bootstrap.Run(bo)
	if err != nil {
		return nil, err
	}

	ctrl, err := relay.NewController(infra.Sessions, relay.Options{
		AdminChatID: cfg.Telegram.AdminChatID,
		AutoReply:   cfg.Relay.AutoReply,
		AdminLang:   cfg.Relay.AdminLang,
		Metrics:     infra.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	reg := tg.NewRegistry()
	if err := relay.NewHandlers(ctrl).Register(reg); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	return &App{cfg: cfg, infra: infra, ctrl: ctrl, registry: reg}, nil
}

// Registry returns the command and callback registry.
func (a *App) Registry() *tg.Registry { return a.registry }

// TelegramRunOptions wires routes, middlewares and the metrics listener for RunTelegram.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	adminID := a.cfg.Telegram.AdminChatID

	var routes []tg.Route
	routes = append(routes, router.CommandRoutes(a.registry, router.CommandRouteOptions{AdminID: adminID})...)
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))
	routes = append(routes, router.MessageRoutes(a.registry, router.MessageOptions{AdminID: adminID})...)

	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		DispatcherOptions: sender.Options{
			MaxRetries: 2,
		},
		OnStart: a.start,
		OnStop:  a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, _ tg.Runtime) error {
	var services []bootstrap.Service
	if addr := a.cfg.Metrics.Listen; addr != "" {
		collector := a.infra.Metrics
		services = append(services, bootstrap.ServiceFunc{
			ServiceName: "metrics",
			Fn: func(ctx context.Context) error {
				return metrics.Serve(ctx, addr, collector)
			},
		})
	}
	a.services = bootstrap.Start(ctx, services...)
	logger.Info(ctx, "app", "services.start", slog.Int("services", len(services)))
	return nil
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	err := a.services.Stop()
	a.services = nil
	st := a.ctrl.Stats()
	logger.Info(ctx, "app", "services.stop",
		slog.Uint64("forwarded", st.Forwarded),
		slog.Uint64("forward_failed", st.ForwardFailed),
	)
	return err
}
