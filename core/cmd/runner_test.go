package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	coretelegram "github.com/m3rciful/relaybot/core/telegram"
)

type fakeApp struct {
	opts coretelegram.RunOptions
	err  error
}

func (f fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) { return f.opts, f.err }

func TestRunWiresLifecycle(t *testing.T) {
	t.Setenv("RELAY_TEST_CONFIG", "")
	cfg := &coreconfig.Config{}
	var events []string

	err := Run(Options{
		ConfigEnvVar:      "RELAY_TEST_CONFIG",
		DefaultConfigPath: "missing.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			assert.Equal(t, "missing.yaml", path)
			return cfg, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			return fakeApp{opts: coretelegram.RunOptions{
				Config: cfg,
				OnStart: func(context.Context, coretelegram.Runtime) error {
					events = append(events, "start")
					return nil
				},
				OnStop: func(context.Context, coretelegram.Runtime) error {
					events = append(events, "stop")
					return nil
				},
			}}, nil
		},
		ShutdownLogger: func() error {
			events = append(events, "logger")
			return nil
		},
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			rt := coretelegram.Runtime{Registry: coretelegram.NewRegistry()}
			require.NoError(t, opts.OnStart(ctx, rt))
			events = append(events, "run")
			return opts.OnStop(ctx, rt)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "run", "stop", "logger"}, events)
}

func TestRunEnvOverridesPath(t *testing.T) {
	t.Setenv("RELAY_TEST_CONFIG", "/etc/relay.yaml")
	var got string
	boom := errors.New("boom")

	err := Run(Options{
		ConfigEnvVar:      "RELAY_TEST_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			got = path
			return nil, boom
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) { return nil, nil },
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "/etc/relay.yaml", got)
}

func TestRunErrors(t *testing.T) {
	assert.Error(t, Run(Options{}))
	assert.Error(t, Run(Options{LoadConfig: func(string) (ConfigCarrier, error) { return nil, nil }}))

	boom := errors.New("bootstrap")
	err := Run(Options{
		LoadConfig:     func(string) (ConfigCarrier, error) { return &coreconfig.Config{}, nil },
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return nil, boom },
		ShutdownLogger: func() error { return nil },
	})
	assert.ErrorIs(t, err, boom)

	optsErr := errors.New("options")
	err = Run(Options{
		LoadConfig:     func(string) (ConfigCarrier, error) { return &coreconfig.Config{}, nil },
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return fakeApp{err: optsErr}, nil },
		ShutdownLogger: func() error { return nil },
	})
	assert.ErrorIs(t, err, optsErr)
}
