package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/financebot/core/config"
	coretelegram "github.com/m3rciful/financebot/core/telegram"
)

type testConfig struct{ core coreconfig.Config }

func (c *testConfig) CoreConfig() *coreconfig.Config { return &c.core }

type testApp struct {
	services []Service
	closed   atomic.Bool
	tgCalls  atomic.Int32
}

func (a *testApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	a.tgCalls.Add(1)
	return coretelegram.RunOptions{}, nil
}
func (a *testApp) Services() []Service { return a.services }
func (a *testApp) Close(context.Context) error {
	a.closed.Store(true)
	return nil
}

func runWith(ctx context.Context, envFile string, cfg *testConfig, app *testApp, tg func(context.Context, coretelegram.RunOptions) error) error {
	return Run(Options{
		EnvFile:        envFile,
		LoadConfig:     func(string) (ConfigCarrier, error) { return cfg, nil },
		Bootstrap:      func(context.Context, ConfigCarrier) (App, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram:    tg,
		Context:        ctx,
	})
}

func TestRunStopsServicesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var stopped atomic.Int32
	app := &testApp{services: []Service{{
		Name: "janitor",
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			stopped.Add(1)
			return ctx.Err()
		},
	}}}
	cfg := &testConfig{core: coreconfig.Config{Telegram: coreconfig.TelegramConfig{RunMode: coreconfig.RunModeLongpoll}}}

	tg := func(ctx context.Context, _ coretelegram.RunOptions) error {
		cancel()
		<-ctx.Done()
		return nil
	}
	t.Setenv("CONFIG_PATH", "ignored.yaml")
	if err := runWith(ctx, filepath.Join(t.TempDir(), "missing.env"), cfg, app, tg); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stopped.Load() != 1 || !app.closed.Load() || app.tgCalls.Load() != 1 {
		t.Fatalf("stopped=%d closed=%v tg=%d", stopped.Load(), app.closed.Load(), app.tgCalls.Load())
	}
}

func TestRunPropagatesServiceFailure(t *testing.T) {
	boom := errors.New("listen failed")
	app := &testApp{services: []Service{
		{Name: "http", Run: func(context.Context) error { return boom }},
		{Name: "janitor", Run: func(ctx context.Context) error { <-ctx.Done(); return nil }},
	}}
	cfg := &testConfig{core: coreconfig.Config{Telegram: coreconfig.TelegramConfig{RunMode: coreconfig.RunModeDisabled}}}

	t.Setenv("CONFIG_PATH", "ignored.yaml")
	envFile := filepath.Join(t.TempDir(), "missing.env")
	done := make(chan error, 1)
	go func() { done <- runWith(context.Background(), envFile, cfg, app, nil) }()
	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("run err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after a service failure")
	}
	if app.tgCalls.Load() != 0 {
		t.Fatal("telegram must not start when disabled")
	}
}

func TestRunRequiresConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	os.Unsetenv("CONFIG_PATH")
	err := Run(Options{
		EnvFile:    filepath.Join(t.TempDir(), "missing.env"),
		LoadConfig: func(string) (ConfigCarrier, error) { return &testConfig{}, nil },
		Bootstrap:  func(context.Context, ConfigCarrier) (App, error) { return &testApp{}, nil },
	})
	if err == nil {
		t.Fatal("expected error without a config path")
	}
}
