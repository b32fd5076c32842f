// Package cmd holds the process runner shared by bot binaries: config
// loading, bootstrap, the Telegram runtime and background services.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/m3rciful/financebot/core/buildinfo"
	coreconfig "github.com/m3rciful/financebot/core/config"
	"github.com/m3rciful/financebot/core/logger"
	coretelegram "github.com/m3rciful/financebot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// Service is a background task that runs until ctx is cancelled.
type Service struct {
	Name string
	Run  func(ctx context.Context) error
}

// App is what Bootstrap hands back to the runner.
type App interface {
	// TelegramRunOptions is only called when the Telegram transport is enabled.
	TelegramRunOptions() (coretelegram.RunOptions, error)
	Services() []Service
	// Close releases resources once every service has stopped.
	Close(ctx context.Context) error
}

// Options describe how to load configuration, bootstrap the app, and run it.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string
	// EnvFile is loaded into the environment when present; default ".env".
	EnvFile string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (App, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	// Context is the parent of the signal context; nil means Background.
	Context context.Context
}

// Run loads configuration, bootstraps the app and runs the Telegram runtime
// next to the app services until a shutdown signal or the first failure.
func Run(opts Options) error {
	if opts.LoadConfig == nil {
		return fmt.Errorf("cmd: LoadConfig is required")
	}
	if opts.Bootstrap == nil {
		return fmt.Errorf("cmd: Bootstrap is required")
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env file %s ignored: %v", envFile, err)
	}

	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" {
		cfgPath = opts.DefaultConfigPath
	}
	if cfgPath == "" {
		return fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := opts.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	core := cfg.CoreConfig()
	if core == nil {
		return fmt.Errorf("cmd: loaded config is missing core configuration")
	}

	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	application, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	services := application.Services()
	if core.Telegram.Enabled() {
		runOpts, err := application.TelegramRunOptions()
		if err != nil {
			_ = application.Close(context.Background())
			return fmt.Errorf("cmd: telegram options build failed: %w", err)
		}
		run := opts.RunTelegram
		if run == nil {
			run = coretelegram.RunTelegram
		}
		services = append(services, Service{
			Name: "telegram",
			Run:  func(ctx context.Context) error { return run(ctx, runOpts) },
		})
	}

	app := logger.Component("app")
	app.Info("app ready",
		slog.String("event", "ready"),
		slog.String("version", buildinfo.String()),
		slog.Int("count", len(services)),
		slog.Duration("startup_duration", logger.Took(startedAt)),
	)

	runErr := runServices(ctx, services)

	app.Info("shutting down...", slog.String("event", "shutdown"))
	closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	closeErr := application.Close(closeCtx)
	return errors.Join(runErr, closeErr)
}

// runServices runs every service until ctx ends or one of them fails; a
// failure cancels the rest. Clean exits on cancellation are not errors.
func runServices(ctx context.Context, services []Service) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, svc := range services {
		if svc.Run == nil {
			continue
		}
		wg.Add(1)
		go func(svc Service) {
			defer wg.Done()
			err := svc.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.L.Error("service failed",
					slog.String("event", "service.stop"),
					slog.String("status", "fail"),
					slog.String("handler", svc.Name),
					slog.String("err", err.Error()),
				)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", svc.Name, err))
				mu.Unlock()
			}
			cancel()
		}(svc)
	}
	wg.Wait()
	return errors.Join(errs...)
}
