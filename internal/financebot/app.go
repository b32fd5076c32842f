// Package financebot wires the finance assistant: commands, the expenses
// questionnaire and both transports on top of the core packages.
package financebot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/m3rciful/financebot/core/bootstrap"
	corecmd "github.com/m3rciful/financebot/core/cmd"
	"github.com/m3rciful/financebot/core/dialogue"
	"github.com/m3rciful/financebot/core/dispatch"
	"github.com/m3rciful/financebot/core/httpapi"
	"github.com/m3rciful/financebot/core/logger"
	"github.com/m3rciful/financebot/core/provider"
	"github.com/m3rciful/financebot/core/store"
	coretelegram "github.com/m3rciful/financebot/core/telegram"
	"github.com/m3rciful/financebot/core/telegram/keyboard"
	"github.com/m3rciful/financebot/core/telegram/router"
	"github.com/m3rciful/financebot/migrations"
)

// DefaultFetchCommands is used when the config declares none: the USD and
// EUR rates in RUB from exchangerate-api.com.
func DefaultFetchCommands() []provider.CommandConfig {
	return []provider.CommandConfig{{
		Name:        "rates",
		Description: "Курс валют",
		Aliases:     []string{LabelRates},
		URL:         `https://v6.exchangerate-api.com/v6/{{env "EXCHANGE_RATE_API_KEY"}}/latest/USD`,
		Reply: "💵 1 USD = {{printf \"%.2f\" .Data.conversion_rates.RUB}} RUB\n" +
			"💶 1 EUR = {{printf \"%.2f\" (div .Data.conversion_rates.RUB .Data.conversion_rates.EUR)}} RUB",
		FailureText: "Не удалось получить данные о курсе валют!",
	}}
}

// App holds the wired components of one bot process.
type App struct {
	cfg      *Config
	store    store.Store
	closeFn  func() error
	machine  *dialogue.Machine
	handlers *Handlers
	registry *dispatch.Registry
	pool     *dispatch.Pool
	texts    Texts
}

// Bootstrap runs the core bootstrap for cfg and builds the App.
func Bootstrap(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.App, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("financebot: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, err
	}
	app, err := New(cfg, res.Store, nil)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	app.closeFn = res.Close
	return app, nil
}

// New wires the app over st. fetcher may be nil to use the default HTTP client.
func New(cfg *Config, st store.Store, fetcher provider.Fetcher) (*App, error) {
	spec, err := cfg.Spec()
	if err != nil {
		return nil, err
	}
	if fetcher == nil {
		fetcher = provider.NewHTTPFetcher(nil)
	}
	fetchCfgs := cfg.FetchCommands
	if fetchCfgs == nil {
		fetchCfgs = DefaultFetchCommands()
	}
	fetches := make([]*provider.Command, 0, len(fetchCfgs))
	var fallback *provider.Command
	for _, fc := range fetchCfgs {
		cmd, err := provider.NewCommand(fc, fetcher)
		if err != nil {
			return nil, err
		}
		if fc.Name == cfg.TextFallback {
			fallback = cmd
		}
		fetches = append(fetches, cmd)
	}

	texts := DefaultTexts()
	machine := dialogue.NewMachine(spec, st)
	flow := dialogue.NewFlow(machine, DialogueMessages(cfg.Dialogue.ShowSummary))
	opts := []HandlersOption{WithFetchCommands(fetches...)}
	if fallback != nil {
		opts = append(opts, WithTextFallback(fallback))
	}
	handlers := NewHandlers(st, flow, texts, opts...)
	reg := dispatch.NewRegistry()
	if err := handlers.Install(reg); err != nil {
		return nil, err
	}

	d := dispatch.New(reg, flow, dispatch.Options{
		AdminID:     cfg.Telegram.AdminID,
		UnknownText: texts.Unknown,
		FailureText: texts.Failure,
	})
	pool := dispatch.NewPool(d, dispatch.PoolOptions{
		Workers:   cfg.Dispatch.Workers,
		QueueSize: cfg.Dispatch.QueueSize,
		Timeout:   cfg.Dispatch.Timeout,
	})

	logger.Component("app").Info("wired",
		slog.String("event", "app.wire"),
		slog.Int("count", len(reg.List(false))),
		slog.Int("steps", spec.Len()),
		slog.String("driver", cfg.Database.Driver),
	)
	return &App{
		cfg:      cfg,
		store:    st,
		machine:  machine,
		handlers: handlers,
		registry: reg,
		pool:     pool,
		texts:    texts,
	}, nil
}

// Pool is the per-user event pool every transport submits to.
func (a *App) Pool() *dispatch.Pool { return a.pool }

// Machine exposes the questionnaire sessions.
func (a *App) Machine() *dialogue.Machine { return a.machine }

// HTTPHandler builds the HTTP API over the app.
func (a *App) HTTPHandler() http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Events:     a.pool,
		Profiles:   a.store,
		Sessions:   a.machine,
		AdminToken: a.cfg.HTTP.AdminToken,
	})
}

// TelegramRunOptions wires the Telegram transport to the pool.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		Config:      &a.cfg.Config,
		Commands:    coretelegram.MenuCommands(a.registry),
		Menu:        keyboard.ReplyButtons(a.handlers.MenuRows()...),
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Config, nil),
		Routes: func(rt coretelegram.Runtime) []coretelegram.Route {
			return router.EventRoutes(a.pool, rt.Replier, router.EventOptions{
				BusyText:        a.texts.Busy,
				UnsupportedText: a.texts.Unsupported,
			})
		},
	}, nil
}

// Services returns the background tasks: the idle-session janitor and the
// HTTP server, each only when configured.
func (a *App) Services() []corecmd.Service {
	var out []corecmd.Service
	if idle := a.cfg.Dialogue.IdleTimeout; idle > 0 {
		out = append(out, corecmd.Service{
			Name: "janitor",
			Run: func(ctx context.Context) error {
				return a.machine.RunJanitor(ctx, idle, a.cfg.Dialogue.JanitorInterval)
			},
		})
	}
	if a.cfg.HTTP.Listen != "" {
		if a.cfg.HTTP.AdminToken == "" {
			logger.HTTP.Warn("admin api has no token",
				slog.String("event", "http.auth"),
				slog.String("listen", a.cfg.HTTP.Listen),
			)
		}
		srv := httpapi.NewServer(a.cfg.HTTP, a.HTTPHandler())
		out = append(out, corecmd.Service{Name: "http", Run: srv.Run})
	}
	return out
}

// Close drains the pool and closes the store.
func (a *App) Close(ctx context.Context) error {
	poolErr := a.pool.Close(ctx)
	logger.Component("app").Info("pool closed",
		slog.String("event", "app.close"),
		slog.String("status", logger.Status(poolErr)),
		slog.Int("queued", a.pool.Pending()),
		slog.Uint64("failed", a.pool.Failed()),
		slog.Int("count", a.machine.Active()),
	)
	var storeErr error
	if a.closeFn != nil {
		storeErr = a.closeFn()
	}
	return errors.Join(poolErr, storeErr)
}
