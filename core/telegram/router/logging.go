package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/financebot/core/logger"
	tghelpers "github.com/m3rciful/financebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// logRouteSummary writes one line per routed update. Handler outcomes are
// logged by the dispatcher; this line only covers the transport hop.
func logRouteSummary(c tele.Context, route string, start time.Time, status string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, route)
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("route", route),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
	}
	attrs = append(attrs, extras...)
	if level == slog.LevelDebug && !logger.ShouldSampleDebug() {
		return
	}
	logger.LogEvent(ctx, logger.TG, level, "update.routed", attrs...)
}
