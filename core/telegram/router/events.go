// Package router converts Telegram updates into dispatch events.
package router

import (
	"context"
	"errors"
	"time"

	"github.com/m3rciful/financebot/core/dispatch"
	"github.com/m3rciful/financebot/core/domain"
	tg "github.com/m3rciful/financebot/core/telegram"
	tghelpers "github.com/m3rciful/financebot/core/telegram/helpers"
	"github.com/m3rciful/financebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Submitter queues an event and delivers its reply; *dispatch.Pool implements it.
type Submitter interface {
	SubmitReply(ctx context.Context, ev dispatch.Event, r dispatch.Replier) error
}

// EventOptions holds the texts the router answers with by itself.
type EventOptions struct {
	// BusyText is sent when the user's queue is full.
	BusyText string
	// UnsupportedText answers non-text messages in private chats.
	UnsupportedText string
}

// EventRoutes builds the text route feeding sink and the catch-all routes for
// media. Commands arrive through OnText because no command endpoints are
// registered with telebot. Only private chats are served.
func EventRoutes(sink Submitter, replier dispatch.Replier, opts EventOptions) []tg.Route {
	text := func(c tele.Context) error {
		start := time.Now()
		id, ok := privateSender(c)
		if !ok {
			logRouteSummary(c, "event", start, "skip", nil)
			return nil
		}
		ctx := tghelpers.WithHandler(c, "event")
		ev := dispatch.ParseEvent(id, c.Text())
		err := sink.SubmitReply(ctx, ev, replier)
		switch {
		case err == nil:
			logRouteSummary(c, "event", start, "ok", nil)
			return nil
		case errors.Is(err, dispatch.ErrQueueFull):
			logRouteSummary(c, "event", start, "rate_limited", err)
			if opts.BusyText != "" {
				return replier.Reply(ctx, id, opts.BusyText)
			}
			return nil
		default:
			logRouteSummary(c, "event", start, "fail", err)
			return err
		}
	}

	media := func(c tele.Context) error {
		start := time.Now()
		id, ok := privateSender(c)
		if !ok || opts.UnsupportedText == "" {
			logRouteSummary(c, "unsupported", start, "skip", nil)
			return nil
		}
		err := replier.Reply(tghelpers.BuildContext(c), id, opts.UnsupportedText)
		logRouteSummary(c, "unsupported", start, "ok", err)
		return err
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	routes := []tg.Route{{Endpoint: tele.OnText, Handler: wrap(text)}}
	for _, ep := range []string{tele.OnPhoto, tele.OnDocument, tele.OnSticker, tele.OnVoice, tele.OnVideo} {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: wrap(media)})
	}
	return routes
}

func privateSender(c tele.Context) (domain.Identity, bool) {
	if chat := c.Chat(); chat == nil || chat.Type != tele.ChatPrivate {
		return domain.Identity{}, false
	}
	return tghelpers.Identity(c)
}
