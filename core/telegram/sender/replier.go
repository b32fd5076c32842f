package sender

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/financebot/core/domain"
	"github.com/m3rciful/financebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// MaxMessageRunes is the Bot API limit for a single text message.
const MaxMessageRunes = 4096

// API is the part of *tele.Bot the replier uses.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Replier delivers dispatch replies to the private chat of an identity.
// In private chats the chat id equals the user id.
type Replier struct {
	api  API
	disp *Dispatcher
	opts *tele.SendOptions
}

// NewReplier sends through disp when set, directly otherwise. markup, when
// set, is attached to every message.
func NewReplier(api API, disp *Dispatcher, markup *tele.ReplyMarkup) *Replier {
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if markup != nil {
		opts.ReplyMarkup = markup
	}
	return &Replier{api: api, disp: disp, opts: opts}
}

// Reply queues text for delivery. Long texts are split into several messages
// sent in order by one job; a retry resumes at the first unsent part.
func (r *Replier) Reply(ctx context.Context, id domain.Identity, text string) error {
	to := tele.ChatID(id.ID)
	parts := splitText(text, MaxMessageRunes)
	sent := 0
	return r.send(ctx, "send.text", func() error {
		for sent < len(parts) {
			if _, err := r.api.Send(to, parts[sent], r.opts); err != nil {
				return err
			}
			sent++
		}
		return nil
	})
}

func (r *Replier) send(ctx context.Context, action string, run func() error) error {
	if r.disp == nil {
		return run()
	}
	err := r.disp.Enqueue(ctx, action, run)
	if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrQueueClosed) {
		logger.Warn(ctx, component, "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// splitText cuts s into chunks of at most limit runes, preferring line breaks.
func splitText(s string, limit int) []string {
	if utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}
	var parts []string
	runes := []rune(s)
	for len(runes) > limit {
		cut := limit
		if nl := strings.LastIndex(string(runes[:limit]), "\n"); nl > 0 {
			cut = utf8.RuneCountInString(string(runes[:limit])[:nl]) + 1
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
