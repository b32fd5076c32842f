package router

import (
	"context"
	"testing"

	"github.com/m3rciful/financebot/core/dispatch"
	"github.com/m3rciful/financebot/core/domain"
	tg "github.com/m3rciful/financebot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	upd   tele.Update
	store map[string]interface{}
}

func newFakeContext(userID int64, chatType tele.ChatType, text string) *fakeContext {
	return &fakeContext{
		upd: tele.Update{ID: 1, Message: &tele.Message{
			Sender: &tele.User{ID: userID, FirstName: "Ann", LastName: "Lee"},
			Chat:   &tele.Chat{ID: userID, Type: chatType},
			Text:   text,
		}},
		store: map[string]interface{}{},
	}
}

func (c *fakeContext) Update() tele.Update { return c.upd }
func (c *fakeContext) Sender() *tele.User { return c.upd.Message.Sender }
func (c *fakeContext) Chat() *tele.Chat { return c.upd.Message.Chat }
func (c *fakeContext) Text() string { return c.upd.Message.Text }
func (c *fakeContext) Get(key string) interface{} { return c.store[key] }
func (c *fakeContext) Set(key string, val interface{}) { c.store[key] = val }

type fakeSink struct {
	events []dispatch.Event
	err    error
}

func (s *fakeSink) SubmitReply(_ context.Context, ev dispatch.Event, _ dispatch.Replier) error {
	s.events = append(s.events, ev)
	return s.err
}

type replies []string

func (r *replies) Reply(_ context.Context, _ domain.Identity, text string) error {
	*r = append(*r, text)
	return nil
}

func textRoute(t *testing.T, routes []tg.Route) tele.HandlerFunc {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == tele.OnText {
			return r.Handler
		}
	}
	t.Fatal("no OnText route")
	return nil
}

func TestEventRouteParsesCommands(t *testing.T) {
	sink := &fakeSink{}
	var out replies
	h := textRoute(t, EventRoutes(sink, &out, EventOptions{}))

	if err := h(newFakeContext(7, tele.ChatPrivate, "/Start@finance_bot now")); err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("events = %v", sink.events)
	}
	ev := sink.events[0]
	if ev.Kind != dispatch.CommandEvent || ev.Command.Name != "start" || ev.Identity.ID != 7 || ev.Identity.Name != "Ann Lee" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestEventRouteIgnoresGroups(t *testing.T) {
	sink := &fakeSink{}
	var out replies
	h := textRoute(t, EventRoutes(sink, &out, EventOptions{}))
	_ = h(newFakeContext(7, tele.ChatGroup, "hello"))
	if len(sink.events) != 0 {
		t.Fatalf("group message dispatched: %v", sink.events)
	}
}

func TestEventRouteBusy(t *testing.T) {
	sink := &fakeSink{err: dispatch.ErrQueueFull}
	var out replies
	h := textRoute(t, EventRoutes(sink, &out, EventOptions{BusyText: "slow down"}))
	if err := h(newFakeContext(7, tele.ChatPrivate, "hi")); err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(out) != 1 || out[0] != "slow down" {
		t.Fatalf("replies = %v", out)
	}
}
