package middleware

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

// fakeContext implements the few tele.Context methods the middleware touches.
type fakeContext struct {
	tele.Context
	upd   tele.Update
	store map[string]interface{}
}

func newFakeContext(updateID int, userID int64, text string) *fakeContext {
	user := &tele.User{ID: userID}
	return &fakeContext{
		upd: tele.Update{ID: updateID, Message: &tele.Message{
			Sender: user,
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
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

func TestRateLimitPerUser(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Now:       func() time.Time { return clock },
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	handled := 0
	h := mw(func(tele.Context) error { handled++; return nil })

	_ = h(newFakeContext(1, 10, "a"))
	_ = h(newFakeContext(2, 10, "b"))
	_ = h(newFakeContext(3, 11, "c"))
	clock = clock.Add(2 * time.Second)
	_ = h(newFakeContext(4, 10, "d"))

	if handled != 3 || limited != 1 {
		t.Fatalf("handled=%d limited=%d, want 3 and 1", handled, limited)
	}
}

func TestRateLimitExclusions(t *testing.T) {
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"message": {}},
	})
	handled := 0
	h := mw(func(tele.Context) error { handled++; return nil })
	for i := 0; i < 3; i++ {
		_ = h(newFakeContext(i, 10, "x"))
	}
	if handled != 3 {
		t.Fatalf("handled = %d, excluded messages must pass", handled)
	}
}

func TestLoggerMiddlewareSetsRID(t *testing.T) {
	c := newFakeContext(5, 36, "hi")
	var rid string
	_ = LoggerMiddleware(func(c tele.Context) error {
		rid, _ = c.Get("rid").(string)
		return nil
	})(c)
	if rid != "5:36:36" {
		t.Fatalf("rid = %q", rid)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(newFakeContext(1, 1, "x")); err != nil {
		t.Fatalf("recover returned %v", err)
	}
}
