package sender

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/financebot/core/domain"

	tele "gopkg.in/telebot.v4"
)

type fakeAPI struct {
	mu    sync.Mutex
	sent  []string
	to    []string
	fails int
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return nil, &tele.Error{Code: 502, Description: "Bad Gateway"}
	}
	f.sent = append(f.sent, what.(string))
	f.to = append(f.to, to.Recipient())
	return &tele.Message{}, nil
}

func (f *fakeAPI) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestReplierSendsToPrivateChat(t *testing.T) {
	api := &fakeAPI{}
	r := NewReplier(api, nil, nil)
	if err := r.Reply(context.Background(), domain.Identity{ID: 42}, "hello"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if got := api.messages(); len(got) != 1 || got[0] != "hello" || api.to[0] != "42" {
		t.Fatalf("sent = %v to %v", got, api.to)
	}
}

func TestReplierRetriesThroughDispatcher(t *testing.T) {
	api := &fakeAPI{fails: 1}
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	r := NewReplier(api, d, nil)
	if err := r.Reply(context.Background(), domain.Identity{ID: 1}, "retry me"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	d.Close()
	if got := api.messages(); len(got) != 1 || got[0] != "retry me" {
		t.Fatalf("sent = %v", got)
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("error count = %d", d.ErrorCount())
	}
}

func TestDispatcherCountsPermanentFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	calls := 0
	if err := d.Enqueue(context.Background(), "send.text", func() error {
		calls++
		return errors.New("telegram: chat not found (400)")
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.Close()
	if calls != 1 {
		t.Fatalf("calls = %d, want no retries for a permanent error", calls)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("error count = %d", d.ErrorCount())
	}
	if err := d.Enqueue(context.Background(), "send.text", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("enqueue after close = %v", err)
	}
}

func TestSplitText(t *testing.T) {
	if got := splitText("short", 10); len(got) != 1 {
		t.Fatalf("short split = %v", got)
	}
	text := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	got := splitText(text, 10)
	if len(got) != 2 || got[0] != "aaaaaa" || got[1] != "bbbbbb" {
		t.Fatalf("split on newline = %q", got)
	}
	got = splitText(strings.Repeat("я", 25), 10)
	if len(got) != 3 || len([]rune(got[2])) != 5 {
		t.Fatalf("rune split = %q", got)
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123:ABC-def/sendMessage": timeout`)
	if got := sanitizeErrorMessage(err); strings.Contains(got, "ABC") {
		t.Fatalf("token leaked: %q", got)
	}
}

type flakyAPI struct {
	mu     sync.Mutex
	calls  int
	failAt int
	sent   []string
}

func (f *flakyAPI) Send(_ tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == f.failAt {
		return nil, &tele.Error{Code: 502, Description: "Bad Gateway"}
	}
	f.sent = append(f.sent, what.(string))
	return &tele.Message{}, nil
}

func TestReplierKeepsPartsInOrder(t *testing.T) {
	api := &flakyAPI{failAt: 2}
	d := NewDispatcher(Options{Workers: 4, MaxRetries: 2, RetryBackoff: time.Millisecond})
	r := NewReplier(api, d, nil)

	blocks := []string{
		strings.Repeat("a", 4000),
		strings.Repeat("b", 4000),
		strings.Repeat("c", 4000),
	}
	if err := r.Reply(context.Background(), domain.Identity{ID: 7}, strings.Join(blocks, "\n")); err != nil {
		t.Fatalf("reply: %v", err)
	}
	d.Close()

	if len(api.sent) != len(blocks) {
		t.Fatalf("sent %d parts, want %d", len(api.sent), len(blocks))
	}
	for i, part := range api.sent {
		if part != blocks[i] {
			t.Fatalf("part %d starts with %q", i, part[:1])
		}
	}
}
