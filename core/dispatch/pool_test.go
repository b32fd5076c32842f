package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/financebot/core/domain"
)

type recordingHandler struct {
	mu      sync.Mutex
	order   map[int64][]string
	running map[int64]int
	overlap bool
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{order: map[int64][]string{}, running: map[int64]int{}}
}

func (h *recordingHandler) Handle(_ context.Context, ev Event) (string, error) {
	id := ev.Identity.ID
	h.mu.Lock()
	h.running[id]++
	if h.running[id] > 1 {
		h.overlap = true
	}
	h.mu.Unlock()

	time.Sleep(time.Millisecond)

	h.mu.Lock()
	h.running[id]--
	h.order[id] = append(h.order[id], ev.Text)
	h.mu.Unlock()
	return "ok:" + ev.Text, nil
}

func TestPoolPreservesPerIdentityOrder(t *testing.T) {
	h := newRecordingHandler()
	p := NewPool(h, PoolOptions{Workers: 4, QueueSize: 64})
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []int64{1, 2, 3} {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			if err := p.Submit(ctx, Event{Identity: domain.Identity{ID: id}, Text: fmt.Sprint(i)}, func(string, error) { wg.Done() }); err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
	}
	wg.Wait()
	if err := p.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if h.overlap {
		t.Fatal("events of one identity ran concurrently")
	}
	for _, id := range []int64{1, 2, 3} {
		got := h.order[id]
		if len(got) != 20 {
			t.Fatalf("identity %d handled %d events", id, len(got))
		}
		for i, text := range got {
			if text != fmt.Sprint(i) {
				t.Fatalf("identity %d order = %v", id, got)
			}
		}
	}
	if p.Pending() != 0 {
		t.Fatalf("pending = %d", p.Pending())
	}
}

type stuckHandler struct {
	stuckID int64
	release chan struct{}
}

func (h stuckHandler) Handle(ctx context.Context, ev Event) (string, error) {
	if ev.Identity.ID == h.stuckID {
		<-h.release
	}
	return "ok:" + ev.Text, nil
}

func TestPoolDifferentIdentitiesDoNotBlock(t *testing.T) {
	h := stuckHandler{stuckID: 1, release: make(chan struct{})}
	p := NewPool(h, PoolOptions{Workers: 2, QueueSize: 4})
	ctx := context.Background()
	defer func() {
		close(h.release)
		_ = p.Close(ctx)
	}()

	if err := p.Submit(ctx, Event{Identity: domain.Identity{ID: 1}, Text: "stuck"}, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := p.Submit(ctx, Event{Identity: domain.Identity{ID: 1}, Text: "behind"}, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	reply, err := p.Dispatch(dctx, Event{Identity: domain.Identity{ID: 2}, Text: "free"})
	if err != nil || reply != "ok:free" {
		t.Fatalf("identity 2 blocked: %q, %v", reply, err)
	}
}

type blockingHandler struct{ release chan struct{} }

func (b blockingHandler) Handle(ctx context.Context, ev Event) (string, error) {
	<-b.release
	return ev.Text, nil
}

func TestPoolQueueFullAndClosed(t *testing.T) {
	release := make(chan struct{})
	p := NewPool(blockingHandler{release: release}, PoolOptions{Workers: 1, QueueSize: 2})
	ctx := context.Background()
	ev := Event{Identity: domain.Identity{ID: 1}}

	// the first task may already be running, so at most QueueSize+1 are accepted
	var accepted int
	var err error
	for i := 0; i < 5 && err == nil; i++ {
		if err = p.Submit(ctx, ev, nil); err == nil {
			accepted++
		}
	}
	if !errors.Is(err, ErrQueueFull) || accepted < 2 || accepted > 3 {
		t.Fatalf("accepted=%d err=%v", accepted, err)
	}

	close(release)
	if err := p.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Submit(ctx, ev, nil); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("submit after close = %v", err)
	}
}

type panicHandler struct{}

func (panicHandler) Handle(context.Context, Event) (string, error) { panic("kaboom") }

func TestPoolRecoversPanics(t *testing.T) {
	p := NewPool(panicHandler{}, PoolOptions{})
	_, err := p.Dispatch(context.Background(), Event{Identity: domain.Identity{ID: 1}})
	if err == nil {
		t.Fatal("expected error from panicking handler")
	}
	if p.Failed() != 1 {
		t.Fatalf("failed = %d", p.Failed())
	}
}

func TestSubmitReplySendsText(t *testing.T) {
	d := newTestDispatcher(t, nil)
	p := NewPool(d, PoolOptions{})
	got := make(chan string, 1)
	r := ReplierFunc(func(_ context.Context, id domain.Identity, text string) error {
		got <- fmt.Sprintf("%d:%s", id.ID, text)
		return nil
	})
	if err := p.SubmitReply(context.Background(), ParseEvent(domain.Identity{ID: 7}, "/start"), r); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case msg := <-got:
		if msg != "7:hello" {
			t.Fatalf("reply = %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
	}
}
