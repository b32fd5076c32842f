package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/financebot/core/logger"
)

var (
	// ErrPoolClosed is returned when Submit is called after Close.
	ErrPoolClosed = errors.New("dispatch: pool closed")
	// ErrQueueFull means the identity already has QueueSize events waiting.
	ErrQueueFull = errors.New("dispatch: identity queue full")
)

// Handler processes one event; *Dispatcher implements it.
type Handler interface {
	Handle(ctx context.Context, ev Event) (string, error)
}

// PoolOptions bounds the pool.
type PoolOptions struct {
	// Workers caps events executing at once across all identities.
	Workers int
	// QueueSize caps events waiting per identity.
	QueueSize int
	// Timeout bounds a single Handle call.
	Timeout time.Duration
}

type task struct {
	ctx  context.Context
	ev   Event
	done func(reply string, err error)
}

// mailbox is the FIFO of one identity. It exists only while it has work and
// is drained by exactly one goroutine.
type mailbox struct {
	queue []task
}

// Pool runs events for different identities concurrently and events of one
// identity one at a time, in submission order.
type Pool struct {
	h    Handler
	opts PoolOptions
	sem  chan struct{}

	mu     sync.Mutex
	boxes  map[int64]*mailbox
	closed bool
	wg     sync.WaitGroup

	failed atomic.Uint64
}

// NewPool starts a pool in front of h.
func NewPool(h Handler, opts PoolOptions) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 16
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 32
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Pool{
		h:     h,
		opts:  opts,
		sem:   make(chan struct{}, opts.Workers),
		boxes: make(map[int64]*mailbox),
	}
}

// Submit queues ev behind earlier events of the same identity. done, if
// set, is called with the outcome from the draining goroutine.
func (p *Pool) Submit(ctx context.Context, ev Event, done func(reply string, err error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if done == nil {
		done = func(string, error) {}
	}
	key := ev.Identity.ID

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	box, ok := p.boxes[key]
	if !ok {
		box = &mailbox{}
		p.boxes[key] = box
		p.wg.Add(1)
		go p.drain(key, box)
	}
	if len(box.queue) >= p.opts.QueueSize {
		return ErrQueueFull
	}
	box.queue = append(box.queue, task{ctx: ctx, ev: ev, done: done})
	return nil
}

// Dispatch submits ev and waits for its reply.
func (p *Pool) Dispatch(ctx context.Context, ev Event) (string, error) {
	type result struct {
		reply string
		err   error
	}
	ch := make(chan result, 1)
	if err := p.Submit(ctx, ev, func(reply string, err error) {
		ch <- result{reply, err}
	}); err != nil {
		return "", err
	}
	select {
	case res := <-ch:
		return res.reply, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// SubmitReply submits ev and sends any reply text through r.
func (p *Pool) SubmitReply(ctx context.Context, ev Event, r Replier) error {
	return p.Submit(ctx, ev, func(reply string, err error) {
		if reply == "" {
			return
		}
		if sendErr := r.Reply(context.WithoutCancel(ctx), ev.Identity, reply); sendErr != nil {
			logger.Dispatch.WarnContext(ctx, "reply failed",
				slog.String("event", "dispatch.reply"),
				slog.String("status", "fail"),
				slog.String("err", sendErr.Error()),
			)
		}
	})
}

func (p *Pool) drain(key int64, box *mailbox) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		if len(box.queue) == 0 {
			delete(p.boxes, key)
			p.mu.Unlock()
			return
		}
		t := box.queue[0]
		box.queue[0] = task{}
		box.queue = box.queue[1:]
		p.mu.Unlock()

		reply, err := p.execute(t)
		if err != nil {
			p.failed.Add(1)
		}
		t.done(reply, err)
	}
}

func (p *Pool) execute(t task) (reply string, err error) {
	select {
	case p.sem <- struct{}{}:
	case <-t.ctx.Done():
		return "", t.ctx.Err()
	}
	defer func() { <-p.sem }()
	defer func() {
		if r := recover(); r != nil {
			reply, err = "", fmt.Errorf("dispatch: panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(t.ctx, p.opts.Timeout)
	defer cancel()
	return p.h.Handle(ctx, t.ev)
}

// Pending returns the number of identities with queued or running events.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.boxes)
}

// Failed returns how many events ended with an error.
func (p *Pool) Failed() uint64 {
	return p.failed.Load()
}

// Close stops accepting events and waits for queued ones until ctx is done.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
