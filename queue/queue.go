// Package queue serializes concurrent print submissions into strictly
// ordered, one-at-a-time execution against a single printing resource.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// ErrQueueCleared rejects a job that was discarded by Clear (or by Close)
// before it was dispatched.
var ErrQueueCleared = errors.New("queue cleared")

// ErrQueueClosed rejects submissions after Close.
var ErrQueueClosed = errors.New("queue closed")

// ErrEmptyPayload rejects submissions with no content.
var ErrEmptyPayload = errors.New("empty payload")

// Printer is the downstream consumed by the queue. *printer.Manager
// satisfies it.
type Printer interface {
	Print(ctx context.Context, data []byte) error
}

type job struct {
	payload []byte
	done    chan error // buffered 1, receives the terminal outcome once
}

// Queue owns the pending job collection and the dispatch state through a
// single actor goroutine. Submissions and clears reach it only as channel
// messages, so the collection never sees concurrent mutation and no job
// ever observes another job's outcome.
type Queue struct {
	printer  Printer
	submitCh chan *job
	clearCh  chan chan int
	quit     chan struct{}
	stopped  chan struct{}

	// maintained by the actor, read lock-free by health checks
	pending     atomic.Int64
	dispatching atomic.Bool

	closeOnce sync.Once
	log       zerolog.Logger
}

// New creates a queue and starts its dispatch actor.
func New(p Printer, log zerolog.Logger) *Queue {
	q := &Queue{
		printer:  p,
		submitCh: make(chan *job),
		clearCh:  make(chan chan int),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		log:      log.With().Str("component", "queue").Logger(),
	}
	go q.run()
	return q
}

// Submit enqueues one print job and returns its completion channel. The
// channel receives exactly one value: nil when the job's print succeeds, or
// the terminal error when it does not. Submit never waits for the print
// itself.
func (q *Queue) Submit(payload string) (<-chan error, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}

	j := &job{payload: []byte(payload), done: make(chan error, 1)}
	select {
	case q.submitCh <- j:
		return j.done, nil
	case <-q.stopped:
		return nil, ErrQueueClosed
	}
}

// Clear atomically discards every pending job, rejecting each with
// ErrQueueCleared, and returns how many were discarded. The job currently
// mid-dispatch, if any, is unaffected and resolves normally.
func (q *Queue) Clear() int {
	reply := make(chan int, 1)
	select {
	case q.clearCh <- reply:
		return <-reply
	case <-q.stopped:
		return 0
	}
}

// Pending returns the number of jobs queued but not yet dispatched.
func (q *Queue) Pending() int { return int(q.pending.Load()) }

// Dispatching reports whether the dispatch loop is working through jobs.
// It stays true from dispatch start until the collection is empty and the
// in-flight attempt has completed.
func (q *Queue) Dispatching() bool { return q.dispatching.Load() }

// Close stops the actor. The in-flight job, if any, still resolves
// normally; remaining pending jobs are rejected with ErrQueueCleared.
// Subsequent Submits fail with ErrQueueClosed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.quit) })
	<-q.stopped
}

func (q *Queue) run() {
	defer close(q.stopped)

	var pending []*job
	var inflight *job
	results := make(chan error, 1)

	for {
		if inflight == nil {
			if len(pending) > 0 {
				inflight = pending[0]
				pending[0] = nil
				pending = pending[1:]
				q.pending.Dec()
				q.dispatching.Store(true)
				go func(j *job) {
					results <- q.printer.Print(context.Background(), j.payload)
				}(inflight)
			} else {
				q.dispatching.Store(false)
			}
		}

		select {
		case j := <-q.submitCh:
			pending = append(pending, j)
			q.pending.Inc()

		case reply := <-q.clearCh:
			for _, j := range pending {
				j.done <- ErrQueueCleared
			}
			n := len(pending)
			pending = nil
			q.pending.Store(0)
			if n > 0 {
				q.log.Info().Int("discarded", n).Msg("queue cleared")
			}
			reply <- n

		case err := <-results:
			if err != nil {
				q.log.Warn().Err(err).Msg("job failed")
			}
			inflight.done <- err
			inflight = nil

		case <-q.quit:
			if inflight != nil {
				inflight.done <- <-results
				inflight = nil
			}
			for _, j := range pending {
				j.done <- ErrQueueCleared
			}
			q.pending.Store(0)
			q.dispatching.Store(false)
			return
		}
	}
}
