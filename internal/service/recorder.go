package service

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bouteflan/penrose-experiment/internal/repository"
)

const (
	writeTimeout  = 2 * time.Second
	retryInterval = time.Second
)

type writeOp struct {
	kind      string
	sessionID string
	attempts  int
	fn        func(ctx context.Context, st store.Store) error
	barrier   chan struct{}
}

// recorder serializes persistence writes on a single goroutine. Writes never
// block callers; failed writes are retried on later drains until the retry
// budget is spent.
type recorder struct {
	store   store.Store
	queue   chan *writeOp
	retries int

	pending []*writeOp

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newRecorder(st store.Store, size, retries int) *recorder {
	if size <= 0 {
		size = 256
	}
	if retries <= 0 {
		retries = 1
	}
	return &recorder{
		store:   st,
		queue:   make(chan *writeOp, size),
		retries: retries,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (r *recorder) run() {
	defer close(r.done)
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case op := <-r.queue:
			r.handle(op)
		case <-ticker.C:
			r.retryPending()
		case <-r.stop:
			for {
				select {
				case op := <-r.queue:
					r.handle(op)
				default:
					r.retryPending()
					return
				}
			}
		}
	}
}

// enqueue schedules a write. A full queue drops the write.
func (r *recorder) enqueue(kind, sessionID string, fn func(ctx context.Context, st store.Store) error) {
	op := &writeOp{kind: kind, sessionID: sessionID, fn: fn}
	select {
	case r.queue <- op:
	default:
		log.WithFields(log.Fields{"session_id": sessionID, "kind": kind}).Error("persistence queue full, dropping write")
	}
}

// flush waits until every write queued before the call has been attempted.
func (r *recorder) flush(ctx context.Context) error {
	barrier := make(chan struct{})
	select {
	case r.queue <- &writeOp{kind: "barrier", barrier: barrier}:
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-barrier:
		return nil
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains the queue and stops the writer.
func (r *recorder) close() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *recorder) handle(op *writeOp) {
	if op.barrier != nil {
		r.retryPending()
		close(op.barrier)
		return
	}
	if !r.attempt(op) {
		r.pending = append(r.pending, op)
		return
	}
	if len(r.pending) > 0 {
		r.retryPending()
	}
}

func (r *recorder) retryPending() {
	if len(r.pending) == 0 {
		return
	}
	ops := r.pending
	r.pending = nil
	for _, op := range ops {
		if !r.attempt(op) {
			r.pending = append(r.pending, op)
		}
	}
}

// attempt runs op once. It reports whether op is finished, either written or
// given up on.
func (r *recorder) attempt(op *writeOp) bool {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	op.attempts++
	err := op.fn(ctx, r.store)
	if err == nil {
		return true
	}
	fields := log.Fields{"session_id": op.sessionID, "kind": op.kind, "attempt": op.attempts}
	if op.attempts >= r.retries {
		log.WithFields(fields).WithError(err).Error("persistence write failed, giving up")
		return true
	}
	log.WithFields(fields).WithError(err).Warn("persistence write failed, will retry")
	return false
}
