package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"day2do/internal/models"
	"day2do/internal/storage"
)

// PersistStatus reports how far durable storage lags behind memory.
type PersistStatus struct {
	Unsaved     bool      `json:"unsaved"`
	LastError   string    `json:"lastError,omitempty"`
	LastSavedAt time.Time `json:"lastSavedAt"`
	Failures    uint64    `json:"failures"`
}

type snapshot struct {
	seq      uint64
	tasks    []models.Task
	thoughts string
}

// writer persists snapshots on a single goroutine. It holds at most one
// pending snapshot; enqueuing replaces it, so only the newest state is ever
// written and writes never go out of order.
type writer struct {
	blobs    storage.BlobStore
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
	timeout  time.Duration

	mu        sync.Mutex
	pending   *snapshot
	last      *snapshot
	busy      bool
	closed    bool
	queued    uint64
	saved     uint64
	lastErr   error
	lastSaved time.Time
	failures  uint64
	changed   chan struct{}

	wake     chan struct{}
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newWriter(blobs storage.BlobStore, logger *slog.Logger, opts Options) *writer {
	w := &writer{
		blobs:    blobs,
		logger:   logger,
		attempts: opts.Retries,
		backoff:  opts.Backoff,
		timeout:  opts.WriteTimeout,
		changed:  make(chan struct{}),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *writer) enqueue(snap snapshot) {
	w.mu.Lock()
	w.queued = snap.seq
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn("snapshot dropped after shutdown", slog.Uint64("seq", snap.seq))
		return
	}
	w.pending = &snap
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			if snap := w.take(); snap != nil {
				w.writeWithRetry(snap)
			}
		case <-w.quit:
			w.final()
			return
		}
	}
}

func (w *writer) take() *snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := w.pending
	w.pending = nil
	if snap != nil {
		w.last = snap
		w.busy = true
	}
	return snap
}

func (w *writer) writeWithRetry(snap *snapshot) {
	delay := w.backoff
	for attempt := 1; ; attempt++ {
		err := w.write(snap)
		if err == nil {
			w.finish(snap.seq, nil)
			return
		}

		w.logger.Warn("persist snapshot failed",
			slog.Uint64("seq", snap.seq),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		if w.failedAttempt(snap.seq) {
			w.finish(snap.seq, err)
			return
		}
		if attempt >= w.attempts {
			w.logger.Error("giving up on snapshot", slog.Uint64("seq", snap.seq), slog.String("error", err.Error()))
			w.finish(snap.seq, err)
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-w.quit:
			timer.Stop()
			w.finish(snap.seq, err)
			return
		}
		delay *= 2
	}
}

// final writes whatever memory holds that storage does not, once.
func (w *writer) final() {
	w.mu.Lock()
	w.closed = true
	snap := w.pending
	w.pending = nil
	if snap == nil && w.last != nil && w.saved < w.last.seq {
		snap = w.last
	}
	w.busy = snap != nil
	w.mu.Unlock()

	if snap == nil {
		return
	}
	err := w.write(snap)
	if err != nil {
		w.failedAttempt(snap.seq)
		w.logger.Error("final snapshot write failed", slog.Uint64("seq", snap.seq), slog.String("error", err.Error()))
	}
	w.finish(snap.seq, err)
}

func (w *writer) write(snap *snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	tasks := snap.tasks
	if tasks == nil {
		tasks = []models.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}

	var errs []error
	if err := w.blobs.Set(ctx, storage.KeyTasks, data); err != nil {
		errs = append(errs, err)
	}
	if err := w.blobs.Set(ctx, storage.KeyThoughts, []byte(snap.thoughts)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// failedAttempt counts a failure and reports whether a newer snapshot is
// already waiting, in which case retrying this one is pointless.
func (w *writer) failedAttempt(seq uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures++
	return w.pending != nil && w.pending.seq > seq
}

func (w *writer) finish(seq uint64, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy = false
	if err != nil {
		w.lastErr = err
	} else {
		if seq > w.saved {
			w.saved = seq
		}
		w.lastErr = nil
		w.lastSaved = time.Now().UTC()
	}
	close(w.changed)
	w.changed = make(chan struct{})
}

func (w *writer) status() PersistStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := PersistStatus{
		Unsaved:     w.saved < w.queued,
		LastSavedAt: w.lastSaved,
		Failures:    w.failures,
	}
	if w.lastErr != nil {
		st.LastError = w.lastErr.Error()
	}
	return st
}

// flush blocks until the newest snapshot is stored or the writer gave up on it.
func (w *writer) flush(ctx context.Context) error {
	for {
		w.mu.Lock()
		if w.saved >= w.queued {
			w.mu.Unlock()
			return nil
		}
		if w.pending == nil && !w.busy && (w.lastErr != nil || w.closed) {
			err := w.lastErr
			w.mu.Unlock()
			if err == nil {
				err = ErrClosed
			}
			return fmt.Errorf("persist snapshot: %w", err)
		}
		ch := w.changed
		w.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *writer) close(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.quit) })

	select {
	case <-w.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return w.flush(ctx)
}
