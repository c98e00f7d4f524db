// Package planner owns the day plan: the task list and the thoughts text.
//
// Store is the only place that mutates planner state. Every mutation swaps in
// a freshly built task slice, so readers never see a half-applied change, and
// then hands a full snapshot to a background writer. The writer keeps a single
// pending slot: a burst of edits collapses into one write of the newest state.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"day2do/internal/models"
	"day2do/internal/storage"
)

var (
	// ErrTaskNotFound is returned when no task has the requested id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrConfirmationRequired guards Delete until the user has confirmed it.
	ErrConfirmationRequired = errors.New("are you sure you want to delete this task?")
	// ErrClosed is returned by Flush once the writer stopped with unsaved state.
	ErrClosed = errors.New("planner store closed")
)

// Options tunes persistence and lets tests pin the clock and id source.
type Options struct {
	Retries      int
	Backoff      time.Duration
	WriteTimeout time.Duration
	Now          func() time.Time
	NewID        func() string
}

func (o Options) withDefaults() Options {
	if o.Retries < 1 {
		o.Retries = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 200 * time.Millisecond
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Store holds the authoritative task list and thoughts string.
type Store struct {
	mu       sync.RWMutex
	tasks    []models.Task
	thoughts string
	seq      uint64

	blobs  storage.BlobStore
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
	writer *writer
}

// New creates an empty store and starts its background writer.
// Call Load to pick up persisted state and Close to stop the writer.
func New(blobs storage.BlobStore, logger *slog.Logger, opts Options) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	return &Store{
		blobs:  blobs,
		logger: logger,
		now:    opts.Now,
		newID:  opts.NewID,
		writer: newWriter(blobs, logger, opts),
	}
}

// Load replaces memory with the persisted snapshot. Each key is read on its
// own: a missing or unreadable key leaves that part at its empty default and
// never fails startup. Tasks repaired while loading are written back.
func (s *Store) Load(ctx context.Context) {
	tasks, repaired := s.loadTasks(ctx)
	thoughts := s.loadThoughts(ctx)

	s.mu.Lock()
	s.tasks = tasks
	s.thoughts = thoughts
	if repaired {
		s.enqueueLocked()
	}
	s.mu.Unlock()

	s.logger.Info("planner state loaded", slog.Int("tasks", len(tasks)), slog.Int("thoughts_len", len(thoughts)))
}

// loadTasks reports repaired when an id was assigned or a duplicate dropped.
func (s *Store) loadTasks(ctx context.Context) (tasks []models.Task, repaired bool) {
	data, err := s.blobs.Get(ctx, storage.KeyTasks)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		s.logger.Error("unable to read tasks", slog.String("error", err.Error()))
		return nil, false
	}

	var stored []models.Task
	if err := json.Unmarshal(data, &stored); err != nil {
		s.logger.Error("stored tasks are malformed", slog.String("error", err.Error()))
		return nil, false
	}

	tasks = make([]models.Task, 0, len(stored))
	seen := make(map[string]struct{}, len(stored))
	for _, t := range stored {
		if t.ID == "" {
			t.ID = s.newID()
			repaired = true
		}
		if _, dup := seen[t.ID]; dup {
			s.logger.Warn("dropping task with duplicate id", slog.String("id", t.ID))
			repaired = true
			continue
		}
		seen[t.ID] = struct{}{}
		tasks = append(tasks, t)
	}
	return tasks, repaired
}

func (s *Store) loadThoughts(ctx context.Context) string {
	data, err := s.blobs.Get(ctx, storage.KeyThoughts)
	if errors.Is(err, storage.ErrNotFound) {
		return ""
	}
	if err != nil {
		s.logger.Error("unable to read thoughts", slog.String("error", err.Error()))
		return ""
	}
	return string(data)
}

// Tasks returns a copy of the task list in insertion order.
func (s *Store) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Task looks up a single task by id.
func (s *Store) Task(id string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.tasks[i], true
	}
	return models.Task{}, false
}

// Thoughts returns the current thoughts text.
func (s *Store) Thoughts() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thoughts
}

// Create appends a task built from draft.
func (s *Store) Create(draft models.Draft) (models.Task, error) {
	if err := draft.Validate(); err != nil {
		return models.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for s.indexLocked(id) >= 0 {
		id = s.newID()
	}
	task := draft.Apply(models.Task{ID: id, CreatedAt: s.now()})

	next := make([]models.Task, len(s.tasks), len(s.tasks)+1)
	copy(next, s.tasks)
	next = append(next, task)
	s.commitLocked(next)

	s.logger.Debug("task created", slog.String("id", task.ID))
	return task, nil
}

// Update replaces the editable fields of task id with draft.
func (s *Store) Update(id string, draft models.Draft) (models.Task, error) {
	if err := draft.Validate(); err != nil {
		return models.Task{}, err
	}
	return s.modify(id, draft.Apply)
}

// ToggleCompleted flips the completed flag of task id.
func (s *Store) ToggleCompleted(id string) (models.Task, error) {
	return s.modify(id, func(t models.Task) models.Task {
		t.Completed = !t.Completed
		return t
	})
}

// Delete removes task id. The caller must pass confirmed=true once the user
// agreed to the destructive action.
func (s *Store) Delete(id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return ErrTaskNotFound
	}
	next := make([]models.Task, 0, len(s.tasks)-1)
	next = append(next, s.tasks[:i]...)
	next = append(next, s.tasks[i+1:]...)
	s.commitLocked(next)

	s.logger.Debug("task deleted", slog.String("id", id))
	return nil
}

// SetThoughts replaces the thoughts text.
func (s *Store) SetThoughts(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thoughts = text
	s.enqueueLocked()
}

// PersistStatus reports whether memory holds changes storage has not seen.
func (s *Store) PersistStatus() PersistStatus {
	return s.writer.status()
}

// Flush waits until the newest snapshot is stored.
func (s *Store) Flush(ctx context.Context) error {
	return s.writer.flush(ctx)
}

// Close writes any pending snapshot and stops the writer. It does not close
// the underlying blob store.
func (s *Store) Close(ctx context.Context) error {
	return s.writer.close(ctx)
}

func (s *Store) modify(id string, fn func(models.Task) models.Task) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return models.Task{}, ErrTaskNotFound
	}
	next := make([]models.Task, len(s.tasks))
	copy(next, s.tasks)
	next[i] = fn(next[i])
	s.commitLocked(next)
	return next[i], nil
}

func (s *Store) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) commitLocked(tasks []models.Task) {
	s.tasks = tasks
	s.enqueueLocked()
}

// enqueueLocked hands the current state to the writer. Task slices are never
// modified after commit, so the snapshot can share the backing array.
func (s *Store) enqueueLocked() {
	s.seq++
	s.writer.enqueue(snapshot{seq: s.seq, tasks: s.tasks, thoughts: s.thoughts})
}
