// Package jobs manages asynchronous export jobs: an in-memory registry
// with ordered progress logs, late-subscriber replay, terminal fan-out
// and periodic garbage collection of finished jobs and their files.
package jobs

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/log"
)

// Status is the lifecycle state of a job. There are no transitions out
// of the terminal states.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

var (
	// ErrNotFound marks lookups for unknown job ids.
	ErrNotFound = errors.New("jobs: job not found")
	// ErrNotComplete is returned when a download is requested before the
	// job reached the complete state.
	ErrNotComplete = errors.New("jobs: job not complete")
)

// subscriberBuffer is the per-subscriber live event buffer. A consumer
// that falls this far behind is evicted rather than blocking the worker.
const subscriberBuffer = 256

// Result is what a successful worker hands back to the manager.
type Result struct {
	FilePath    string
	FileName    string
	DownloadURL string
}

// Runner is the unit of work of one export job. It publishes ordered
// progress events through publish and returns the staged file on
// success. The manager owns the terminal event; runners must not emit
// done or error themselves.
type Runner func(ctx context.Context, publish func(Event)) (*Result, error)

type job struct {
	id         string
	status     Status
	createdAt  time.Time
	finishedAt time.Time
	events     []Event
	filePath   string
	fileName   string
	errMessage string
	listeners  map[chan Event]struct{}
}

// Manager is the registry of export jobs. All state transitions and
// event fan-out go through its lock so replay and live delivery never
// reorder.
type Manager struct {
	retention time.Duration

	mu   sync.Mutex
	jobs map[string]*job
	now  func() time.Time
}

// NewManager creates a registry that keeps finished jobs (and their
// staged files) for retention before GC removes them.
func NewManager(retention time.Duration) *Manager {
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	return &Manager{
		retention: retention,
		jobs:      make(map[string]*job),
		now:       time.Now,
	}
}

// Start registers a new job and launches its worker. It returns the job
// id immediately; progress is consumed via Subscribe.
func (m *Manager) Start(ctx context.Context, run Runner) string {
	id := uuid.New().String()
	j := &job{
		id:        id,
		status:    StatusPending,
		createdAt: m.now(),
		listeners: make(map[chan Event]struct{}),
	}
	m.mu.Lock()
	m.jobs[id] = j
	m.mu.Unlock()

	workerCtx := log.ContextWithJobID(context.WithoutCancel(ctx), id)
	go m.runWorker(workerCtx, id, run)
	return id
}

// runWorker drives one job to a terminal state. The job continues to
// completion even when every subscriber is gone; the staged file stays
// downloadable until GC.
func (m *Manager) runWorker(ctx context.Context, id string, run Runner) {
	logger := log.WithComponentFromContext(ctx, "jobs")

	m.setStatus(id, StatusRunning)
	result, err := run(ctx, func(e Event) { m.publish(id, e) })
	if err != nil {
		logger.Warn().Err(err).Msg("export job failed")
		m.finish(id, StatusError, nil, err.Error())
		return
	}
	logger.Info().Str("file", result.FileName).Msg("export job complete")
	m.finish(id, StatusComplete, result, "")
}

// Status returns the current state of a job.
func (m *Manager) Status(id string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return "", ErrNotFound
	}
	return j.status, nil
}

// Subscribe attaches a consumer to a job. It returns the replay of
// every event appended so far and a live channel for everything after;
// the split is atomic, so replay followed by the channel yields the
// canonical ordered log. For a job already in a terminal state the
// replay ends with the terminal event and the channel is closed.
// cancel detaches the consumer; it is safe to call after the channel
// closed.
func (m *Manager) Subscribe(id string) (replay []Event, live <-chan Event, cancel func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, nil, nil, ErrNotFound
	}

	replay = make([]Event, len(j.events))
	copy(replay, j.events)

	ch := make(chan Event, subscriberBuffer)
	if j.status == StatusComplete || j.status == StatusError {
		close(ch)
		return replay, ch, func() {}, nil
	}

	j.listeners[ch] = struct{}{}
	cancel = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, attached := j.listeners[ch]; attached {
			delete(j.listeners, ch)
			close(ch)
		}
	}
	return replay, ch, cancel, nil
}

// DownloadPath returns the staged file if and only if the job completed.
func (m *Manager) DownloadPath(id string) (path, name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return "", "", ErrNotFound
	}
	if j.status != StatusComplete {
		return "", "", ErrNotComplete
	}
	return j.filePath, j.fileName, nil
}

// publish appends an event to the job log and fans it out. Events after
// a terminal state are dropped: the log is immutable once the job ends.
func (m *Manager) publish(id string, e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.status == StatusComplete || j.status == StatusError {
		return
	}
	m.appendLocked(j, e)
}

// appendLocked appends and broadcasts without blocking the caller: a
// subscriber whose buffer is full is evicted and its channel closed.
func (m *Manager) appendLocked(j *job, e Event) {
	j.events = append(j.events, e)
	for ch := range j.listeners {
		select {
		case ch <- e:
		default:
			delete(j.listeners, ch)
			close(ch)
		}
	}
}

func (m *Manager) setStatus(id string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.status != StatusComplete && j.status != StatusError {
		j.status = status
	}
}

// finish transitions a job to its terminal state, appends the single
// terminal event, then closes and clears every listener.
func (m *Manager) finish(id string, status Status, result *Result, errMessage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.status == StatusComplete || j.status == StatusError {
		return
	}

	var terminal Event
	if status == StatusComplete && result != nil {
		j.filePath = result.FilePath
		j.fileName = result.FileName
		terminal = Event{Type: EventDone, DownloadURL: result.DownloadURL}
	} else {
		status = StatusError
		j.errMessage = errMessage
		terminal = Event{Type: EventError, Message: errMessage}
	}
	j.status = status
	j.finishedAt = m.now()
	m.appendLocked(j, terminal)

	for ch := range j.listeners {
		close(ch)
	}
	j.listeners = make(map[chan Event]struct{})
}

// GC removes finished jobs older than the retention window and deletes
// their staged files. It returns the number of jobs removed.
func (m *Manager) GC() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.retention)
	removed := 0
	for id, j := range m.jobs {
		if j.status != StatusComplete && j.status != StatusError {
			continue
		}
		if j.finishedAt.After(cutoff) {
			continue
		}
		if j.filePath != "" {
			if err := os.Remove(j.filePath); err != nil && !os.IsNotExist(err) {
				logger := log.WithComponent("jobs")
				logger.Warn().Err(err).Str("path", j.filePath).Msg("failed to remove staged export file")
			}
		}
		delete(m.jobs, id)
		removed++
	}
	return removed
}

// RunGC periodically collects finished jobs until ctx is done.
func (m *Manager) RunGC(ctx context.Context, interval time.Duration) {
	logger := log.WithComponent("jobs")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.GC(); n > 0 {
				logger.Info().Int("removed", n).Msg("job GC pass")
			}
		}
	}
}
