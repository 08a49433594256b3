// Package cleanup deletes delivered recordings after a delay.
package cleanup

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

var ErrStopped = errors.New("cleanup scheduler stopped")

// RemoveFunc deletes one file.
type RemoveFunc func(path string) error

type job struct {
	timer *time.Timer
	due   time.Time
}

// Scheduler owns a set of pending deletions keyed by path. Scheduling a path
// that is already pending replaces the earlier job.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*job
	remove  RemoveFunc
	stopped bool
	running sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRemoveFunc replaces os.Remove.
func WithRemoveFunc(fn RemoveFunc) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.remove = fn
		}
	}
}

// New returns an empty Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:   make(map[string]*job),
		remove: os.Remove,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule deletes path after delay. The returned function cancels the job;
// it is a no-op once the job has fired.
func (s *Scheduler) Schedule(path string, delay time.Duration) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, ErrStopped
	}
	if prev, ok := s.jobs[path]; ok {
		prev.timer.Stop()
	}

	j := &job{due: time.Now().Add(delay)}
	j.timer = time.AfterFunc(delay, func() { s.fire(path, j) })
	s.jobs[path] = j

	slog.Info("Scheduled recording cleanup",
		slog.String("path", path), slog.String("due", humanize.Time(j.due)))

	return func() { s.cancel(path, j) }, nil
}

func (s *Scheduler) fire(path string, j *job) {
	s.mu.Lock()
	if s.jobs[path] != j {
		// Cancelled or replaced after the timer started.
		s.mu.Unlock()
		return
	}
	delete(s.jobs, path)
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	if err := s.remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Recording already gone", slog.String("path", path))
			return
		}
		slog.Error("Failed to delete recording", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	slog.Info("Deleted recording", slog.String("path", path))
}

func (s *Scheduler) cancel(path string, j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jobs[path] != j {
		return
	}
	j.timer.Stop()
	delete(s.jobs, path)
}

// Pending returns the number of jobs that have not fired or been cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Stop cancels every pending job, waits for deletions already in progress
// and rejects further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for path, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, path)
	}
	s.mu.Unlock()

	s.running.Wait()
}
