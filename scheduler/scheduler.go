// Package scheduler provides the timing primitives of the server: a
// replaceable Clock, the epoch-fenced Gate used for battle continuations,
// the per-question Countdown, and a named job registry for housekeeping.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for housekeeping jobs.
type TaskFn func()

type jobKind int

const (
	jobTicker jobKind = iota
	jobDelay
)

type job struct {
	kind   jobKind
	ticker *time.Ticker
	timer  *time.Timer
	stopCh chan struct{}
}

func (j *job) cancel() {
	switch j.kind {
	case jobTicker:
		close(j.stopCh)
	case jobDelay:
		j.timer.Stop()
	}
}

// Scheduler runs named periodic and one-shot housekeeping jobs such as idle
// run reaping and journal flushing. Registering a name twice replaces the
// earlier job.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*job
	logger *zap.Logger
	stopCh chan struct{}
	once   sync.Once
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		jobs:   make(map[string]*job),
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

// AddTicker registers fn to run every interval.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	j := &job{kind: jobTicker, ticker: time.NewTicker(interval), stopCh: make(chan struct{})}
	s.replace(name, j)

	go func() {
		defer j.ticker.Stop()
		for {
			select {
			case <-j.ticker.C:
				s.run(name, fn)
			case <-j.stopCh:
				return
			case <-s.stopCh:
				return
			}
		}
	}()
	s.logger.Info("housekeeping job registered", zap.String("name", name), zap.Duration("interval", interval))
}

// AddDelay runs fn once after delay.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	j := &job{kind: jobDelay}
	s.mu.Lock()
	if old, ok := s.jobs[name]; ok {
		old.cancel()
	}
	j.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.jobs[name] == j {
			delete(s.jobs, name)
		}
		s.mu.Unlock()
		select {
		case <-s.stopCh:
			return
		default:
		}
		s.run(name, fn)
	})
	s.jobs[name] = j
	s.mu.Unlock()
}

func (s *Scheduler) replace(name string, j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.jobs[name]; ok {
		old.cancel()
	}
	s.jobs[name] = j
}

func (s *Scheduler) run(name string, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("housekeeping job panicked",
				zap.String("job", name), zap.Any("recover", r))
		}
	}()
	fn()
}

// Remove cancels a job by name. Unknown names are ignored.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		j.cancel()
		delete(s.jobs, name)
	}
}

// Stop cancels every job. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
		s.mu.Lock()
		for name, j := range s.jobs {
			if j.kind == jobDelay {
				j.timer.Stop()
			}
			delete(s.jobs, name)
		}
		s.mu.Unlock()
	})
}

// Jobs returns the sorted names of registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
