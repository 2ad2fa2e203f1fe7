// Package schedule provides the in-memory job table at the heart of the
// planner: absolute-time jobs with tags and aliases, per-job timers,
// group cancellation, and closest-job queries over the live set.
//
// Jobs are one-shot. Recurrence is owned by the triggers that register
// them: when a job fires, its payload re-registers the next occurrence.
// The live job set therefore always reflects exactly what remains to run,
// which keeps schedule listings and closest-job queries honest.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Options configures a Scheduler.
type Options struct {
	// Logger receives job lifecycle events. Defaults to a no-op logger.
	Logger Logger

	// Now supplies the current time. Defaults to time.Now.
	// Exists so tests can pin the clock.
	Now func() time.Time
}

// Scheduler owns the live job table. All operations that touch the
// table (register, cancel, query, snapshot) serialize on one mutex, so
// every observer sees a consistent view: a job is either fully present
// or fully absent, never half-registered.
type Scheduler struct {
	logger Logger
	now    func() time.Time

	mu      sync.Mutex
	jobs    map[string]*job
	aliases map[string]string // live alias -> job id
	closed  bool

	ctx context.Context // payload context, set by Start
}

// job is a live table entry. The cancel channel is closed to abort the
// timer goroutine; done is closed when that goroutine has exited.
type job struct {
	id      string
	dueAt   time.Time
	tags    map[string]struct{}
	alias   string
	prevRun time.Time
	created time.Time
	run     func(ctx context.Context)

	cancel chan struct{}
	done   chan struct{}
}

// New creates a scheduler. Call Start before registering jobs.
func New(opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		logger:  opts.Logger,
		now:     opts.Now,
		jobs:    make(map[string]*job),
		aliases: make(map[string]string),
		ctx:     context.Background(),
	}
}

// Start attaches the context passed to job payloads when they fire.
// Cancelling it signals payloads to wind down; it does not cancel the
// timers themselves (use Close for that).
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
}

// Register adds a job to the table and arms its timer. A DueAt in the
// past fires immediately. Returns the generated job id.
func (s *Scheduler) Register(j Job) (string, error) {
	if j.Run == nil {
		return "", fmt.Errorf("%w: nil payload", ErrInvalidJob)
	}
	if j.DueAt.IsZero() {
		return "", fmt.Errorf("%w: zero due time", ErrInvalidJob)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}

	entry := &job{
		id:      uuid.NewString(),
		dueAt:   j.DueAt,
		tags:    make(map[string]struct{}, len(j.Tags)),
		alias:   s.dedupeAlias(j.Alias),
		prevRun: j.PrevRun,
		created: s.now(),
		run:     j.Run,
		cancel:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, t := range j.Tags {
		entry.tags[t] = struct{}{}
	}

	s.jobs[entry.id] = entry
	if entry.alias != "" {
		s.aliases[entry.alias] = entry.id
	}
	delay := entry.dueAt.Sub(s.now())
	s.mu.Unlock()

	go s.runTimer(entry, delay)

	s.logger.Debug("job registered",
		"job_id", entry.id,
		"alias", entry.alias,
		"due_at", entry.dueAt,
	)
	return entry.id, nil
}

// runTimer waits out the job's delay, then fires it. Exactly one of
// firing and cancellation wins: whichever removes the job from the
// table first.
func (s *Scheduler) runTimer(j *job, delay time.Duration) {
	defer close(j.done)

	if delay < 0 {
		delay = 0
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		if _, ok := s.take(j.id); !ok {
			return // cancelled in the same instant
		}
		s.logger.Debug("job firing", "job_id", j.id, "alias", j.alias)
		s.runPayload(j)
	case <-j.cancel:
	}
}

// runPayload invokes the job payload, containing panics so one broken
// action cannot take the scheduler down with it.
func (s *Scheduler) runPayload(j *job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job payload panicked",
				"job_id", j.id,
				"alias", j.alias,
				"panic", r,
			)
		}
	}()

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	j.run(ctx)
}

// take removes a job from the table, freeing its alias. It is the
// linearization point between firing and cancellation.
func (s *Scheduler) take(id string) (*job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	delete(s.jobs, id)
	if j.alias != "" {
		delete(s.aliases, j.alias)
	}
	return j, true
}

// Cancel removes a job before it fires and waits for its timer
// goroutine to acknowledge. Returns ErrNotFound if the job has already
// fired or was never registered; callers unwinding a schedule treat
// that as success.
func (s *Scheduler) Cancel(id string) error {
	j, ok := s.take(id)
	if !ok {
		return ErrNotFound
	}
	close(j.cancel)
	<-j.done

	s.logger.Debug("job cancelled", "job_id", j.id, "alias", j.alias)
	return nil
}

// CancelAll cancels every job whose tag set intersects the given tags.
// With no tags it cancels everything. Each cancellation is awaited, so
// on return no targeted timer is still pending. Returns the number of
// jobs cancelled.
func (s *Scheduler) CancelAll(tags ...string) int {
	s.mu.Lock()
	var targets []string
	for id, j := range s.jobs {
		if matchesTags(j.tags, tags) {
			targets = append(targets, id)
		}
	}
	s.mu.Unlock()

	cancelled := 0
	for _, id := range targets {
		if err := s.Cancel(id); err == nil {
			cancelled++
		}
	}

	if cancelled > 0 {
		s.logger.Info("jobs cancelled", "count", cancelled, "tags", tags)
	}
	return cancelled
}

// Has reports whether a job is still in the live table. Recurring
// payloads use this to tell a natural fire (job already removed) from
// an out-of-band run (job still pending).
func (s *Scheduler) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	return ok
}

// RunJob invokes a live job's payload immediately, out of band. The job
// stays in the table and will still fire at its natural due time.
func (s *Scheduler) RunJob(id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	s.logger.Info("job run out of band", "job_id", j.id, "alias", j.alias)
	s.runPayload(j)
	return nil
}

// Snapshot returns a copy of the live job table ordered by due time.
func (s *Scheduler) Snapshot() []JobInfo {
	s.mu.Lock()
	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		infos = append(infos, j.info())
	}
	s.mu.Unlock()

	sort.Slice(infos, func(a, b int) bool {
		if infos[a].DueAt.Equal(infos[b].DueAt) {
			return infos[a].ID < infos[b].ID
		}
		return infos[a].DueAt.Before(infos[b].DueAt)
	})
	return infos
}

// Close cancels all jobs and rejects further registrations.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	n := s.CancelAll()
	s.logger.Info("scheduler closed", "cancelled", n)
}

// dedupeAlias returns the first free variant of alias: the alias
// itself, then alias_2, alias_3 and so on. Caller holds s.mu.
func (s *Scheduler) dedupeAlias(alias string) string {
	if alias == "" {
		return ""
	}
	if _, taken := s.aliases[alias]; !taken {
		return alias
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", alias, i)
		if _, taken := s.aliases[candidate]; !taken {
			return candidate
		}
	}
}

// matchesTags reports whether a job's tag set intersects the filter.
// An empty filter matches every job.
func matchesTags(jobTags map[string]struct{}, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, t := range filter {
		if _, ok := jobTags[t]; ok {
			return true
		}
	}
	return false
}

// info builds a read-only snapshot of the job. Caller holds s.mu.
func (j *job) info() JobInfo {
	tags := make([]string, 0, len(j.tags))
	for t := range j.tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return JobInfo{
		ID:      j.id,
		Alias:   j.alias,
		Tags:    tags,
		DueAt:   j.dueAt,
		PrevRun: j.prevRun,
		Created: j.created,
	}
}
