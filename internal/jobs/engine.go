// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

// Package jobs implements the bounded-concurrency job engine: lifecycle as
// durable events, registered handlers, deterministic retry backoff, and
// crash-safe resume. Handler bodies run concurrently, but every lifecycle
// transition is funneled through the one serialized append path, so the job
// store and domain state never see concurrent mutation.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/curator/internal/event"
	"github.com/tomtom215/curator/internal/logging"
)

// Sink is the serialized append+fold path the engine writes lifecycle facts
// through. Implemented by the catalog core.
type Sink interface {
	Append(ev event.Event) error
}

// Job is what a handler receives for one execution attempt.
type Job struct {
	JobID     event.JobID
	Kind      string
	Payload   any
	Attempt   int
	StartedAt time.Time
}

// DecodePayload re-marshals the payload into a typed struct.
func (j Job) DecodePayload(v any) error {
	return decodeVia(j.Payload, v)
}

// Handler executes one attempt of a job. Returning an error routes the job
// through the retry/failure state machine; errors never propagate out of
// the scheduler.
type Handler func(ctx context.Context, job Job) error

// Backoff parameters for retry scheduling. The delay is deterministic in
// the attempt count (no jitter) so tests can assert exact timing.
const (
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultRetryMaxDelay  = 30 * time.Second
)

// DefaultConcurrency is the global in-flight cap when none is configured.
const DefaultConcurrency = 4

// Config holds engine configuration.
type Config struct {
	// Concurrency is the global cap on in-flight jobs.
	// Default: DefaultConcurrency.
	Concurrency int

	// Pools caps in-flight jobs per named pool (io, cpu, control, ...).
	// A job whose kind is assigned a pool occupies one global slot and one
	// pool slot. Kinds without a pool only occupy a global slot.
	Pools map[string]int

	// RetryBaseDelay is the first retry's backoff delay.
	// Default: DefaultRetryBaseDelay. Tests shrink it.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the exponential backoff.
	// Default: DefaultRetryMaxDelay.
	RetryMaxDelay time.Duration

	// MaxAttempts overrides the attempt budget per kind at Register time,
	// taking precedence over the WithMaxAttempts registration option.
	MaxAttempts map[string]int
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("jobs: Concurrency must be positive, got %d", c.Concurrency)
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	for name, cap := range c.Pools {
		if cap < 1 {
			return fmt.Errorf("jobs: pool %q must have capacity >= 1, got %d", name, cap)
		}
	}
	for kind, n := range c.MaxAttempts {
		if n < 1 {
			return fmt.Errorf("jobs: MaxAttempts for kind %q must be >= 1, got %d", kind, n)
		}
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = DefaultRetryMaxDelay
	}
	return nil
}

type registration struct {
	handler     Handler
	maxAttempts int
	pool        string
}

// RegisterOption customizes a job kind registration.
type RegisterOption func(*registration)

// WithMaxAttempts sets how many times a job of this kind may be attempted
// before failing permanently. Default 1 (no retries).
func WithMaxAttempts(n int) RegisterOption {
	return func(r *registration) { r.maxAttempts = n }
}

// WithPool assigns the kind to a named concurrency pool.
func WithPool(name string) RegisterOption {
	return func(r *registration) { r.pool = name }
}

// Engine schedules job execution.
type Engine struct {
	cfg   Config
	sink  Sink
	store *Store
	clock Clock
	log   zerolog.Logger

	// dedupMu makes the active-job lookup and the enqueue append one
	// critical section, so concurrent EnqueueDeduped calls with the same
	// payload converge on one job.
	dedupMu sync.Mutex

	mu            sync.Mutex
	cond          *sync.Cond
	registrations map[string]registration
	queue         []event.JobID
	queued        map[event.JobID]struct{}
	inflight      int
	poolInflight  map[string]int
	pendingTimers int
	timers        map[*time.Timer]struct{}
	closed        bool

	wg sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates an engine writing lifecycle facts to sink and reading
// job records from store. A nil clock means real time.
func NewEngine(sink Sink, store *Store, cfg Config, clock Clock) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = RealClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:           cfg,
		sink:          sink,
		store:         store,
		clock:         clock,
		log:           logging.With().Str("component", "jobs").Logger(),
		registrations: make(map[string]registration),
		queued:        make(map[event.JobID]struct{}),
		poolInflight:  make(map[string]int),
		timers:        make(map[*time.Timer]struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
	e.cond = sync.NewCond(&e.mu)
	return e, nil
}

// Register binds a handler to a job kind. Jobs of an unregistered kind fail
// permanently on their first attempt.
func (e *Engine) Register(kind string, handler Handler, opts ...RegisterOption) error {
	if kind == "" {
		return errors.New("jobs: kind is required")
	}
	if handler == nil {
		return fmt.Errorf("jobs: nil handler for kind %q", kind)
	}

	reg := registration{handler: handler, maxAttempts: 1}
	for _, opt := range opts {
		opt(&reg)
	}
	if n, ok := e.cfg.MaxAttempts[kind]; ok {
		reg.maxAttempts = n
	}
	if reg.maxAttempts < 1 {
		return fmt.Errorf("jobs: maxAttempts for kind %q must be >= 1, got %d", kind, reg.maxAttempts)
	}
	if reg.pool != "" {
		if _, ok := e.cfg.Pools[reg.pool]; !ok {
			return fmt.Errorf("jobs: kind %q references unconfigured pool %q", kind, reg.pool)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.registrations[kind]; exists {
		return fmt.Errorf("jobs: kind %q already registered", kind)
	}
	e.registrations[kind] = reg
	return nil
}

// Enqueue appends a queued fact, adds the job to the run queue, and
// triggers scheduling.
func (e *Engine) Enqueue(kind string, payload any) (event.JobID, error) {
	if kind == "" {
		return "", errors.New("jobs: kind is required")
	}

	id := event.NewJobID()
	ev := event.New(event.TypeJobEnqueued, &event.JobEnqueued{
		JobID:   id,
		Kind:    kind,
		Payload: payload,
	}).WithJob(id)
	if err := e.sink.Append(ev); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", kind, err)
	}
	recordEnqueued(kind)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pushLocked(id)
	e.scheduleLocked()
	return id, nil
}

// EnqueueDeduped returns the id of an already queued or running job with
// the same kind and structurally equal payload instead of creating a
// duplicate. Payload comparison is canonical and key-order independent.
func (e *Engine) EnqueueDeduped(kind string, payload any) (event.JobID, error) {
	canonical, err := event.Canonical(payload)
	if err != nil {
		return "", fmt.Errorf("enqueue deduped %s: %w", kind, err)
	}

	// Lookup and append must be one critical section: handlers run
	// concurrently and chain enqueues, so two racing calls would otherwise
	// both miss the lookup and both schedule the job.
	e.dedupMu.Lock()
	defer e.dedupMu.Unlock()

	if id, ok := e.store.FindActive(kind, canonical); ok {
		recordDedupHit(kind)
		return id, nil
	}
	return e.Enqueue(kind, payload)
}

// ResumePending flips every job left running by the previous process back
// to queued (attempt count preserved) and re-enqueues every queued job in
// the store. No job is lost across a crash and none is stuck running.
func (e *Engine) ResumePending() {
	reset := e.store.ResetRunning()
	for _, id := range reset {
		e.log.Info().Str("job_id", string(id)).Msg("requeueing job interrupted by previous shutdown")
	}

	pending := e.store.List(StatusQueued)

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rec := range pending {
		e.pushLocked(rec.ID)
	}
	e.scheduleLocked()
}

// RunUntilIdle blocks until the queue, the in-flight set, and the pending
// retry timers are all empty, or ctx is done.
func (e *Engine) RunUntilIdle(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			e.cond.Broadcast()
		case <-done:
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.queue) > 0 || e.inflight > 0 || e.pendingTimers > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.closed {
			return ErrEngineClosed
		}
		e.cond.Wait()
	}
	return nil
}

// ErrEngineClosed is returned when waiting on a closed engine.
var ErrEngineClosed = errors.New("jobs: engine closed")

// Close stops scheduling, cancels handler contexts, drops pending retry
// timers, and waits for in-flight handlers to return.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for t := range e.timers {
		t.Stop()
	}
	e.timers = make(map[*time.Timer]struct{})
	e.pendingTimers = 0
	e.cond.Broadcast()
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

// pushLocked adds a job to the FIFO queue unless it is already waiting.
func (e *Engine) pushLocked(id event.JobID) {
	if _, ok := e.queued[id]; ok {
		return
	}
	e.queue = append(e.queue, id)
	e.queued[id] = struct{}{}
	setQueueDepth(len(e.queue))
}

// scheduleLocked drains the queue while slots are free. The queue is FIFO,
// but a job whose pool is saturated does not block jobs behind it that can
// still run.
func (e *Engine) scheduleLocked() {
	if e.closed {
		return
	}
	for e.inflight < e.cfg.Concurrency {
		idx := -1
		var reg registration
		for i, id := range e.queue {
			r := e.registrationFor(id)
			if r.pool != "" && e.poolInflight[r.pool] >= e.cfg.Pools[r.pool] {
				continue
			}
			idx, reg = i, r
			break
		}
		if idx < 0 {
			return
		}

		id := e.queue[idx]
		e.queue = append(e.queue[:idx], e.queue[idx+1:]...)
		delete(e.queued, id)
		setQueueDepth(len(e.queue))

		e.inflight++
		if reg.pool != "" {
			e.poolInflight[reg.pool]++
		}
		setInflight(e.inflight)

		e.wg.Add(1)
		go e.run(id, reg)
	}
}

// registrationFor must be called with e.mu held. Unregistered kinds get a
// zero registration; run handles them as permanent failures.
func (e *Engine) registrationFor(id event.JobID) registration {
	rec, ok := e.store.Get(id)
	if !ok {
		return registration{}
	}
	return e.registrations[rec.Kind]
}

// run executes one attempt of one job and appends the resulting lifecycle
// facts. Handler errors are consumed here; nothing unwinds past the
// scheduler.
func (e *Engine) run(id event.JobID, reg registration) {
	defer func() {
		e.mu.Lock()
		e.inflight--
		if reg.pool != "" {
			e.poolInflight[reg.pool]--
		}
		setInflight(e.inflight)
		e.scheduleLocked()
		e.cond.Broadcast()
		e.mu.Unlock()
		e.wg.Done()
	}()

	rec, ok := e.store.Get(id)
	if !ok {
		e.log.Error().Str("job_id", string(id)).Msg("scheduled job missing from store")
		return
	}

	if reg.handler == nil {
		e.failPermanently(rec, 1, fmt.Sprintf("no handler registered for kind %q", rec.Kind))
		return
	}

	maxAttempts := reg.maxAttempts
	attempt := rec.Attempts + 1
	if attempt > maxAttempts {
		// Seen after a resume when the interrupted attempt was the last
		// one allowed. The handler is not invoked again.
		e.failPermanently(rec, rec.Attempts, "max attempts exhausted")
		return
	}

	startedAt := e.clock.Now()
	started := event.New(event.TypeJobStarted, &event.JobStarted{
		JobID:   rec.ID,
		Kind:    rec.Kind,
		Attempt: attempt,
	}).WithJob(rec.ID)
	if err := e.sink.Append(started); err != nil {
		e.log.Error().Err(err).Str("job_id", string(id)).Msg("failed to append started fact")
		return
	}
	recordStarted(rec.Kind)

	err := reg.handler(e.ctx, Job{
		JobID:     rec.ID,
		Kind:      rec.Kind,
		Payload:   rec.Payload,
		Attempt:   attempt,
		StartedAt: startedAt,
	})

	if err == nil {
		completed := event.New(event.TypeJobCompleted, &event.JobCompleted{
			JobID: rec.ID,
			Kind:  rec.Kind,
		}).WithJob(rec.ID)
		if appendErr := e.sink.Append(completed); appendErr != nil {
			e.log.Error().Err(appendErr).Str("job_id", string(id)).Msg("failed to append completed fact")
		}
		recordCompleted(rec.Kind)
		return
	}

	if attempt < maxAttempts {
		delay := e.backoff(attempt)
		retry := event.New(event.TypeJobRetryScheduled, &event.JobRetryScheduled{
			JobID:   rec.ID,
			Kind:    rec.Kind,
			Attempt: attempt,
			Error:   err.Error(),
			RetryAt: e.clock.Now().Add(delay),
		}).WithJob(rec.ID)
		if appendErr := e.sink.Append(retry); appendErr != nil {
			e.log.Error().Err(appendErr).Str("job_id", string(id)).Msg("failed to append retry fact")
			return
		}
		recordRetryScheduled(rec.Kind)
		e.log.Warn().
			Str("job_id", string(id)).
			Str("kind", rec.Kind).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("job attempt failed, retry scheduled")
		e.scheduleRetry(rec.ID, delay)
		return
	}

	e.failPermanently(rec, attempt, err.Error())
}

// failPermanently appends the terminal failure fact.
func (e *Engine) failPermanently(rec Record, attempt int, msg string) {
	failed := event.New(event.TypeJobFailed, &event.JobFailed{
		JobID:   rec.ID,
		Kind:    rec.Kind,
		Attempt: attempt,
		Error:   msg,
	}).WithJob(rec.ID)
	if err := e.sink.Append(failed); err != nil {
		e.log.Error().Err(err).Str("job_id", string(rec.ID)).Msg("failed to append failure fact")
		return
	}
	recordFailed(rec.Kind)
	e.log.Error().
		Str("job_id", string(rec.ID)).
		Str("kind", rec.Kind).
		Int("attempts", attempt).
		Str("error", msg).
		Msg("job failed permanently")
}

// scheduleRetry re-enters the job into the queue after the backoff delay.
func (e *Engine) scheduleRetry(id event.JobID, delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.pendingTimers++

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.timers, timer)
		if e.closed {
			return
		}
		e.pendingTimers--
		e.pushLocked(id)
		e.scheduleLocked()
		e.cond.Broadcast()
	})
	e.timers[timer] = struct{}{}
}

// backoff computes min(base * 2^(attempt-1), max).
func (e *Engine) backoff(attempt int) time.Duration {
	delay := e.cfg.RetryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= e.cfg.RetryMaxDelay {
			return e.cfg.RetryMaxDelay
		}
	}
	if delay > e.cfg.RetryMaxDelay {
		return e.cfg.RetryMaxDelay
	}
	return delay
}
