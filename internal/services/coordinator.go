// Package services – Coordinator
//
// This file implements the background analysis coordinator: an in-process
// FIFO queue that decides whether an entry needs analysis, invokes the
// external Analyzer, and applies retry/backoff and terminal-failure policy.
//
// Discipline: exactly one queue item is being analyzed at any instant. A
// Schedule call while processing is underway only enqueues; the running
// loop picks the item up. Retries re-enter the same single queue after a
// linear backoff delay, so the single-in-flight guarantee holds for them
// too. Analyzer failures never propagate to the caller of Schedule; they
// end as a persisted failed status after the retry budget runs out.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-journal-backend/internal/analyzer"
	"github.com/tbourn/go-journal-backend/internal/domain"
)

// Coordinator defaults.
const (
	DefaultMaxRetries       = 3
	DefaultRetryBase        = 2 * time.Second
	DefaultInterItemDelay   = 500 * time.Millisecond
	DefaultMinAnalyzeLength = 10
)

// Skip reasons emitted when an entry is not eligible for analysis.
const (
	SkipNoContext       = "no context"
	SkipOffline         = "offline"
	SkipTooShort        = "too short"
	SkipAlreadyAnalyzed = "already analyzed"
)

// EventType identifies a coordinator notification.
type EventType string

// Coordinator event types. Events are fire-and-forget: the coordinator's
// invariants hold even when no listener is installed.
const (
	EventScheduled EventType = "scheduled"
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventRetrying  EventType = "retrying"
	EventSkipped   EventType = "skipped"
)

// Event carries the entry id and timing/attempt metadata for one
// coordinator notification.
type Event struct {
	Type      EventType
	EntryID   int64
	Attempt   int
	QueuePos  int
	Duration  time.Duration
	Delay     time.Duration
	Reason    string
	Err       string
	WillRetry bool
	At        time.Time
}

// Listener receives coordinator events. Implementations must not block:
// they run on the processing goroutine.
type Listener func(Event)

// Connectivity reports whether the system is online. A nil probe on the
// coordinator means always online.
type Connectivity interface {
	Online() bool
}

// HealthContextProvider supplies the ambient health profile text that
// analysis runs against. ok is false while no context is established.
type HealthContextProvider interface {
	HealthContext(ctx context.Context) (text string, ok bool)
}

// StaticHealthContext is a HealthContextProvider over a fixed string.
// An empty string means no context established.
type StaticHealthContext string

// HealthContext implements HealthContextProvider.
func (s StaticHealthContext) HealthContext(context.Context) (string, bool) {
	return string(s), s != ""
}

// Clock abstracts time for the coordinator so retry delays are testable
// without wall-clock waits.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// queueItem wraps an entry reference with its attempt counter and
// scheduling instant. It lives only in memory for the lifetime of queue
// processing.
type queueItem struct {
	entryID     int64
	content     string
	attempt     int // attempts already made before this run
	scheduledAt time.Time
}

// CoordinatorConfig tunes a Coordinator. Zero values take the defaults
// above.
type CoordinatorConfig struct {
	MaxRetries       int
	RetryBase        time.Duration
	InterItemDelay   time.Duration
	MinAnalyzeLength int
}

// Coordinator owns the background analysis queue and retry policy.
type Coordinator struct {
	analyses *AnalysisService
	az       analyzer.Analyzer
	health   HealthContextProvider
	online   Connectivity // nil = always online
	listener Listener     // nil = no-op
	clock    Clock

	maxRetries int
	retryBase  time.Duration
	interDelay time.Duration
	minLength  int

	mu         sync.Mutex
	queue      []queueItem
	processing bool
	pending    int // queued + in-flight + timers waiting to requeue
}

// NewCoordinator wires a Coordinator. analyses and az are required; health,
// online, listener, and clock are optional (nil selects the no-op or real
// implementation).
func NewCoordinator(analyses *AnalysisService, az analyzer.Analyzer, health HealthContextProvider, cfg CoordinatorConfig) *Coordinator {
	c := &Coordinator{
		analyses:   analyses,
		az:         az,
		health:     health,
		clock:      realClock{},
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase,
		interDelay: cfg.InterItemDelay,
		minLength:  cfg.MinAnalyzeLength,
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.retryBase <= 0 {
		c.retryBase = DefaultRetryBase
	}
	if c.interDelay < 0 {
		c.interDelay = DefaultInterItemDelay
	}
	if c.minLength <= 0 {
		c.minLength = DefaultMinAnalyzeLength
	}
	return c
}

// SetListener installs the event listener. Call before the first Schedule.
func (c *Coordinator) SetListener(l Listener) { c.listener = l }

// SetConnectivity installs the online probe. Call before the first Schedule.
func (c *Coordinator) SetConnectivity(p Connectivity) { c.online = p }

// SetClock replaces the wall clock (tests).
func (c *Coordinator) SetClock(clk Clock) { c.clock = clk }

func (c *Coordinator) emit(ev Event) {
	if c.listener != nil {
		c.listener(ev)
	}
}

// ShouldAnalyze reports whether an entry is eligible for analysis and, when
// it is not, the diagnostic reason: a health context must be established,
// the system must be online, the content must be at least the minimum
// length, and no analysis record may already exist for the id.
func (c *Coordinator) ShouldAnalyze(ctx context.Context, e *domain.Entry) (bool, string) {
	if c.health == nil {
		return false, SkipNoContext
	}
	if _, ok := c.health.HealthContext(ctx); !ok {
		return false, SkipNoContext
	}
	if c.online != nil && !c.online.Online() {
		return false, SkipOffline
	}
	if len([]rune(e.Content)) < c.minLength {
		return false, SkipTooShort
	}
	exists, err := c.analyses.Exists(ctx, e.ID)
	if err != nil {
		// Storage trouble reads as "do not schedule"; the entry itself
		// is already safe in its own store.
		log.Error().Err(err).Int64("entry_id", e.ID).Msg("eligibility check failed")
		return false, SkipAlreadyAnalyzed
	}
	if exists {
		return false, SkipAlreadyAnalyzed
	}
	return true, ""
}

// Schedule enqueues an entry for analysis if it is eligible. Ineligible
// entries are a no-op apart from a diagnostic log and a skipped event.
// Scheduling never fails from the caller's point of view.
func (c *Coordinator) Schedule(ctx context.Context, e *domain.Entry) {
	if ok, reason := c.ShouldAnalyze(ctx, e); !ok {
		log.Debug().Int64("entry_id", e.ID).Str("reason", reason).Msg("analysis skipped")
		c.emit(Event{Type: EventSkipped, EntryID: e.ID, Reason: reason, At: c.clock.Now()})
		return
	}
	c.enqueue(queueItem{entryID: e.ID, content: e.Content, scheduledAt: c.clock.Now()})
}

// ScheduleRetry enqueues an entry without the eligibility gate. Used by the
// explicit re-analysis path and the stale-attempt reconciler, where a
// record already exists by design.
func (c *Coordinator) ScheduleRetry(e *domain.Entry, priorAttempts int) {
	c.enqueue(queueItem{entryID: e.ID, content: e.Content, attempt: priorAttempts, scheduledAt: c.clock.Now()})
}

// enqueue appends to the FIFO and starts the processing loop when idle.
// The loop never runs twice concurrently: the processing flag flips under
// the mutex.
func (c *Coordinator) enqueue(item queueItem) {
	c.mu.Lock()
	c.queue = append(c.queue, item)
	c.pending++
	pos := len(c.queue)
	start := !c.processing
	if start {
		c.processing = true
	}
	c.mu.Unlock()

	c.emit(Event{Type: EventScheduled, EntryID: item.entryID, QueuePos: pos, At: item.scheduledAt})

	if start {
		go c.run()
	}
}

// requeue is enqueue for retry items: the pending count was already taken
// by the timer, so it only transfers the item into the queue.
func (c *Coordinator) requeue(item queueItem) {
	c.mu.Lock()
	c.queue = append(c.queue, item)
	pos := len(c.queue)
	start := !c.processing
	if start {
		c.processing = true
	}
	c.mu.Unlock()

	c.emit(Event{Type: EventScheduled, EntryID: item.entryID, QueuePos: pos, At: c.clock.Now()})

	if start {
		go c.run()
	}
}

// run drains the queue sequentially. It is the only goroutine that
// processes items, which is what makes the single-in-flight invariant
// trivial.
func (c *Coordinator) run() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.processing = false
			c.mu.Unlock()
			return
		}
		item := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.analyzeItem(item)

		c.mu.Lock()
		c.pending--
		more := len(c.queue) > 0
		c.mu.Unlock()

		// bound the request rate to the analyzer between items
		if more && c.interDelay > 0 {
			<-c.clock.After(c.interDelay)
		}
	}
}

// analyzeItem executes one attempt: mark in progress, call the analyzer,
// then either save the result or apply the retry/terminal-failure policy.
func (c *Coordinator) analyzeItem(item queueItem) {
	ctx := context.Background()
	tr := otel.Tracer("services/Coordinator")
	ctx, span := tr.Start(ctx, "analyzeItem",
		trace.WithAttributes(
			attribute.Int64("entry.id", item.entryID),
			attribute.Int("attempt", item.attempt+1),
		),
	)
	defer span.End()

	attempt := item.attempt + 1
	started := c.clock.Now()
	c.emit(Event{Type: EventStarted, EntryID: item.entryID, Attempt: attempt, At: started})

	if _, err := c.analyses.MarkInProgress(ctx, item.entryID, item.scheduledAt); err != nil {
		// A record the state machine refuses to reopen (completed by a
		// concurrent explicit re-save, or storage trouble): drop the item.
		log.Warn().Err(err).Int64("entry_id", item.entryID).Msg("mark in progress failed, dropping item")
		return
	}

	healthCtx := ""
	if c.health != nil {
		healthCtx, _ = c.health.HealthContext(ctx)
	}

	result, err := c.az.Analyze(ctx, item.content, healthCtx)
	if err == nil {
		if _, err := c.analyses.SaveAnalysis(ctx, item.entryID, result); err != nil {
			log.Error().Err(err).Int64("entry_id", item.entryID).Msg("saving analysis failed")
			return
		}
		dur := c.clock.Now().Sub(started)
		log.Info().Int64("entry_id", item.entryID).Int("attempt", attempt).Dur("took", dur).Msg("analysis completed")
		c.emit(Event{Type: EventCompleted, EntryID: item.entryID, Attempt: attempt, Duration: dur, At: c.clock.Now()})
		return
	}

	if attempt < c.maxRetries {
		delay := time.Duration(attempt) * c.retryBase // linear backoff
		log.Warn().Err(err).Int64("entry_id", item.entryID).Int("attempt", attempt).Dur("delay", delay).Msg("analysis failed, retrying")
		c.emit(Event{Type: EventRetrying, EntryID: item.entryID, Attempt: attempt, Delay: delay, Err: err.Error(), WillRetry: true, At: c.clock.Now()})

		// The failed attempt stays in_progress until the retry runs; the
		// requeued item re-enters the same single queue. The pending slot
		// is claimed here so Idle stays false while the timer waits.
		retry := queueItem{entryID: item.entryID, content: item.content, attempt: attempt, scheduledAt: item.scheduledAt}
		c.mu.Lock()
		c.pending++
		c.mu.Unlock()
		go func() {
			<-c.clock.After(delay)
			c.requeue(retry)
		}()
		return
	}

	if _, ferr := c.analyses.MarkFailed(ctx, item.entryID, err); ferr != nil {
		log.Error().Err(ferr).Int64("entry_id", item.entryID).Msg("marking analysis failed failed")
	}
	log.Error().Err(err).Int64("entry_id", item.entryID).Int("attempt", attempt).Msg("analysis failed terminally")
	c.emit(Event{Type: EventFailed, EntryID: item.entryID, Attempt: attempt, Err: err.Error(), WillRetry: false, At: c.clock.Now()})
}

// Retry discards any existing analysis for the entry and schedules a fresh
// run through the normal eligibility gate.
func (c *Coordinator) Retry(ctx context.Context, e *domain.Entry) error {
	if err := c.analyses.Delete(ctx, e.ID); err != nil {
		return err
	}
	c.Schedule(ctx, e)
	return nil
}

// QueueLen returns the number of items waiting in the queue (not counting
// the one in flight).
func (c *Coordinator) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Idle reports whether nothing is queued, in flight, or waiting on a retry
// timer.
func (c *Coordinator) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending == 0 && !c.processing
}

// WaitIdle blocks until the coordinator is idle or the timeout elapses.
// Intended for tests and orderly shutdown.
func (c *Coordinator) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.Idle() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return c.Idle()
}
