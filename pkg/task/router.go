package task

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/small-frappuccino/guildpanel/pkg/log"
)

// TaskHandler processes a task payload. The context is cancelled when the
// router closes.
type TaskHandler func(ctx context.Context, payload any) error

// TaskOptions configures how a task should be dispatched and executed.
type TaskOptions struct {
	// GroupKey serializes tasks that share it, e.g. every change for one guild.
	// Empty keys share a single global group.
	GroupKey string

	// IdempotencyKey drops a dispatch while an earlier one with the same key
	// is still inside its IdempotencyTTL window.
	IdempotencyKey string

	// MaxAttempts bounds retries on handler error. 0 uses the router default.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	IdempotencyTTL time.Duration
}

// Task is a unit of work for the router.
type Task struct {
	Type    string
	Payload any
	Options TaskOptions
}

// RouterConfig configures the TaskRouter behavior.
type RouterConfig struct {
	DefaultMaxAttempts int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	IdempotencyTTL     time.Duration

	// GroupBuffer is the queue length of each group worker.
	GroupBuffer int

	// GroupIdleTTL stops a group worker that had nothing to do for this long.
	GroupIdleTTL time.Duration

	// CleanupInterval drives idle group and idempotency key cleanup.
	CleanupInterval time.Duration

	// DrainTimeout bounds how long Close waits for queued tasks.
	DrainTimeout time.Duration
}

// Defaults returns a RouterConfig with sensible defaults.
func Defaults() RouterConfig {
	return RouterConfig{
		DefaultMaxAttempts: 3,
		InitialBackoff:     1 * time.Second,
		MaxBackoff:         30 * time.Second,
		IdempotencyTTL:     60 * time.Second,
		GroupBuffer:        128,
		GroupIdleTTL:       2 * time.Minute,
		CleanupInterval:    1 * time.Minute,
		DrainTimeout:       10 * time.Second,
	}
}

var (
	ErrRouterClosed    = errors.New("task router is closed")
	ErrUnknownTaskType = errors.New("unknown task type")
	ErrDuplicateTask   = errors.New("duplicate task (idempotency key present)")
)

const globalGroup = "_global"

// TaskRouter is an in-memory dispatcher with per-group serialization,
// idempotency and retry with exponential backoff.
type TaskRouter struct {
	mu       sync.Mutex
	handlers map[string]TaskHandler
	groups   map[string]*groupWorker
	inflight map[string]time.Time
	closed   bool
	cfg      RouterConfig

	ctx      context.Context
	cancel   context.CancelFunc
	draining chan struct{}
	wg       sync.WaitGroup
	groupsWG sync.WaitGroup
	once     sync.Once
}

type groupWorker struct {
	key        string
	ch         chan *enqueuedTask
	lastActive time.Time
	busy       bool
}

type enqueuedTask struct {
	task    Task
	attempt int
}

// NewRouter creates a TaskRouter; zero fields of cfg take their defaults.
func NewRouter(cfg RouterConfig) *TaskRouter {
	def := Defaults()
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = def.DefaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = def.IdempotencyTTL
	}
	if cfg.GroupBuffer <= 0 {
		cfg.GroupBuffer = def.GroupBuffer
	}
	if cfg.GroupIdleTTL <= 0 {
		cfg.GroupIdleTTL = def.GroupIdleTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	tr := &TaskRouter{
		handlers: make(map[string]TaskHandler),
		groups:   make(map[string]*groupWorker),
		inflight: make(map[string]time.Time),
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		draining: make(chan struct{}),
	}
	tr.wg.Add(1)
	go tr.cleanupLoop()
	return tr
}

// RegisterHandler registers a handler for the given task type.
func (tr *TaskRouter) RegisterHandler(taskType string, handler TaskHandler) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.handlers[taskType] = handler
}

// Dispatch enqueues t. It blocks only while the group queue is full.
func (tr *TaskRouter) Dispatch(ctx context.Context, t Task) error {
	tr.mu.Lock()
	if tr.closed {
		tr.mu.Unlock()
		return ErrRouterClosed
	}
	if h, ok := tr.handlers[t.Type]; !ok || h == nil {
		tr.mu.Unlock()
		return ErrUnknownTaskType
	}

	eff := tr.effectiveOptions(t.Options)
	if eff.IdempotencyKey != "" {
		if expiry, exists := tr.inflight[eff.IdempotencyKey]; exists && time.Now().Before(expiry) {
			tr.mu.Unlock()
			return ErrDuplicateTask
		}
		tr.inflight[eff.IdempotencyKey] = time.Now().Add(eff.IdempotencyTTL)
	}

	key := eff.GroupKey
	if key == "" {
		key = globalGroup
	}
	gw := tr.ensureGroupLocked(key)
	enq := &enqueuedTask{task: t, attempt: 1}

	// Enqueue under the lock when there is room so an idle worker cannot
	// retire between lookup and send. A full queue keeps its worker alive.
	select {
	case gw.ch <- enq:
		tr.mu.Unlock()
		return nil
	default:
	}
	tr.mu.Unlock()

	select {
	case gw.ch <- enq:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-tr.ctx.Done():
		return ErrRouterClosed
	}
}

// ScheduleEvery dispatches t every interval until the returned cancel func
// is called or the router closes. The first run happens after one interval.
func (tr *TaskRouter) ScheduleEvery(interval time.Duration, t Task) func() {
	if interval <= 0 {
		return func() {}
	}
	stop := make(chan struct{})
	var once sync.Once

	tr.wg.Add(1)
	go func() {
		defer tr.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := tr.Dispatch(tr.ctx, t); err != nil && !errors.Is(err, ErrDuplicateTask) {
					if errors.Is(err, ErrRouterClosed) {
						return
					}
					log.ApplicationLogger().Warn("Scheduled task dispatch failed", "type", t.Type, "err", err)
				}
			case <-stop:
				return
			case <-tr.ctx.Done():
				return
			}
		}
	}()

	return func() { once.Do(func() { close(stop) }) }
}

// Close is Shutdown bounded by RouterConfig.DrainTimeout.
func (tr *TaskRouter) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), tr.cfg.DrainTimeout)
	defer cancel()
	if err := tr.Shutdown(ctx); err != nil {
		log.ApplicationLogger().Warn("Task router drain timed out", "timeout", tr.cfg.DrainTimeout.String())
	}
}

// Shutdown stops accepting work and lets every group run what it already
// queued. When ctx ends first, running handlers are cancelled and the rest
// of the queue is dropped; the returned error is ctx.Err().
func (tr *TaskRouter) Shutdown(ctx context.Context) error {
	var err error
	tr.once.Do(func() {
		tr.mu.Lock()
		tr.closed = true
		tr.mu.Unlock()
		close(tr.draining)

		drained := make(chan struct{})
		go func() {
			tr.groupsWG.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			err = ctx.Err()
		}
		tr.cancel()
		tr.wg.Wait()
		tr.groupsWG.Wait()
	})
	return err
}

// Stats is a snapshot for debugging and the admin API.
type Stats struct {
	GroupsCount     int
	InflightCount   int
	RouterClosed    bool
	RegisteredTypes int
}

func (tr *TaskRouter) Stats() Stats {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return Stats{
		GroupsCount:     len(tr.groups),
		InflightCount:   len(tr.inflight),
		RouterClosed:    tr.closed,
		RegisteredTypes: len(tr.handlers),
	}
}

func (tr *TaskRouter) effectiveOptions(opt TaskOptions) TaskOptions {
	if opt.MaxAttempts <= 0 {
		opt.MaxAttempts = tr.cfg.DefaultMaxAttempts
	}
	if opt.InitialBackoff <= 0 {
		opt.InitialBackoff = tr.cfg.InitialBackoff
	}
	if opt.MaxBackoff <= 0 {
		opt.MaxBackoff = tr.cfg.MaxBackoff
	}
	if opt.IdempotencyTTL <= 0 {
		opt.IdempotencyTTL = tr.cfg.IdempotencyTTL
	}
	return opt
}

func (tr *TaskRouter) ensureGroupLocked(key string) *groupWorker {
	if gw, ok := tr.groups[key]; ok {
		return gw
	}
	gw := &groupWorker{
		key:        key,
		ch:         make(chan *enqueuedTask, tr.cfg.GroupBuffer),
		lastActive: time.Now(),
	}
	tr.groups[key] = gw
	tr.groupsWG.Add(1)
	go tr.groupLoop(gw)
	return gw
}

func (tr *TaskRouter) groupLoop(gw *groupWorker) {
	defer tr.groupsWG.Done()
	idle := time.NewTicker(tr.cfg.GroupIdleTTL)
	defer idle.Stop()

	for {
		if tr.ctx.Err() != nil {
			return
		}
		select {
		case <-tr.ctx.Done():
			return
		case <-tr.draining:
			tr.drain(gw)
			return
		case enq := <-gw.ch:
			tr.runTracked(gw, enq)
		case <-idle.C:
			tr.mu.Lock()
			if !gw.busy && len(gw.ch) == 0 && time.Since(gw.lastActive) >= tr.cfg.GroupIdleTTL {
				delete(tr.groups, gw.key)
				tr.mu.Unlock()
				return
			}
			tr.mu.Unlock()
		}
	}
}

// drain runs whatever is left in the group queue once intake has stopped.
func (tr *TaskRouter) drain(gw *groupWorker) {
	for {
		if tr.ctx.Err() != nil {
			return
		}
		select {
		case enq := <-gw.ch:
			tr.runTracked(gw, enq)
		default:
			return
		}
	}
}

func (tr *TaskRouter) runTracked(gw *groupWorker, enq *enqueuedTask) {
	tr.mu.Lock()
	gw.busy = true
	tr.mu.Unlock()

	tr.run(gw, enq)

	tr.mu.Lock()
	gw.busy = false
	gw.lastActive = time.Now()
	tr.mu.Unlock()
}

// run executes one task, retrying in place so later tasks of the same group
// never overtake a failing one.
func (tr *TaskRouter) run(gw *groupWorker, enq *enqueuedTask) {
	tr.mu.Lock()
	handler := tr.handlers[enq.task.Type]
	eff := tr.effectiveOptions(enq.task.Options)
	tr.mu.Unlock()

	if handler == nil {
		log.ApplicationLogger().Warn("Task dropped (handler not registered)", "type", enq.task.Type, "group", gw.key)
		return
	}

	for {
		err := tr.invoke(handler, enq.task)
		if err == nil {
			return
		}
		if enq.attempt >= eff.MaxAttempts || tr.ctx.Err() != nil {
			log.ErrorLoggerRaw().Error("Task failed; max attempts reached",
				"type", enq.task.Type,
				"group", gw.key,
				"attempts", enq.attempt,
				"err", err,
			)
			return
		}

		delay := computeBackoff(eff.InitialBackoff, eff.MaxBackoff, enq.attempt)
		enq.attempt++
		log.ApplicationLogger().Warn("Task failed, retrying",
			"type", enq.task.Type,
			"group", gw.key,
			"attempt", enq.attempt,
			"max_attempts", eff.MaxAttempts,
			"backoff", delay.String(),
			"err", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-tr.ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (tr *TaskRouter) invoke(handler TaskHandler, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("task handler panicked")
			log.ErrorLoggerRaw().Error("Task handler panicked", "type", t.Type, "panic", r)
		}
	}()
	return handler(tr.ctx, t.Payload)
}

// computeBackoff doubles initial per attempt, capped at max, with 10% jitter.
func computeBackoff(initial, max time.Duration, attempt int) time.Duration {
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > max {
			backoff = max
			break
		}
	}
	delta := int64(float64(backoff) * 0.1)
	if delta > 0 {
		backoff += time.Duration(rand.Int64N(2*delta+1) - delta)
	}
	return clampDuration(backoff, initial, max)
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	return max(min(v, hi), lo)
}

func (tr *TaskRouter) cleanupLoop() {
	defer tr.wg.Done()
	t := time.NewTicker(tr.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-tr.ctx.Done():
			return
		case <-t.C:
			now := time.Now()
			tr.mu.Lock()
			for k, expiry := range tr.inflight {
				if now.After(expiry) {
					delete(tr.inflight, k)
				}
			}
			tr.mu.Unlock()
		}
	}
}
