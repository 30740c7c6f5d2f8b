package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is the unit of work executed on every tick.
type Task func(ctx context.Context) error

// PeriodicConfig configures a Periodic runner.
type PeriodicConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
	Logger       *zap.Logger
}

// Periodic runs a task once after an initial delay and then on a fixed
// interval until stopped. A tick that fires while the previous execution is
// still in flight is skipped, never queued.
type Periodic struct {
	name         string
	task         Task
	initialDelay time.Duration
	interval     time.Duration
	logger       *zap.Logger

	inFlight atomic.Bool
	skipped  atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewPeriodic builds a runner for task.
func NewPeriodic(name string, task Task, cfg PeriodicConfig) *Periodic {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Periodic{
		name:         name,
		task:         task,
		initialDelay: cfg.InitialDelay,
		interval:     cfg.Interval,
		logger:       cfg.Logger,
	}
}

// Start launches the ticker goroutine. Safe to call once; later calls are ignored.
func (p *Periodic) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.started = true
	go p.loop(runCtx)
	p.logger.Sugar().Infow("periodic task started", "task", p.name, "interval", p.interval, "initial_delay", p.initialDelay)
}

// Stop prevents further executions and waits for the loop to exit. An
// execution already in flight observes a cancelled context and is waited for.
func (p *Periodic) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
	p.logger.Sugar().Infow("periodic task stopped", "task", p.name, "skipped_ticks", p.skipped.Load())
}

// TriggerNow runs the task immediately unless an execution is already in
// flight. It reports whether the task ran.
func (p *Periodic) TriggerNow(ctx context.Context) bool {
	return p.fire(ctx)
}

// Skipped returns how many ticks were dropped because a run was in flight.
func (p *Periodic) Skipped() int64 {
	return p.skipped.Load()
}

func (p *Periodic) loop(ctx context.Context) {
	defer close(p.done)

	var wg sync.WaitGroup
	defer wg.Wait()

	launch := func() {
		if !p.inFlight.CompareAndSwap(false, true) {
			p.skipped.Add(1)
			p.logger.Sugar().Debugw("tick skipped, previous run in flight", "task", p.name)
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.inFlight.Store(false)
			p.execute(ctx)
		}()
	}

	delay := time.NewTimer(p.initialDelay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		return
	case <-delay.C:
		launch()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			launch()
		}
	}
}

func (p *Periodic) fire(ctx context.Context) bool {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		return false
	}
	defer p.inFlight.Store(false)
	p.execute(ctx)
	return true
}

func (p *Periodic) execute(ctx context.Context) {
	start := time.Now()
	if err := p.task(ctx); err != nil {
		p.logger.Sugar().Errorw("periodic task failed", "task", p.name, "error", err, "duration", time.Since(start))
		return
	}
	p.logger.Sugar().Debugw("periodic task finished", "task", p.name, "duration", time.Since(start))
}
