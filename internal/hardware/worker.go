// internal/hardware/worker.go
package hardware

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pos-device-service/pkg/driver"
)

// Command is a unit of hardware work executed on the worker goroutine
type Command func(ctx context.Context) error

// WorkerConfig holds the worker timing parameters
type WorkerConfig struct {
	PollInterval     time.Duration
	ProgressInterval time.Duration
	PollTimeout      time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = 100 * time.Millisecond
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 10 * time.Second
	}
	return c
}

// StatusPoller checks connected devices while the worker is idle. It runs on
// the worker goroutine.
type StatusPoller interface {
	PollStatus(ctx context.Context) error
}

type workerKey struct{}

type pendingCommand struct {
	ctx   context.Context
	label string
	fn    Command
	done  chan error
}

// Worker executes every hardware command one at a time on a single goroutine
// and polls device status when idle
type Worker struct {
	cfg          WorkerConfig
	finalizeLock *sync.Mutex
	events       EventSink
	logger       *zap.Logger

	poller   StatusPoller
	commands chan *pendingCommand

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	degraded atomic.Bool
}

// NewWorker creates a stopped worker. finalizeLock is shared with the
// finalize orchestrator; the status poll never runs while it is held.
func NewWorker(cfg WorkerConfig, finalizeLock *sync.Mutex, events EventSink, logger *zap.Logger) *Worker {
	if finalizeLock == nil {
		finalizeLock = &sync.Mutex{}
	}
	if events == nil {
		events = NopEventSink
	}
	return &Worker{
		cfg:          cfg.withDefaults(),
		finalizeLock: finalizeLock,
		events:       events,
		logger:       logger.With(zap.String("component", "hardware_worker")),
		commands:     make(chan *pendingCommand),
	}
}

// SetStatusPoller sets the idle-time poller. Call before Start.
func (w *Worker) SetStatusPoller(poller StatusPoller) {
	w.poller = poller
}

// Start launches the worker goroutine
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.wg.Add(1)
	go w.loop(w.stopCh)

	w.logger.Info("Hardware worker started",
		zap.Duration("poll_interval", w.cfg.PollInterval),
	)
}

// Stop ends the worker loop and waits for the running command to finish
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("Hardware worker stopped")
}

// IsRunning reports whether the worker goroutine exists
func (w *Worker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// IsDegraded reports whether a status poll failed and has not been resolved
func (w *Worker) IsDegraded() bool {
	return w.degraded.Load()
}

// ResolveStatusError clears the degraded state so timed polling resumes
func (w *Worker) ResolveStatusError() {
	if w.degraded.CompareAndSwap(true, false) {
		w.logger.Info("Status error resolved, polling resumed")
	}
}

// Execute runs cmd on the worker goroutine and blocks until it finished.
// A failure is logged and returned as *HardwareError. While waiting and not
// silent a command-waiting event is published every progress interval.
// Execute is a no-op when the worker is not running. Called from the worker
// goroutine itself the command runs inline.
func (w *Worker) Execute(ctx context.Context, label string, cmd Command, silent bool) error {
	if w.onWorker(ctx) {
		return w.run(ctx, label, cmd)
	}

	w.mu.RLock()
	running, stopCh := w.running, w.stopCh
	w.mu.RUnlock()
	if !running {
		return nil
	}

	pending := &pendingCommand{
		ctx:   ctx,
		label: label,
		fn:    cmd,
		done:  make(chan error, 1),
	}

	var tick <-chan time.Time
	if !silent {
		ticker := time.NewTicker(w.cfg.ProgressInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for submitted := false; !submitted; {
		select {
		case w.commands <- pending:
			submitted = true
		case <-tick:
			w.publishWaiting(label)
		case <-stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// once submitted the command runs to completion
	for {
		select {
		case err := <-pending.done:
			return err
		case <-tick:
			w.publishWaiting(label)
		}
	}
}

func (w *Worker) publishWaiting(label string) {
	e := newEvent(EventCommandWaiting, 0)
	e.Message = label
	w.events.Publish(e)
}

func (w *Worker) loop(stopCh chan struct{}) {
	defer w.wg.Done()

	timer := time.NewTimer(w.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return

		case pending := <-w.commands:
			pending.done <- w.run(w.markContext(pending.ctx), pending.label, pending.fn)
			resetTimer(timer, w.cfg.PollInterval)

		case <-timer.C:
			w.pollStatus()
			timer.Reset(w.cfg.PollInterval)
		}
	}
}

// markContext detaches cancellation and tags the context so nested Execute
// calls from the command run inline
func (w *Worker) markContext(ctx context.Context) context.Context {
	return context.WithValue(context.WithoutCancel(ctx), workerKey{}, w)
}

// onWorker reports whether ctx belongs to a command running on w
func (w *Worker) onWorker(ctx context.Context) bool {
	return ctx.Value(workerKey{}) == w
}

func (w *Worker) run(ctx context.Context, label string, cmd Command) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hardware command %q panicked: %v", label, r)
		}
		if err == nil {
			w.logger.Debug("Hardware command completed",
				zap.String("command", label),
				zap.Duration("duration", time.Since(start)),
			)
			return
		}
		w.logger.Error("Hardware command failed",
			zap.String("command", label),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		if _, ok := AsHardwareError(err); !ok {
			err = &HardwareError{
				Kind:  KindOperation,
				State: driver.NewErrorState(driver.SeverityError, driver.CauseCommandFailed, err.Error()),
				Err:   err,
			}
		}
	}()

	return cmd(ctx)
}

func (w *Worker) pollStatus() {
	if w.poller == nil || w.degraded.Load() {
		return
	}
	if !w.finalizeLock.TryLock() {
		w.logger.Debug("Status poll skipped, finalize in progress")
		return
	}
	defer w.finalizeLock.Unlock()

	ctx, cancel := context.WithTimeout(w.markContext(context.Background()), w.cfg.PollTimeout)
	defer cancel()

	if err := w.poller.PollStatus(ctx); err != nil {
		w.degraded.Store(true)
		w.logger.Warn("Status poll failed, polling suspended until resolved", zap.Error(err))

		e := newEvent(EventStatusError, 0)
		e.Message = err.Error()
		if herr, ok := AsHardwareError(err); ok {
			e = ErrorEvent(herr)
			e.Type = EventStatusError
		}
		w.events.Publish(e)
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
