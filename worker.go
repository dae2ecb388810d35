package resque

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/resquego/resque/internal/procfind"
	"github.com/resquego/resque/internal/redisgw"
)

// signalAction is the worker's interpretation of a received OS signal,
// decoupled from the signal itself so Unix and Windows can both drive the
// same dispatch switch (spec.md §4.G).
type signalAction int

const (
	actionNone signalAction = iota
	actionShutdown
	actionShutdownNow
	actionKillChild
	actionPause
	actionResume
)

// Worker runs the reserve/fork/reap loop against a set of queues. One
// Worker corresponds to one OS process and one entry in the registry.
type Worker struct {
	config  Config
	gateway redisgw.Gateway

	classes     *ClassRegistry
	statusStore *StatusStore
	stats       *Stats
	registry    *Registry
	reserver    *Reserver

	identity Identity

	shutdownNow atomic.Bool
	shutdown    atomic.Bool
	paused      atomic.Bool

	currentJob *Job
	child      *ChildSupervisor
	sigCh      chan os.Signal
}

// childReapInterval bounds how long a pending signal can sit unhandled
// while a job's child process is running (spec.md §4.F/§5: "reap wait is
// a non-blocking poll with a short sleep ... signal latency is bounded
// by the polling interval (≈500ms)").
const childReapInterval = 500 * time.Millisecond

// New builds a Worker ready to Run. classes must already hold every job
// class this worker may be asked to perform — registration has to happen
// before Run, since the same registrations are needed again when this
// process re-execs itself in child mode (see childsupervisor.go).
func New(cfg Config, classes *ClassRegistry) (*Worker, error) {
	if len(cfg.Queues) == 0 {
		cfg.Queues = DefaultConfig().Queues
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = DefaultStatusTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = NewStdLogger()
	}

	id, err := newIdentity(cfg.Hostname, cfg.Queues)
	if err != nil {
		return nil, err
	}

	gw := redisgw.New(redisgw.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.Logger)

	stats := NewStats(gw)
	return &Worker{
		config:      cfg,
		gateway:     gw,
		classes:     classes,
		statusStore: NewStatusStore(gw, cfg.StatusTTL),
		stats:       stats,
		registry:    NewRegistry(gw, stats, cfg.Logger),
		reserver:    NewReserver(gw, cfg.Logger),
		identity:    id,
	}, nil
}

func (w *Worker) logger() Logger {
	if w.config.Logger == nil {
		return nopLogger{}
	}
	return w.config.Logger
}

// Run registers the worker, installs the signal plane, and loops
// reserving and running jobs until a shutdown is requested or, when
// Config.Interval is 0, until a single reservation attempt finds nothing.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.gateway.Ping(ctx); err != nil {
		return err
	}
	if err := w.registry.PruneDeadWorkers(ctx, w.identity, w.statusStore); err != nil {
		w.logger().Warn("worker %s failed to prune dead workers at startup: %v", w.identity.String(), err)
	}
	if err := w.registry.Register(ctx, w.identity); err != nil {
		return err
	}
	w.logger().Info("worker %s starting on queues %v", w.identity.String(), w.config.Queues)

	w.dispatch("BeforeFirstFork", func() {
		if w.config.Hooks.BeforeFirstFork != nil {
			w.config.Hooks.BeforeFirstFork()
		}
	})

	sigCh := make(chan os.Signal, 4)
	notifySignals(sigCh)
	w.sigCh = sigCh
	defer func() {
		// best-effort unregister on every return path out of the loop
		_ = w.registry.Unregister(context.Background(), w.identity, w.statusStore)
	}()

	for {
		select {
		case sig := <-sigCh:
			w.handleSignal(sig)
		default:
		}

		if w.shutdownNow.Load() {
			w.logger().Info("worker %s shutting down immediately", w.identity.String())
			if w.child != nil {
				_ = w.child.Kill()
			}
			return nil
		}
		if w.shutdown.Load() && w.currentJob == nil {
			w.logger().Info("worker %s shut down gracefully", w.identity.String())
			return nil
		}

		if w.paused.Load() {
			w.sleepOrSignal(ctx, sigCh, w.pollInterval())
			continue
		}

		queue, payload, err := w.reserveOnce(ctx)
		if err != nil {
			if errors.Is(err, redisgw.ErrDisconnected) {
				w.logger().Warn("worker %s lost redis connection, reconnecting: %v", w.identity.String(), err)
				w.reconnect(ctx)
				continue
			}
			w.logger().Error("worker %s reservation error: %v", w.identity.String(), err)
			w.sleepOrSignal(ctx, sigCh, w.pollInterval())
			continue
		}

		if payload == nil {
			if w.config.Interval <= 0 {
				return nil
			}
			w.sleepOrSignal(ctx, sigCh, w.pollInterval())
			continue
		}

		if err := w.runJob(ctx, queue, payload); err != nil {
			w.logger().Error("worker %s job %s errored: %v", w.identity.String(), payload.ID, err)
		}
	}
}

func (w *Worker) pollInterval() time.Duration {
	if w.config.Interval <= 0 {
		return 0
	}
	return w.config.Interval
}

func (w *Worker) reserveOnce(ctx context.Context) (string, *Payload, error) {
	if w.config.Blocking {
		return w.reserver.ReserveBlocking(ctx, w.config.Queues, w.pollInterval())
	}
	return w.reserver.ReservePolled(ctx, w.config.Queues)
}

// sleepOrSignal sleeps for d, waking early to process a pending signal.
func (w *Worker) sleepOrSignal(ctx context.Context, sigCh chan os.Signal, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	case sig := <-sigCh:
		w.handleSignal(sig)
	}
}

// reconnect rebuilds the gateway's underlying connection. Ownership of
// reconnection belongs to the worker loop, not the gateway itself
// (spec.md §4.A) — the gateway only classifies failures.
func (w *Worker) reconnect(ctx context.Context) {
	for !w.shutdownNow.Load() {
		if err := w.gateway.Ping(ctx); err == nil {
			w.logger().Info("worker %s reconnected", w.identity.String())
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval()):
		}
	}
}

// runJob drives one job through fork, wait, and reap.
func (w *Worker) runJob(ctx context.Context, queue string, payload *Payload) error {
	job := newJob(w, queue, payload)
	w.currentJob = job
	defer func() { w.currentJob = nil }()

	w.dispatch("BeforeFork", func() {
		if w.config.Hooks.BeforeFork != nil {
			w.config.Hooks.BeforeFork(job)
		}
	})

	if err := job.workingOn(ctx); err != nil {
		return err
	}

	child := NewChildSupervisor(w.logger())
	w.child = child
	defer func() { w.child = nil }()

	if err := child.Start(ctx, job); err != nil {
		// No child process could be started: run the job in this process.
		w.logger().Warn("worker %s cannot start child for job %s, running it in-process: %v", w.identity.String(), payload.ID, err)
		perfErr := job.Perform(ctx)
		if err := job.doneWorking(ctx); err != nil {
			w.logger().Error("failed to clear working record for job %s: %v", payload.ID, err)
		}
		if perfErr != nil {
			return job.Fail(ctx, perfErr)
		}
		if err := w.stats.IncrProcessed(ctx, w.identity.String()); err != nil {
			w.logger().Error("failed to increment processed counters for job %s: %v", payload.ID, err)
		}
		return job.UpdateStatus(ctx, StatusComplete, job.Result)
	}

	w.dispatch("AfterFork", func() {
		if w.config.Hooks.AfterFork != nil {
			w.config.Hooks.AfterFork(job)
		}
	})

	waitErr := w.reapChild(ctx, child)
	if err := job.doneWorking(ctx); err != nil {
		w.logger().Error("failed to clear working record for job %s: %v", payload.ID, err)
	}

	if waitErr != nil {
		if w.jobAlreadyFailed(ctx, job.Payload.ID) {
			// The child recorded its own FAILED status (with the real
			// cause) before exiting, per spec.md §4.F. Recording it again
			// here with waitErr's generic exit-code message would
			// overwrite that real cause, so leave the job's recorded
			// status alone, run only the OnFailure hook, and surface
			// waitErr for logging.
			w.dispatch("OnFailure", func() {
				if w.config.Hooks.OnFailure != nil {
					w.config.Hooks.OnFailure(waitErr, job)
				}
			})
			return waitErr
		}
		return job.Fail(ctx, waitErr)
	}

	if err := w.stats.IncrProcessed(ctx, w.identity.String()); err != nil {
		w.logger().Error("failed to increment processed counters for job %s: %v", payload.ID, err)
	}
	return job.UpdateStatus(ctx, StatusComplete, job.Result)
}

// reapChild waits for child to exit without blocking the signal plane:
// it wakes every childReapInterval (and immediately on a pending signal)
// so KillChild and ShutdownNow dispatched mid-job take effect right away
// instead of sitting buffered until the job happens to finish on its own
// (spec.md §4.F/§4.G/§5).
func (w *Worker) reapChild(ctx context.Context, child *ChildSupervisor) error {
	ticker := time.NewTicker(childReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-child.Done():
			return child.Wait(ctx)
		case sig := <-w.sigCh:
			w.handleSignal(sig)
			if w.shutdownNow.Load() {
				_ = child.Kill()
			}
		case <-ticker.C:
			// wake periodically so a signal delivered just after the
			// case above was entered is never delayed past this bound
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// jobAlreadyFailed reports whether jobID's status is already FAILED,
// meaning some other party (normally the job's own child process) has
// already recorded the failure.
func (w *Worker) jobAlreadyFailed(ctx context.Context, jobID string) bool {
	status, _, err := w.statusStore.Get(ctx, jobID)
	if err != nil {
		return false
	}
	return status == StatusFailed
}

func (w *Worker) handleSignal(sig os.Signal) {
	switch classifySignal(sig) {
	case actionShutdownNow:
		w.ShutdownNow()
	case actionShutdown:
		w.Shutdown()
	case actionKillChild:
		w.KillChild()
	case actionPause:
		w.Pause()
	case actionResume:
		w.Resume()
	}
}

// Pause stops the worker from reserving new jobs; any in-flight job runs
// to completion.
func (w *Worker) Pause() {
	w.logger().Info("worker %s pausing", w.identity.String())
	w.paused.Store(true)
}

// Resume clears a Pause.
func (w *Worker) Resume() {
	w.logger().Info("worker %s resuming", w.identity.String())
	w.paused.Store(false)
}

// Shutdown requests a graceful stop: finish the current job, then exit.
func (w *Worker) Shutdown() {
	w.logger().Info("worker %s shutdown requested (graceful)", w.identity.String())
	w.shutdown.Store(true)
}

// ShutdownNow requests an immediate stop, killing any in-flight child.
func (w *Worker) ShutdownNow() {
	w.logger().Info("worker %s shutdown requested (immediate)", w.identity.String())
	w.shutdown.Store(true)
	w.shutdownNow.Store(true)
}

// KillChild kills the currently running child process, if any, without
// shutting the worker itself down — it will reserve the next job as
// usual once the kill is reaped. If the child's pid is not observable on
// this host, it logs that and requests a graceful Shutdown instead.
func (w *Worker) KillChild() {
	if w.child == nil {
		return
	}
	pid := w.child.PID()
	if pid == 0 || !procfind.IsAlive(pid) {
		w.logger().Warn("worker %s child pid %d not found, shutting down gracefully", w.identity.String(), pid)
		w.Shutdown()
		return
	}
	w.logger().Warn("worker %s killing child pid %d", w.identity.String(), pid)
	if err := w.child.Kill(); err != nil {
		w.logger().Error("failed to kill child: %v", err)
	}
}
