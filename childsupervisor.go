package resque

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime/debug"
	"sync"
	"time"

	"github.com/resquego/resque/internal/redisgw"
)

// childExecFlag is the hidden CLI flag that tells a re-exec'd copy of this
// binary to run in child mode: read a childInput as JSON from stdin,
// perform the job it carries, and exit with a status code that encodes
// the outcome. It is Go's substitute for fork(2), which the runtime does
// not expose (spec.md §4.F, §9's design note).
const childExecFlag = "--resque-internal-exec"

// Child exit codes. 0 means the job completed; any other code or a
// termination by signal is classified by the parent into Fail causes.
const (
	childExitOK       = 0
	childExitJobError = 1
	childExitPanic    = 2
)

// childInput is what the parent pipes to a re-exec'd child over stdin:
// the job itself, plus enough Redis connection and identity context for
// the child to record its own terminal FAILED status — with the real
// exception class and message — before it exits. Without this the parent
// would only ever see a numeric exit code and would have to fabricate a
// generic cause, which is exactly what spec.md §4.F's "the child may
// already have promoted it" is there to avoid.
type childInput struct {
	Payload   *Payload        `json:"payload"`
	Queue     string          `json:"queue"`
	StartedAt time.Time       `json:"started_at"`
	WorkerID  string          `json:"worker_id"`
	Redis     redisgw.Options `json:"redis"`
	StatusTTL time.Duration   `json:"status_ttl"`
}

// ChildSupervisor runs a single job in a freshly spawned child process of
// this same binary, and reports back how it exited. Modeled on the
// teacher's ProcessSupervisor: pipes to the child, a monitor goroutine
// that waits on the process and classifies its exit, and a done channel
// the caller selects on.
type ChildSupervisor struct {
	logger Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	done     chan struct{}
	exitErr  error
	exitCode int
	signaled bool
}

// NewChildSupervisor creates a ChildSupervisor.
func NewChildSupervisor(logger Logger) *ChildSupervisor {
	if logger == nil {
		logger = nopLogger{}
	}
	return &ChildSupervisor{logger: logger}
}

// Start re-execs the current binary with childExecFlag, pipes job's
// payload to its stdin as JSON, and returns once the child has been
// launched. The child's stdout/stderr are inherited so job output lands
// in the worker's own logs, matching how the original forked worker
// process shares its parent's file descriptors.
func (c *ChildSupervisor) Start(ctx context.Context, job *Job) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resque: cannot determine own executable: %w", err)
	}

	input := childInput{
		Payload:   job.Payload,
		Queue:     job.Queue,
		StartedAt: job.StartedAt,
		WorkerID:  job.worker.identity.String(),
		Redis: redisgw.Options{
			Addr:     job.worker.config.RedisAddr,
			Password: job.worker.config.RedisPassword,
			DB:       job.worker.config.RedisDB,
		},
		StatusTTL: job.worker.config.StatusTTL,
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("resque: encode payload for child: %w", err)
	}

	cmd := exec.CommandContext(ctx, exe, childExecFlag)
	cmd.Stdin = bytes.NewReader(raw)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("resque: failed to start child: %w", err)
	}

	c.mu.Lock()
	c.cmd = cmd
	c.done = make(chan struct{})
	c.mu.Unlock()

	c.logger.Info("forked child pid %d for job %s", cmd.Process.Pid, job.Payload.ID)
	go c.monitor()
	return nil
}

// monitor waits for the child to exit and classifies the result.
func (c *ChildSupervisor) monitor() {
	c.mu.Lock()
	cmd := c.cmd
	done := c.done
	c.mu.Unlock()

	err := cmd.Wait()

	c.mu.Lock()
	c.exitErr = err
	if cmd.ProcessState != nil {
		c.exitCode = cmd.ProcessState.ExitCode()
	}
	c.mu.Unlock()

	close(done)
}

// Done returns a channel closed once the child has exited.
func (c *ChildSupervisor) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// PID returns the child's process id, or 0 if none is running.
func (c *ChildSupervisor) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Kill sends SIGKILL to the child, used by Worker.KillChild (spec.md
// §4.F/§4.G).
func (c *ChildSupervisor) Kill() error {
	pid := c.PID()
	if pid == 0 {
		return nil
	}
	return killPID(pid)
}

// Wait blocks until the child exits or ctx is canceled, then returns the
// classified outcome: nil if the job completed cleanly (exit code 0), or
// a DirtyExitError/ExitCodeError describing the abnormal termination.
//
// Callers that must keep dispatching signals while a child runs (the
// worker loop, per spec.md §4.G/§5) should not call Wait directly — they
// should select on Done() themselves with their own signal channel in
// the loop, and only call Wait once Done() has already fired, so this
// blocking call never hides a pending signal.
func (c *ChildSupervisor) Wait(ctx context.Context) error {
	select {
	case <-c.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	exitErr := c.exitErr
	code := c.exitCode
	c.mu.Unlock()

	return classifyExit(exitErr, code)
}

// classifyExit turns a child's raw exec.Wait outcome into the error the
// rest of the package expects: nil on a clean exit, DirtyExitError if the
// process died by signal, ExitCodeError otherwise.
func classifyExit(exitErr error, code int) error {
	if exitErr == nil && code == childExitOK {
		return nil
	}
	if reason, ok := signalTermination(exitErr); ok {
		return &DirtyExitError{Reason: reason}
	}
	return &ExitCodeError{Code: code}
}

// RunChildMode executes the current process in child mode: it is invoked
// directly by main() when os.Args carries childExecFlag. It decodes a
// childInput from stdin, resolves and runs the job it carries through
// classes, and exits with childExitOK, childExitJobError, or
// childExitPanic — never returns.
//
// On failure this process records its own terminal FAILED status (via
// recordJobFailure, against a Gateway it builds directly from the Redis
// options the parent sent it) before exiting, so the real exception
// class and message make it into Redis even though the parent only ever
// observes this process's exit code (spec.md §4.F).
//
// While the job runs, job:{id}:pid holds this process's pid (with the
// status TTL) so external observers can find the executor; the key is
// deleted before the process exits. A child killed by a signal leaves the
// key to expire.
func RunChildMode(classes *ClassRegistry) {
	var input childInput
	if err := json.NewDecoder(os.Stdin).Decode(&input); err != nil {
		fmt.Fprintf(os.Stderr, "resque: child: cannot decode job: %v\n", err)
		os.Exit(childExitJobError)
	}

	gw := redisgw.New(input.Redis, nil)
	defer gw.Close()
	statusStore := NewStatusStore(gw, input.StatusTTL)
	stats := NewStats(gw)

	pidKey := fmt.Sprintf("job:%s:pid", input.Payload.ID)
	if err := gw.Set(context.Background(), pidKey, fmt.Sprint(os.Getpid()), input.StatusTTL); err != nil {
		fmt.Fprintf(os.Stderr, "resque: child: cannot write pid marker for job %s: %v\n", input.Payload.ID, err)
	}

	fail := func(ctx context.Context, cause error, code int) {
		if err := recordJobFailure(ctx, gw, statusStore, stats, input.WorkerID, input.Payload, input.Queue, input.StartedAt, cause); err != nil {
			fmt.Fprintf(os.Stderr, "resque: child: failed to record FAILED status for job %s: %v\n", input.Payload.ID, err)
		}
		fmt.Fprintf(os.Stderr, "resque: child: job %s failed: %v\n", input.Payload.ID, cause)
		_ = gw.Del(context.Background(), pidKey)
		os.Exit(code)
	}

	performer, err := classes.Get(input.Payload.Class)
	if err != nil {
		fail(context.Background(), err, childExitJobError)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifyShutdownNow(ctx, cancel)

	if _, err := performChild(ctx, performer, input.Payload.Args); err != nil {
		code := childExitJobError
		if _, panicked := err.(*childPanicError); panicked {
			code = childExitPanic
		}
		fail(ctx, err, code)
	}
	_ = gw.Del(context.Background(), pidKey)
	os.Exit(childExitOK)
}

// childPanicError wraps a panic recovered from inside a Performer running
// in child mode, so RunChildMode can tell a programming-error panic (exit
// childExitPanic) apart from an ordinary returned error (exit
// childExitJobError). Both are still a "clean" exit from the parent's
// point of view — only signal death counts as dirty (spec.md §4.F).
type childPanicError struct {
	err error
}

func (e *childPanicError) Error() string { return e.err.Error() }
func (e *childPanicError) Unwrap() error { return e.err }

// performChild runs performer and recovers a panic into a childPanicError,
// the same recovery Job.Perform does for in-process execution.
func performChild(ctx context.Context, performer Performer, args []interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &childPanicError{err: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
		}
	}()
	return performer.Perform(ctx, args)
}

// IsChildExecArg reports whether args (typically os.Args[1:]) request
// child mode.
func IsChildExecArg(args []string) bool {
	for _, a := range args {
		if a == childExecFlag {
			return true
		}
	}
	return false
}
