package resque

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/resquego/resque/internal/redisgw"
)

// Job wraps a Payload with the live state a worker needs while processing
// it: which worker owns it, when it started, and its eventual result.
// This is spec.md §4.B/§3's "Job Record".
type Job struct {
	Payload   *Payload
	Queue     string
	StartedAt time.Time
	Result    interface{}

	worker *Worker
}

// newJob builds a Job Record for a freshly reserved payload.
func newJob(w *Worker, queue string, p *Payload) *Job {
	return &Job{Payload: p, Queue: queue, worker: w}
}

// Perform resolves the job's class in the worker's ClassRegistry and
// invokes it. A panic inside the Performer — a Go programming error, the
// equivalent of an unrecoverable exception in the original — is recovered
// and converted into an error carrying the captured stack, so the caller
// always gets a normal error return and routes it to Fail (spec.md §4.B).
func (j *Job) Perform(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %s (class %s): %v\n%s", j.Payload.ID, j.Payload.Class, r, debug.Stack())
		}
	}()

	performer, getErr := j.worker.classes.Get(j.Payload.Class)
	if getErr != nil {
		return getErr
	}

	result, perfErr := performer.Perform(ctx, j.Payload.Args)
	if perfErr != nil {
		return perfErr
	}
	j.Result = result
	return nil
}

// Fail records a terminal FAILED status, appends an entry to the "failed"
// list, increments the failed counters, and dispatches OnFailure
// (spec.md §4.B, §6, §7). The parent worker calls this when it observes
// a job's child died without having recorded its own failure (a dirty
// exit, or a write that failed in the child) — see recordJobFailure,
// which the re-exec'd child calls directly so the real cause survives
// even when the parent only ever sees a generic exit code (spec.md §4.F).
func (j *Job) Fail(ctx context.Context, cause error) error {
	if err := recordJobFailure(ctx, j.worker.gateway, j.worker.statusStore, j.worker.stats, j.worker.identity.String(), j.Payload, j.Queue, j.StartedAt, cause); err != nil {
		j.worker.logger().Error("failed to record FAILED status for job %s: %v", j.Payload.ID, err)
	}

	j.worker.dispatch("OnFailure", func() {
		if j.worker.config.Hooks.OnFailure != nil {
			j.worker.config.Hooks.OnFailure(cause, j)
		}
	})

	return nil
}

// failedListRecord is the JSON shape appended to the "failed" list,
// matching spec.md §7's field list.
type failedListRecord struct {
	FailedAt string   `json:"failed_at"`
	Payload  *Payload `json:"payload"`
	Class    string   `json:"exception"`
	Message  string   `json:"error"`
	Queue    string   `json:"queue"`
	Worker   string   `json:"worker"`
}

// recordJobFailure persists a FAILED status, appends a failed-list entry,
// and increments failed counters for payload. Both Job.Fail (the parent's
// fallback path) and childsupervisor.go's RunChildMode (the normal path,
// run from inside the job's own child process) call this, so the same
// cause and the same Redis writes happen regardless of which side
// observes the failure first.
func recordJobFailure(ctx context.Context, gw redisgw.Gateway, statusStore *StatusStore, stats *Stats, workerID string, payload *Payload, queue string, startedAt time.Time, cause error) error {
	fc := &FailCause{
		Class:   fmt.Sprintf("%T", cause),
		Message: cause.Error(),
		Queue:   queue,
	}

	var firstErr error
	if err := statusStore.Set(ctx, payload.ID, StatusFailed, nil, fc, startedAt); err != nil {
		firstErr = err
	}

	rec := failedListRecord{
		FailedAt: time.Now().Format(time.RFC3339),
		Payload:  payload,
		Class:    fc.Class,
		Message:  fc.Message,
		Queue:    queue,
		Worker:   workerID,
	}
	if b, err := json.Marshal(rec); err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else if err := gw.LPush(ctx, "failed", string(b)); err != nil && firstErr == nil {
		firstErr = err
	}

	if stats != nil {
		if err := stats.IncrFailed(ctx, workerID); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// UpdateStatus writes the job's current status to the Status Store.
func (j *Job) UpdateStatus(ctx context.Context, status Status, result interface{}) error {
	return j.worker.statusStore.Set(ctx, j.Payload.ID, status, result, nil, j.StartedAt)
}

// workingOn records this job as the worker's current job in Redis
// (the Worker Current-Job Record of spec.md §3), and marks status RUNNING.
func (j *Job) workingOn(ctx context.Context) error {
	j.StartedAt = time.Now()

	type workingRecord struct {
		Queue   string   `json:"queue"`
		RunAt   string   `json:"run_at"`
		Payload *Payload `json:"payload"`
	}
	rec := workingRecord{
		Queue:   j.Queue,
		RunAt:   j.StartedAt.Format(time.RFC3339),
		Payload: j.Payload,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	workerKey := fmt.Sprintf("worker:%s", j.worker.identity.String())
	if err := j.worker.gateway.Set(ctx, workerKey, string(b), 0); err != nil {
		return err
	}
	return j.UpdateStatus(ctx, StatusRunning, nil)
}

// doneWorking removes the Worker Current-Job Record, unconditionally —
// called whether the job completed, failed, or the child died dirty.
func (j *Job) doneWorking(ctx context.Context) error {
	workerKey := fmt.Sprintf("worker:%s", j.worker.identity.String())
	return j.worker.gateway.Del(ctx, workerKey)
}
