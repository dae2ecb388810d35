/*
Package resque implements the worker half of a Redis-backed background job
system compatible with the classic Resque wire protocol (queue lists, the
workers set, job status records, and the failed-job list).

Producers push JSON-encoded jobs onto Redis lists; a Worker reserves jobs
from one or more queues (in priority order, or blocking on all of them at
once), isolates execution of each job in a child process, and records the
terminal status — COMPLETE or FAILED — back into Redis. Crash detection,
pause/resume, and graceful/immediate shutdown are all driven by OS signals.

# Quick start

Producer:

	client := resque.NewClient(gateway, resque.DefaultStatusTTL)
	id, err := client.Enqueue(ctx, "default", "SendEmail", "user@example.com")

Worker:

	registry := resque.NewClassRegistry()
	registry.Register("SendEmail", func() resque.Performer { return &sendEmailJob{} })

	w, err := resque.New(resque.Config{
		RedisAddr: "localhost:6379",
		Queues:    []string{"critical", "default", "low"},
		Interval:  5 * time.Second,
	}, registry)
	if err != nil {
		log.Fatal(err)
	}

	if err := w.Run(ctx); err != nil {
		log.Fatal(err)
	}

# Architecture

The worker loop (Worker, in worker.go) polls or blocking-pops a job from
Redis (reserve.go), forks a child to run it (childsupervisor.go), and
reaps the child's exit status to decide whether the job completed or
failed. Signals received on the parent (worker.go's signal plane) pause,
resume, gracefully shut down, immediately shut down, or kill the
in-flight child. A Registry (registry.go) tracks which workers are alive
in Redis and prunes entries whose owning process has died on the local
host.
*/
package resque
