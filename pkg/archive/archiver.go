// Package archive implements the sliding-window archiver: a bounded number
// of archive calls in flight, refilled one-for-one as each completes, with
// outcomes streamed to the consumer in completion order.
package archive

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mailops/list-janitor/pkg/client"
)

// Prometheus metrics for archive runs.
var (
	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "janitor_archive_outcomes_total",
		Help: "Archive outcomes by result (success, remote, transport, task)",
	}, []string{"result"})

	inflightTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "janitor_archive_inflight_tasks",
		Help: "Archive requests currently in flight",
	})
)

// MemberArchiver is the single gateway write the archiver drives.
type MemberArchiver interface {
	SetArchived(ctx context.Context, id string) (string, error)
}

// TaskError reports that a worker itself failed rather than the remote call
// it was running. Distinct from remote and transport failures so callers can
// tell infrastructure problems from API ones.
type TaskError struct {
	MemberID string
	Reason   any
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return fmt.Sprintf("archive task for member %s aborted: %v", e.MemberID, e.Reason)
}

// Outcome is the result of one archive attempt. Exactly one Outcome is
// produced per identifier handed to Run.
type Outcome struct {
	MemberID string
	Err      error
}

// Ok reports whether the member was archived.
func (o Outcome) Ok() bool {
	return o.Err == nil
}

// Archiver runs archive calls with bounded concurrency.
type Archiver struct {
	gateway     MemberArchiver
	concurrency int
	logger      zerolog.Logger
}

// New creates an archiver keeping at most concurrency calls in flight.
func New(gateway MemberArchiver, concurrency int) *Archiver {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Archiver{
		gateway:     gateway,
		concurrency: concurrency,
		logger:      log.With().Str("component", "archiver").Logger(),
	}
}

// Run archives every identifier in ids and returns a lazily-produced, finite
// stream of outcomes, one per identifier, in completion order. Completion
// order carries no relation to the order of ids. The channel closes once the
// last in-flight call has finished.
//
// All coordination state (the pending set and the in-flight count) is owned
// by the single coordinator goroutine; workers only report completions, so
// no locking is needed.
//
// Cancelling ctx aborts in-flight requests through context propagation and
// stops replacement launches; outcomes that cannot be delivered to a gone
// consumer are dropped. A consumer that merely stops reading without
// cancelling leaves in-flight calls running to completion, untracked.
func (a *Archiver) Run(ctx context.Context, ids []string) <-chan Outcome {
	out := make(chan Outcome)

	go func() {
		defer close(out)

		pending := make([]string, len(ids))
		copy(pending, ids)

		window := a.concurrency
		if window > len(pending) {
			window = len(pending)
		}

		a.logger.Info().
			Int("members", len(ids)).
			Int("concurrency", window).
			Msg("Starting archive run")

		// Buffered to the window size so a worker can always deliver its
		// completion without waiting on the coordinator.
		done := make(chan Outcome, window)
		inflight := 0

		launch := func() {
			id := pending[len(pending)-1]
			pending = pending[:len(pending)-1]
			inflight++
			inflightTasks.Inc()
			go a.task(ctx, id, done)
		}

		// Fill the window.
		for inflight < window && len(pending) > 0 {
			launch()
		}

		// Drain and refill one-for-one until the window empties.
		for inflight > 0 {
			outcome := <-done
			inflight--
			inflightTasks.Dec()

			if len(pending) > 0 && ctx.Err() == nil {
				launch()
			}

			select {
			case out <- outcome:
			case <-ctx.Done():
				// Consumer gone; keep draining so no worker leaks.
			}
		}
	}()

	return out
}

// task runs one archive call and always delivers exactly one outcome. A
// worker panic is converted into a TaskError outcome so the window never
// leaks a slot.
func (a *Archiver) task(ctx context.Context, id string, done chan<- Outcome) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Str("member_id", id).Any("reason", r).Msg("Archive task aborted")
			outcomesTotal.WithLabelValues("task").Inc()
			done <- Outcome{MemberID: id, Err: &TaskError{MemberID: id, Reason: r}}
		}
	}()

	archivedID, err := a.gateway.SetArchived(ctx, id)
	if err != nil {
		a.logger.Warn().Str("member_id", id).Err(err).Msg("Archive failed")
		outcomesTotal.WithLabelValues(string(client.Classify(err))).Inc()
		done <- Outcome{MemberID: id, Err: err}
		return
	}

	outcomesTotal.WithLabelValues("success").Inc()
	done <- Outcome{MemberID: archivedID}
}
