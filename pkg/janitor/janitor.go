// Package janitor wires the collector and the archiver into the two-phase
// pipeline: enumerate every unsubscribed member first, then archive the
// materialized set under bounded concurrency.
package janitor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mailops/list-janitor/pkg/archive"
	"github.com/mailops/list-janitor/pkg/client"
	"github.com/mailops/list-janitor/pkg/collect"
)

// Janitor is the public pipeline facade.
type Janitor struct {
	collector *collect.Collector
	archiver  *archive.Archiver
	logger    zerolog.Logger
}

// New builds a janitor on top of a configured gateway client.
func New(c *client.Client) *Janitor {
	return &Janitor{
		collector: collect.New(c, c.PageSize()),
		archiver:  archive.New(c, c.MaxConcurrency()),
		logger:    log.With().Str("component", "janitor").Logger(),
	}
}

// ListUnsubscribed returns the lazy enumeration stream of unsubscribed
// members. Enumeration is strictly sequential; a failure arrives as the
// final stream element.
func (j *Janitor) ListUnsubscribed(ctx context.Context) <-chan collect.MemberResult {
	return j.collector.Stream(ctx)
}

// ArchiveUnsubscribed enumerates every unsubscribed member, then archives
// the full set and returns the outcome stream. Enumeration runs to
// completion before the first archive call; an enumeration failure is
// returned here and no archive call is made, so a mutation never starts on
// an unverified member set. Per-member archive failures are stream elements
// and do not stop the run.
func (j *Janitor) ArchiveUnsubscribed(ctx context.Context) (<-chan archive.Outcome, error) {
	ids, err := j.collector.CollectIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate unsubscribed members: %w", err)
	}

	j.logger.Info().Int("members", len(ids)).Msg("Enumeration complete, starting archive")
	return j.archiver.Run(ctx, ids), nil
}
