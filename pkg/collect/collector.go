// Package collect implements exhaustive enumeration of unsubscribed list
// members: strictly sequential offset pagination, terminated by the first
// empty page.
//
// The enumeration is materialized in full before any archive call runs. The
// remote status filter is evaluated over live data, so mutating members
// while paginating would shift subsequent offsets and skip or repeat
// records. Collecting everything first removes that hazard.
package collect

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mailops/list-janitor/pkg/client"
)

var pagesFetched = promauto.NewCounter(prometheus.CounterOpts{
	Name: "janitor_pages_fetched_total",
	Help: "Total members pages fetched during enumeration",
})

// PageLister is the single gateway read the collector drives.
type PageLister interface {
	ListPage(ctx context.Context, offset, limit int) ([]client.Member, error)
}

// MemberResult is one element of the lazy enumeration stream: a member, or
// the failure that terminated the stream.
type MemberResult struct {
	Member client.Member
	Err    error
}

// Collector drives the paginated members read.
type Collector struct {
	lister   PageLister
	pageSize int
	logger   zerolog.Logger
}

// New creates a collector reading pageSize members per request.
func New(lister PageLister, pageSize int) *Collector {
	if pageSize < 1 {
		pageSize = 100
	}

	return &Collector{
		lister:   lister,
		pageSize: pageSize,
		logger:   log.With().Str("component", "collector").Logger(),
	}
}

// Stream returns a lazy sequence of unsubscribed members in page order
// (signup timestamp ascending). The channel closes after the final member,
// or after a single MemberResult carrying the error that stopped
// enumeration. Pages are requested one at a time with no overlap; the next
// request is not issued until the consumer has drained the current page.
func (c *Collector) Stream(ctx context.Context) <-chan MemberResult {
	out := make(chan MemberResult)

	go func() {
		defer close(out)

		offset := 0
		for {
			page, err := c.lister.ListPage(ctx, offset, c.pageSize)
			if err != nil {
				select {
				case out <- MemberResult{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			pagesFetched.Inc()

			// An empty page is the sole termination signal.
			if len(page) == 0 {
				c.logger.Debug().Int("offset", offset).Msg("Enumeration complete")
				return
			}

			for _, m := range page {
				select {
				case out <- MemberResult{Member: m}:
				case <-ctx.Done():
					return
				}
			}

			offset += c.pageSize
		}
	}()

	return out
}

// CollectIDs materializes the IDs of every unsubscribed member. The result
// is all-or-nothing: any page failure discards everything accumulated so
// far, because a partial set cannot be told apart from a complete one.
func (c *Collector) CollectIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for res := range c.Stream(ctx) {
		if res.Err != nil {
			return nil, res.Err
		}
		ids = append(ids, res.Member.ID)
	}

	// A cancelled stream closes without a trailing error; the accumulator
	// is incomplete and must not be returned.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.Info().Int("members", len(ids)).Msg("Collected unsubscribed members")
	return ids, nil
}
