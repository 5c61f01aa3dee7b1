package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailops/list-janitor/internal/testutil"
	"github.com/mailops/list-janitor/pkg/client"
	"github.com/mailops/list-janitor/pkg/janitor"
)

// TestPipeline_LargeListUnderConcurrencyBound exercises the whole pipeline
// over HTTP: 25 members across 3 pages, archived with a window of 4, with
// the mock server measuring the real in-flight high-water mark.
func TestPipeline_LargeListUnderConcurrencyBound(t *testing.T) {
	mock := testutil.NewMockMailchimp("list-id")
	defer mock.Close()

	var all []string
	for i := 0; i < 25; i++ {
		all = append(all, fmt.Sprintf("member-%02d", i))
	}
	mock.SetMembersPage(0, all[0:10]...)
	mock.SetMembersPage(10, all[10:20]...)
	mock.SetMembersPage(20, all[20:25]...)
	mock.SetPatchDelay(5 * time.Millisecond)

	cfg := client.DefaultConfig(mock.URL(), "list-id", "api-key")
	cfg.PageSize = 10
	cfg.MaxConcurrency = 4

	c, err := client.New(cfg)
	require.NoError(t, err)

	outcomes, err := janitor.New(c).ArchiveUnsubscribed(context.Background())
	require.NoError(t, err)

	seen := make(map[string]int)
	for o := range outcomes {
		require.NoError(t, o.Err)
		seen[o.MemberID]++
	}

	require.Len(t, seen, 25)
	for _, id := range all {
		assert.Equal(t, 1, seen[id], "outcome count for %s", id)
		assert.Equal(t, 1, mock.PatchRequests(id), "archive calls for %s", id)
	}

	// 10 + 10 + 5, then the terminating empty page at offset 30.
	assert.Equal(t, 4, mock.ListRequests())
	assert.LessOrEqual(t, mock.MaxInflightPatches(), 4)
}

// TestPipeline_MixedOutcomesStayAttributable archives a list where some
// members are rejected and one read of the error body must survive verbatim
// into the outcome.
func TestPipeline_MixedOutcomesStayAttributable(t *testing.T) {
	mock := testutil.NewMockMailchimp("list-id")
	defer mock.Close()

	mock.SetMembersPage(0, "ok-1", "bad-1", "ok-2", "bad-2")
	for _, id := range []string{"bad-1", "bad-2"} {
		mock.SetPatchResponse(id, testutil.MockResponse{
			StatusCode: http.StatusMethodNotAllowed,
			Body:       testutil.APIErrorBody("method", "Method Not Allowed", 405, "member "+id),
		})
	}

	cfg := client.DefaultConfig(mock.URL(), "list-id", "api-key")
	cfg.PageSize = 4
	cfg.MaxConcurrency = 2

	c, err := client.New(cfg)
	require.NoError(t, err)

	outcomes, err := janitor.New(c).ArchiveUnsubscribed(context.Background())
	require.NoError(t, err)

	failures := make(map[string]error)
	successes := make(map[string]bool)
	for o := range outcomes {
		if o.Ok() {
			successes[o.MemberID] = true
		} else {
			failures[o.MemberID] = o.Err
		}
	}

	assert.True(t, successes["ok-1"])
	assert.True(t, successes["ok-2"])
	require.Len(t, failures, 2)

	var apiErr *client.APIError
	require.ErrorAs(t, failures["bad-1"], &apiErr)
	assert.Equal(t, 405, apiErr.Status)
	assert.Equal(t, "member bad-1", apiErr.Detail)
}

// TestPipeline_AuthReachesTheWire verifies Basic auth credentials survive
// through the full stack for both reads and writes.
func TestPipeline_AuthReachesTheWire(t *testing.T) {
	mock := testutil.NewMockMailchimp("list-id")
	defer mock.Close()

	mock.SetMembersPage(0, "id1")

	cfg := client.DefaultConfig(mock.URL(), "list-id", "secret-key")
	cfg.PageSize = 1

	c, err := client.New(cfg)
	require.NoError(t, err)

	outcomes, err := janitor.New(c).ArchiveUnsubscribed(context.Background())
	require.NoError(t, err)
	for o := range outcomes {
		require.NoError(t, o.Err)
	}

	assert.NotEmpty(t, mock.LastAuthHeader())
	assert.Contains(t, mock.LastAuthHeader(), "Basic ")
	assert.Equal(t, "unsubscribed", mock.LastListQuery().Get("status"))
	assert.Equal(t, "timestamp_signup", mock.LastListQuery().Get("sort_field"))
	assert.Equal(t, "ASC", mock.LastListQuery().Get("sort_dir"))
}
