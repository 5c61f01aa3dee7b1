package collect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailops/list-janitor/pkg/client"
)

// fakeLister scripts page responses by offset and records every request.
type fakeLister struct {
	pages    map[int][]client.Member
	failAt   int
	failErr  error
	requests []int
}

func (f *fakeLister) ListPage(ctx context.Context, offset, limit int) ([]client.Member, error) {
	f.requests = append(f.requests, offset)
	if f.failErr != nil && offset == f.failAt {
		return nil, f.failErr
	}
	return f.pages[offset], nil
}

func members(ids ...string) []client.Member {
	out := make([]client.Member, 0, len(ids))
	for _, id := range ids {
		out = append(out, client.Member{ID: id})
	}
	return out
}

func TestCollectIDs_ConcatenatesPages(t *testing.T) {
	lister := &fakeLister{pages: map[int][]client.Member{
		0: members("id1", "id2"),
		2: members("id3", "id4"),
	}}
	c := New(lister, 2)

	ids, err := c.CollectIDs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"id1", "id2", "id3", "id4"}, ids)
	// One request per page, including the terminating empty one.
	assert.Equal(t, []int{0, 2, 4}, lister.requests)
}

func TestCollectIDs_EmptyList(t *testing.T) {
	lister := &fakeLister{pages: map[int][]client.Member{}}
	c := New(lister, 100)

	ids, err := c.CollectIDs(context.Background())
	require.NoError(t, err)

	assert.Empty(t, ids)
	assert.Equal(t, []int{0}, lister.requests)
}

func TestCollectIDs_ShortFinalPage(t *testing.T) {
	lister := &fakeLister{pages: map[int][]client.Member{
		0: members("a", "b", "c"),
		3: members("d"),
	}}
	c := New(lister, 3)

	ids, err := c.CollectIDs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	// A short page still advances by the configured page size; only an
	// empty page terminates.
	assert.Equal(t, []int{0, 3, 6}, lister.requests)
}

func TestCollectIDs_FailureDiscardsPartialResult(t *testing.T) {
	wantErr := &client.FetchError{Offset: 2, Err: errors.New("boom")}
	lister := &fakeLister{
		pages:   map[int][]client.Member{0: members("id1", "id2")},
		failAt:  2,
		failErr: wantErr,
	}
	c := New(lister, 2)

	ids, err := c.CollectIDs(context.Background())
	require.Error(t, err)

	assert.Nil(t, ids, "partial accumulation must be discarded")
	var fetchErr *client.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 2, fetchErr.Offset)
}

func TestCollectIDs_ImmediateFailure(t *testing.T) {
	lister := &fakeLister{failAt: 0, failErr: errors.New("unreachable")}
	c := New(lister, 100)

	ids, err := c.CollectIDs(context.Background())
	require.Error(t, err)
	assert.Nil(t, ids)
	assert.Equal(t, []int{0}, lister.requests)
}

func TestStream_YieldsMembersInPageOrder(t *testing.T) {
	lister := &fakeLister{pages: map[int][]client.Member{
		0: members("id1", "id2"),
		2: members("id3"),
	}}
	c := New(lister, 2)

	var got []string
	for res := range c.Stream(context.Background()) {
		require.NoError(t, res.Err)
		got = append(got, res.Member.ID)
	}

	assert.Equal(t, []string{"id1", "id2", "id3"}, got)
}

func TestStream_DeliversErrorAsFinalElement(t *testing.T) {
	lister := &fakeLister{
		pages:   map[int][]client.Member{0: members("id1")},
		failAt:  1,
		failErr: errors.New("boom"),
	}
	c := New(lister, 1)

	var memberCount, errCount int
	for res := range c.Stream(context.Background()) {
		if res.Err != nil {
			errCount++
		} else {
			memberCount++
		}
	}

	assert.Equal(t, 1, memberCount)
	assert.Equal(t, 1, errCount)
}

func TestCollectIDs_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lister := &fakeLister{pages: map[int][]client.Member{0: members("id1")}}
	c := New(lister, 1)

	ids, err := c.CollectIDs(ctx)
	require.Error(t, err)
	assert.Nil(t, ids)
}
