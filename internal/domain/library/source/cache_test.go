package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"storyreel/internal/domain/library"
	"storyreel/internal/domain/story"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	calls int
	err   error
	index *library.Index
}

func (s *stubLister) ListStories(ctx context.Context, q library.Query) (*library.Index, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.index, nil
}

func TestIndexCache(t *testing.T) {
	dir := t.TempDir()
	stub := &stubLister{index: &library.Index{
		Stories:    []story.Entry{{ID: 7, Title: "Morning", Slug: "morning"}},
		Total:      1,
		TotalPages: 1,
	}}

	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	c := NewIndexCache(stub, dir, time.Minute)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	q := library.Query{Featured: true}

	index, err := c.ListStories(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "Morning", index.Stories[0].Title)
	assert.Equal(t, 1, stub.calls)

	t.Run("fresh entries skip the request", func(t *testing.T) {
		index, err := c.ListStories(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, 7, index.Stories[0].ID)
		assert.Equal(t, 1, stub.calls)
	})

	t.Run("queries are cached separately", func(t *testing.T) {
		_, err := c.ListStories(ctx, library.Query{Search: "night"})
		require.NoError(t, err)
		assert.Equal(t, 2, stub.calls)
	})

	t.Run("stale entries are served when offline", func(t *testing.T) {
		now = now.Add(time.Hour)
		stub.err = errors.New("offline")

		index, err := c.ListStories(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, 1, index.Total)
		assert.Equal(t, 3, stub.calls)
	})

	t.Run("no cache surfaces the error", func(t *testing.T) {
		_, err := c.ListStories(ctx, library.Query{Page: 4})
		assert.EqualError(t, err, "offline")
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, c.Clear())
		matches, _ := filepath.Glob(filepath.Join(dir, "index_*.json"))
		assert.Empty(t, matches)

		_, err := os.Stat(dir)
		assert.NoError(t, err)
	})
}
