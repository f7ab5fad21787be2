package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnobt78/linkboard/internal/kvcache"
	"github.com/arnobt78/linkboard/pkg/linklist"
)

// countingSource records Fetch calls and returns a scripted result.
type countingSource struct {
	calls int
	meta  *linklist.Metadata
	err   error
}

func (s *countingSource) Fetch(ctx context.Context, target string) (*linklist.Metadata, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.meta, nil
}

func TestCachedMetadata(t *testing.T) {
	ctx := context.Background()

	t.Run("second lookup served from cache", func(t *testing.T) {
		source := &countingSource{meta: &linklist.Metadata{Title: "Cached Title"}}
		cached := NewCachedMetadata(source, kvcache.NewMemory(), time.Minute)

		first, err := cached.Fetch(ctx, "https://example.com/a")
		require.NoError(t, err)
		assert.Equal(t, "Cached Title", first.Title)

		second, err := cached.Fetch(ctx, "https://example.com/a")
		require.NoError(t, err)
		assert.Equal(t, "Cached Title", second.Title)
		assert.Equal(t, 1, source.calls, "cache hit skips the source")
	})

	t.Run("distinct urls cached separately", func(t *testing.T) {
		source := &countingSource{meta: &linklist.Metadata{Title: "T"}}
		cached := NewCachedMetadata(source, kvcache.NewMemory(), time.Minute)

		_, err := cached.Fetch(ctx, "https://example.com/a")
		require.NoError(t, err)
		_, err = cached.Fetch(ctx, "https://example.com/b")
		require.NoError(t, err)
		assert.Equal(t, 2, source.calls)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		source := &countingSource{err: assert.AnError}
		cached := NewCachedMetadata(source, kvcache.NewMemory(), time.Minute)

		_, err := cached.Fetch(ctx, "https://example.com/flaky")
		require.Error(t, err)

		// Source recovers; the next lookup goes through.
		source.err = nil
		source.meta = &linklist.Metadata{Title: "Recovered"}
		meta, err := cached.Fetch(ctx, "https://example.com/flaky")
		require.NoError(t, err)
		assert.Equal(t, "Recovered", meta.Title)
		assert.Equal(t, 2, source.calls)
	})
}
