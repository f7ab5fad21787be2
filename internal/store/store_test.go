package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnobt78/linkboard/pkg/linklist"
)

func TestStoreGetSet(t *testing.T) {
	s := New()
	assert.Nil(t, s.Get())

	list := &linklist.List{ID: "l1", Slug: "reading"}
	s.Set(list)
	assert.Same(t, list, s.Get())
}

func TestSubscribe(t *testing.T) {
	t.Run("listeners fire synchronously before Set returns", func(t *testing.T) {
		s := New()
		var seen []*linklist.List
		s.Subscribe(func(l *linklist.List) { seen = append(seen, l) })

		list := &linklist.List{ID: "l1"}
		s.Set(list)
		require.Len(t, seen, 1)
		assert.Same(t, list, seen[0])
	})

	t.Run("multiple subscribers all fire", func(t *testing.T) {
		s := New()
		count := 0
		s.Subscribe(func(*linklist.List) { count++ })
		s.Subscribe(func(*linklist.List) { count++ })
		s.Set(&linklist.List{})
		assert.Equal(t, 2, count)
	})

	t.Run("unsubscribe stops delivery and is idempotent", func(t *testing.T) {
		s := New()
		count := 0
		unsub := s.Subscribe(func(*linklist.List) { count++ })
		s.Set(&linklist.List{})
		unsub()
		unsub()
		s.Set(&linklist.List{})
		assert.Equal(t, 1, count)
	})

	t.Run("listener may read the store during notification", func(t *testing.T) {
		s := New()
		var got *linklist.List
		s.Subscribe(func(*linklist.List) { got = s.Get() })
		list := &linklist.List{ID: "l2"}
		s.Set(list)
		assert.Same(t, list, got)
	})
}
