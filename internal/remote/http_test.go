package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnobt78/linkboard/pkg/linklist"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *HTTPStore {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPStore(HTTPStoreOptions{BaseURL: srv.URL, Token: "tok"})
}

func TestFetchList(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/lists/reading", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(linklist.List{ID: "l1", Slug: "reading"})
	})

	list, err := store.FetchList(context.Background(), "reading")
	require.NoError(t, err)
	assert.Equal(t, "l1", list.ID)
}

func TestCommitAdd(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/lists/l1/items", r.URL.Path)

		var item linklist.Item
		require.NoError(t, json.NewDecoder(r.Body).Decode(&item))
		assert.Equal(t, "https://example.com", item.URL)

		json.NewEncoder(w).Encode(AddResult{
			Item: item,
			List: &linklist.List{ID: "l1", Items: []linklist.Item{item}},
		})
	})

	res, err := store.CommitAdd(context.Background(), "l1", linklist.Item{ID: "i1", URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "i1", res.Item.ID)
	require.NotNil(t, res.List)
	assert.Len(t, res.List.Items, 1)
}

func TestCommitReorder(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/lists/l1/reorder", r.URL.Path)

		var body struct {
			ItemIDs []string `json:"item_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"b", "a"}, body.ItemIDs)

		json.NewEncoder(w).Encode(ListResult{List: &linklist.List{ID: "l1"}})
	})

	res, err := store.CommitReorder(context.Background(), "l1", []string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, "l1", res.List.ID)
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"401 is permission", http.StatusUnauthorized, linklist.IsPermission},
		{"403 is permission", http.StatusForbidden, linklist.IsPermission},
		{"409 is conflict", http.StatusConflict, linklist.IsConflict},
		{"504 is timeout", http.StatusGatewayTimeout, linklist.IsTimeout},
		{"422 is validation", http.StatusUnprocessableEntity, func(err error) bool {
			return linklist.Classify(err) == linklist.KindValidation
		}},
		{"500 is network", http.StatusInternalServerError, func(err error) bool {
			return linklist.Classify(err) == linklist.KindNetwork
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			})
			_, err := store.FetchList(context.Background(), "x")
			require.Error(t, err)
			assert.True(t, tc.check(err), "got %v", err)
		})
	}
}

func TestContextCancellationIsAborted(t *testing.T) {
	blocked := make(chan struct{})
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	})
	t.Cleanup(func() { close(blocked) })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := store.FetchList(ctx, "x")
	require.Error(t, err)
	assert.True(t, linklist.IsAborted(err))
}

func TestMetadataFetch(t *testing.T) {
	t.Run("returns metadata", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/metadata", r.URL.Path)
			assert.Equal(t, "https://example.com/post", r.URL.Query().Get("url"))
			json.NewEncoder(w).Encode(linklist.Metadata{Title: "A post", SiteName: "example"})
		}))
		t.Cleanup(srv.Close)

		client := NewHTTPMetadata(srv.URL, nil, time.Second)
		meta, err := client.Fetch(context.Background(), "https://example.com/post")
		require.NoError(t, err)
		assert.Equal(t, "A post", meta.Title)
	})

	t.Run("slow service times out", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(func() { close(release); srv.Close() })

		client := NewHTTPMetadata(srv.URL, nil, 30*time.Millisecond)
		_, err := client.Fetch(context.Background(), "https://example.com")
		require.Error(t, err)
		assert.True(t, linklist.IsTimeout(err))
	})
}
