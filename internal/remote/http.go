package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arnobt78/linkboard/pkg/linklist"
)

// HTTPStoreOptions configures the HTTP remote store client.
type HTTPStoreOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	UserAgent  string
}

// HTTPStore implements Store against the linkboard REST backend.
// No automatic retry is built in: a failed call is reported to the
// caller, whose recovery is a canonical refetch, not a replay.
type HTTPStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	userAgent  string
}

// NewHTTPStore creates an HTTP-backed remote store client.
func NewHTTPStore(opts HTTPStoreOptions) *HTTPStore {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTPStore{
		baseURL:    baseURL,
		token:      opts.Token,
		httpClient: httpClient,
		userAgent:  strings.TrimSpace(opts.UserAgent),
	}
}

// FetchList implements Store.
func (c *HTTPStore) FetchList(ctx context.Context, slug string) (*linklist.List, error) {
	var out linklist.List
	path := "/api/lists/" + url.PathEscape(slug)
	if err := c.do(ctx, "fetch_list", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CommitAdd implements Store.
func (c *HTTPStore) CommitAdd(ctx context.Context, listID string, item linklist.Item) (*AddResult, error) {
	var out AddResult
	path := fmt.Sprintf("/api/lists/%s/items", url.PathEscape(listID))
	if err := c.do(ctx, "commit_add", http.MethodPost, path, item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CommitEdit implements Store.
func (c *HTTPStore) CommitEdit(ctx context.Context, listID, itemID string, patch ItemPatch) (*EditResult, error) {
	var out EditResult
	path := fmt.Sprintf("/api/lists/%s/items/%s", url.PathEscape(listID), url.PathEscape(itemID))
	if err := c.do(ctx, "commit_edit", http.MethodPatch, path, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CommitReorder implements Store.
func (c *HTTPStore) CommitReorder(ctx context.Context, listID string, itemIDs []string) (*ListResult, error) {
	var out ListResult
	body := struct {
		ItemIDs []string `json:"item_ids"`
	}{ItemIDs: itemIDs}
	path := fmt.Sprintf("/api/lists/%s/reorder", url.PathEscape(listID))
	if err := c.do(ctx, "commit_reorder", http.MethodPut, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CommitArchive implements Store.
func (c *HTTPStore) CommitArchive(ctx context.Context, listID, itemID string) (*ListResult, error) {
	return c.itemAction(ctx, "commit_archive", listID, itemID, "archive")
}

// CommitRestore implements Store.
func (c *HTTPStore) CommitRestore(ctx context.Context, listID, itemID string) (*ListResult, error) {
	return c.itemAction(ctx, "commit_restore", listID, itemID, "restore")
}

// CommitDelete implements Store.
func (c *HTTPStore) CommitDelete(ctx context.Context, listID, itemID string) (*ListResult, error) {
	var out ListResult
	path := fmt.Sprintf("/api/lists/%s/items/%s", url.PathEscape(listID), url.PathEscape(itemID))
	if err := c.do(ctx, "commit_delete", http.MethodDelete, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CommitClick implements Store.
func (c *HTTPStore) CommitClick(ctx context.Context, listID, itemID string) (*EditResult, error) {
	var out EditResult
	path := fmt.Sprintf("/api/lists/%s/items/%s/click", url.PathEscape(listID), url.PathEscape(itemID))
	if err := c.do(ctx, "commit_click", http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPStore) itemAction(ctx context.Context, op, listID, itemID, action string) (*ListResult, error) {
	var out ListResult
	path := fmt.Sprintf("/api/lists/%s/items/%s/%s", url.PathEscape(listID), url.PathEscape(itemID), action)
	if err := c.do(ctx, op, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPStore) do(ctx context.Context, op, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return linklist.NewError(linklist.Classify(err), op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyStatus(op, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return linklist.NewError(linklist.KindNetwork, op, fmt.Errorf("failed to decode response: %w", err))
		}
	}
	return nil
}

// classifyStatus maps an HTTP error status onto the engine's taxonomy.
func classifyStatus(op string, resp *http.Response) error {
	// Bounded read so a misbehaving backend cannot balloon error messages.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return linklist.NewError(linklist.KindPermission, op, cause)
	case http.StatusNotFound:
		return linklist.NewError(linklist.KindNetwork, op, fmt.Errorf("%w: %v", linklist.ErrNotFound, cause))
	case http.StatusConflict:
		return linklist.NewError(linklist.KindConflict, op, cause)
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return linklist.NewError(linklist.KindValidation, op, cause)
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return linklist.NewError(linklist.KindTimeout, op, cause)
	default:
		return linklist.NewError(linklist.KindNetwork, op, cause)
	}
}
