package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arnobt78/linkboard/pkg/linklist"
)

// HTTPMetadata fetches page metadata from the enrichment service.
// Strictly best-effort: the importer proceeds with caller-supplied
// fields whenever this fails or times out.
type HTTPMetadata struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewHTTPMetadata creates an enrichment client. A non-positive timeout
// defaults to 10s; the timeout applies per Fetch call, layered under
// whatever deadline the caller's ctx already carries.
func NewHTTPMetadata(baseURL string, httpClient *http.Client, timeout time.Duration) *HTTPMetadata {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPMetadata{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
		timeout:    timeout,
	}
}

// Fetch implements MetadataClient.
func (c *HTTPMetadata) Fetch(ctx context.Context, target string) (*linklist.Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/api/metadata?url=" + url.QueryEscape(target)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, linklist.NewError(linklist.Classify(err), "fetch_metadata", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, classifyStatus("fetch_metadata", resp)
	}

	var meta linklist.Metadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, linklist.NewError(linklist.KindNetwork, "fetch_metadata", fmt.Errorf("failed to decode metadata: %w", err))
	}
	return &meta, nil
}
