// Package syncclient drives the local-first sync loop: draining the queued
// mutations to the server, pulling deltas back and merging them into the
// local store.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
)

// Transport is the wire the engine talks over. The HTTP implementation below
// targets the server's sync routes; tests substitute fakes.
type Transport interface {
	Push(ctx context.Context, items []dto.PushItem) ([]dto.PushResult, error)
	Pull(ctx context.Context, since time.Time) (*dto.PullResponse, error)
	Full(ctx context.Context) (*dto.PullResponse, error)
	Status(ctx context.Context) (dto.SyncStatus, error)
}

// HTTPTransport talks JSON over HTTP to the sync API, authenticating with a
// bearer token.
type HTTPTransport struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPTransport creates a transport against baseURL (scheme and host, no
// trailing slash).
func NewHTTPTransport(baseURL, token string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body, into any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
	if into == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Push sends a batch of queued mutations.
func (t *HTTPTransport) Push(ctx context.Context, items []dto.PushItem) ([]dto.PushResult, error) {
	body := struct {
		Items []dto.PushItem `json:"items"`
	}{Items: items}
	var results []dto.PushResult
	if err := t.do(ctx, http.MethodPost, "/api/v1/sync/push", body, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Pull fetches records changed after since.
func (t *HTTPTransport) Pull(ctx context.Context, since time.Time) (*dto.PullResponse, error) {
	path := "/api/v1/sync/pull?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	var resp dto.PullResponse
	if err := t.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Full fetches the complete dataset.
func (t *HTTPTransport) Full(ctx context.Context) (*dto.PullResponse, error) {
	var resp dto.PullResponse
	if err := t.do(ctx, http.MethodGet, "/api/v1/sync/full", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches per-collection server counts.
func (t *HTTPTransport) Status(ctx context.Context) (dto.SyncStatus, error) {
	var status dto.SyncStatus
	if err := t.do(ctx, http.MethodGet, "/api/v1/sync/status", nil, &status); err != nil {
		return dto.SyncStatus{}, err
	}
	return status, nil
}
