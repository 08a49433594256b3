// Package api provides a minimal client for the match stats service that
// stores uploaded results.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pable/go-cs-matchstats/internal/upload"
)

const (
	uploadPath   = "/api/upload"
	mapStatsPath = "/api/map-stats"
)

var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// Client uploads match payloads to the stats service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for the service at baseURL. token may be empty
// when the service does not require authentication.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = upload.DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Name implements upload.Sink.
func (c *Client) Name() string { return "api" }

// mapStat is the subset of /api/map-stats rows needed for the existence check.
type mapStat struct {
	MatchID string `json:"match_id"`
}

// Exists reports whether the service already lists matchID.
func (c *Client) Exists(ctx context.Context, matchID string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, mapStatsPath, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, statusError(http.MethodGet, mapStatsPath, resp)
	}
	var rows []mapStat
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return false, fmt.Errorf("decode %s: %w", mapStatsPath, err)
	}
	for _, r := range rows {
		if r.MatchID == matchID {
			return true, nil
		}
	}
	return false, nil
}

// Insert posts p to the upload endpoint. HTTP 409 is reported as
// upload.ErrConflict.
func (c *Client) Insert(ctx context.Context, p upload.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, uploadPath, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case http.StatusConflict:
		return errors.Join(upload.ErrConflict, statusError(http.MethodPost, uploadPath, resp))
	default:
		return statusError(http.MethodPost, uploadPath, resp)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// statusError builds an error carrying the status code and a short body snippet.
func statusError(method, path string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return fmt.Errorf("%w: %s %s: HTTP %d: %s", ErrUnexpectedStatus, method, path, resp.StatusCode, snippet)
}
