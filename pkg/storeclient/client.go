// Package storeclient talks to the store service that owns storefront records.
package storeclient

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
)

// Store is the subset of a storefront the store service returns on create.
type Store struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StatusError reports a non-2xx answer from the store service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("store service responded %d: %s", e.StatusCode, e.Body)
}

// Client is a narrow synchronous client. It does not retry.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for baseURL. A zero timeout falls back to five seconds.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("store service base url is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}, nil
}

type createRequest struct {
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Create registers a store owned by ownerID.
func (c *Client) Create(ctx context.Context, ownerID, name, description string) (*Store, error) {
	payload, err := json.Marshal(createRequest{OwnerID: ownerID, Name: name, Description: description})
	if err != nil {
		return nil, fmt.Errorf("encode store request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/stores", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build store request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call store service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read store response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	// Accept both a bare store object and the {"data": {...}} envelope.
	var envelope struct {
		Data *Store `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil && envelope.Data.ID != "" {
		return envelope.Data, nil
	}
	var store Store
	if err := json.Unmarshal(body, &store); err != nil {
		return nil, fmt.Errorf("decode store response: %w", err)
	}
	if store.ID == "" {
		return nil, errors.New("store service returned no store id")
	}
	return &store, nil
}
