package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient makes REST calls to the help-desk backend.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g.
// "http://127.0.0.1:8080"). timeout bounds every request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// RequestSession sends POST /help/session.
func (c *HTTPClient) RequestSession(ctx context.Context, customerName string) (*SessionResponse, error) {
	var out SessionResponse
	if err := c.post(ctx, "/help/session", SessionRequest{CustomerName: customerName}, &out); err != nil {
		return nil, err
	}
	if out.APIKey == "" || out.SessionID == "" || out.Token == "" {
		return nil, fmt.Errorf("POST /help/session: incomplete credentials")
	}
	return &out, nil
}

// JoinQueue sends POST /help/queue.
func (c *HTTPClient) JoinQueue(ctx context.Context, sessionID string) (*QueueResponse, error) {
	var out QueueResponse
	if err := c.post(ctx, "/help/queue", QueueRequest{SessionID: sessionID}, &out); err != nil {
		return nil, err
	}
	if out.QueueID == "" {
		return nil, fmt.Errorf("POST /help/queue: empty queue id")
	}
	return &out, nil
}

// Dequeue sends POST /help/queue/{queueId} with the delete override. Only
// completion matters; the response body is discarded.
func (c *HTTPClient) Dequeue(ctx context.Context, queueID string) error {
	return c.post(ctx, "/help/queue/"+url.PathEscape(queueID), DequeueRequest{Method: MethodDelete}, nil)
}

// Ping sends GET /help/ping so the backend can record client activity for
// the API key.
func (c *HTTPClient) Ping(ctx context.Context, apiKey string) error {
	return c.get(ctx, "/help/ping?api_key="+url.QueryEscape(apiKey), nil)
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, string(body))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s: %d %s", path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
