package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MKhiriev/go-state-keeper/models"
)

// HTTPClientConfig configures the HTTP server adapter.
type HTTPClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// httpServerAdapter implements [ServerAdapter] over resty. The per-request
// timeout is the network-call boundary required by the concurrency model:
// no sync cycle can hang longer than the configured timeout per verb.
type httpServerAdapter struct {
	client *resty.Client

	mu    sync.RWMutex
	token string
}

// NewHTTPServerAdapter constructs a [ServerAdapter] talking to cfg.BaseURL.
func NewHTTPServerAdapter(cfg HTTPClientConfig) ServerAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &httpServerAdapter{client: cli, token: strings.TrimSpace(cfg.Token)}
}

func (h *httpServerAdapter) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

func (h *httpServerAdapter) bearer() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *httpServerAdapter) Pull(ctx context.Context, storeID string) (models.PullResponse, bool, error) {
	resp, err := h.authedRequest(ctx).Get("/api/state/" + storeID)
	if err != nil {
		return models.PullResponse{}, false, fmt.Errorf("%w: pull request: %w", ErrNetworkFailure, err)
	}
	if resp.StatusCode() == http.StatusNoContent {
		return models.PullResponse{}, false, nil
	}
	if err = mapHTTPError(resp); err != nil {
		return models.PullResponse{}, false, err
	}

	var pull models.PullResponse
	if err = json.Unmarshal(resp.Body(), &pull); err != nil {
		return models.PullResponse{}, false, fmt.Errorf("decode pull response: %w", err)
	}

	return pull, true, nil
}

func (h *httpServerAdapter) Push(ctx context.Context, storeID string, req models.PushRequest) (models.PushResponse, error) {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/api/state/" + storeID)
	if err != nil {
		return models.PushResponse{}, fmt.Errorf("%w: push request: %w", ErrNetworkFailure, err)
	}

	// A conflict rides on HTTP 409 with a regular response body: the server
	// copy was newer, so the client resolves and re-pushes.
	if resp.StatusCode() != http.StatusConflict {
		if err = mapHTTPError(resp); err != nil {
			return models.PushResponse{}, err
		}
	}

	var push models.PushResponse
	if err = json.Unmarshal(resp.Body(), &push); err != nil {
		return models.PushResponse{}, fmt.Errorf("decode push response: %w", err)
	}

	return push, nil
}

func (h *httpServerAdapter) Ping(ctx context.Context) error {
	resp, err := h.authedRequest(ctx).Get("/api/health")
	if err != nil {
		return fmt.Errorf("%w: ping: %w", ErrNetworkFailure, err)
	}
	return mapHTTPError(resp)
}

func (h *httpServerAdapter) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if token := h.bearer(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

func mapHTTPError(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(code)
	}

	switch {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: http %d: %s", ErrNetworkFailure, code, body)
	default:
		return fmt.Errorf("http %d: %s", code, body)
	}
}
