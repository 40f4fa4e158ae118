package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"service-availability-backend/config"
	"service-availability-backend/internal/logging"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("marketplace api unavailable")

// APIError is a non-2xx reply from the marketplace API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Body)
}

type response struct {
	status int
	body   []byte
}

// Client talks to the marketplace service endpoints. It never retries.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*response]
	logger  *zap.Logger
}

// NewClient builds a client from the remote section of the configuration.
func NewClient(cfg config.RemoteConfig, logger *zap.Logger) *Client {
	logger = logging.OrNop(logger).Named("remote")

	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			logger.Warn("invalid proxy url, not using a proxy", zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimitPerSec > 0 {
		limit = rate.Limit(cfg.RateLimitPerSec)
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	breaker := gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "marketplace",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Transport: transport, Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		breaker: breaker,
		logger:  logger,
	}
}

// GetService fetches one service document.
func (c *Client) GetService(ctx context.Context, id string) (*Service, error) {
	resp, err := c.do(ctx, http.MethodGet, "/services/"+url.PathEscape(id)+"/", "", nil)
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", id, err)
	}
	var svc Service
	if err := json.Unmarshal(resp.body, &svc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal service %s: %w", id, err)
	}
	return &svc, nil
}

// CreateService posts a new listing as a multipart form with every image attached.
func (c *Client) CreateService(ctx context.Context, form ServiceForm) (*Service, error) {
	body, contentType, err := multipartBody(form, "images")
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/services/", contentType, body)
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	var svc Service
	if err := json.Unmarshal(resp.body, &svc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal created service: %w", err)
	}
	return &svc, nil
}

// UpdateService patches a listing. Without new images the body is JSON; otherwise it
// is a multipart form carrying the first image under "image".
func (c *Client) UpdateService(ctx context.Context, id string, form ServiceForm) error {
	var (
		body        []byte
		contentType string
		err         error
	)
	if len(form.Images) == 0 {
		body, err = json.Marshal(map[string]any{
			"name":         form.Name,
			"description":  form.Description,
			"price":        form.Price,
			"type":         form.Type,
			"availability": form.Availability,
		})
		contentType = "application/json"
	} else {
		form.Images = form.Images[:1]
		body, contentType, err = multipartBody(form, "image")
	}
	if err != nil {
		return fmt.Errorf("failed to encode service %s: %w", id, err)
	}

	if _, err := c.do(ctx, http.MethodPatch, "/services/"+url.PathEscape(id)+"/", contentType, body); err != nil {
		return fmt.Errorf("update service %s: %w", id, err)
	}
	return nil
}

// DeleteImage removes one confirmed image.
func (c *Client) DeleteImage(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/service-images/"+url.PathEscape(id)+"/", "", nil); err != nil {
		return fmt.Errorf("delete image %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http request failed: %w", err)
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		r := &response{status: httpResp.StatusCode, body: data}
		if r.status >= http.StatusInternalServerError {
			return r, &APIError{Status: r.status, Body: errorText(r)}
		}
		return r, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		c.logger.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, err
	}
	if resp.status < 200 || resp.status >= 300 {
		c.logger.Warn("request rejected", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.status))
		return nil, &APIError{Status: resp.status, Body: errorText(resp)}
	}
	c.logger.Debug("request done", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.status))
	return resp, nil
}

// errorText falls back to the status text when the body is empty.
func errorText(r *response) string {
	if text := strings.TrimSpace(string(r.body)); text != "" {
		return text
	}
	return http.StatusText(r.status)
}

func multipartBody(form ServiceForm, imageField string) ([]byte, string, error) {
	availability, err := json.Marshal(form.Availability)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode availability: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"name", form.Name},
		{"description", form.Description},
		{"price", form.Price},
		{"type", form.Type},
		{"availability", string(availability)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}
	for _, img := range form.Images {
		part, err := w.CreateFormFile(imageField, img.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("failed to add image %s: %w", img.Filename, err)
		}
		if _, err := io.Copy(part, img.Body); err != nil {
			return nil, "", fmt.Errorf("failed to copy image %s: %w", img.Filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
