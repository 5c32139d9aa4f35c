package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fithero/planner/internal/config"
	"fithero/planner/internal/domain"
	"fithero/planner/internal/logger"
)

// maxBodyBytes caps how much of a response is read into memory.
const maxBodyBytes = 8 << 20

// StatusError is returned for non-2xx replies.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai service returned %d: %s", e.Code, e.Body)
}

// HTTPClient calls the AI service over HTTP.
type HTTPClient struct {
	baseURL     string
	workoutPath string
	mealPath    string
	timeout     time.Duration
	client      *http.Client
	log         *logger.Logger
}

func NewHTTPClient(cfg config.AIConfig, log *logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		workoutPath: cfg.WorkoutPath,
		mealPath:    cfg.MealPath,
		timeout:     cfg.Timeout,
		client:      &http.Client{},
		log:         logger.OrNop(log).With("component", "AIGenerator"),
	}
}

func (c *HTTPClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	path := c.workoutPath
	if req.Type == domain.PlanTypeMeal {
		path = c.mealPath
	}
	body, err := json.Marshal(req.Payload())
	if err != nil {
		return nil, fmt.Errorf("encode ai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.log.Warn("ai call failed", "path", path, "elapsed", time.Since(start), "error", err)
		return nil, fmt.Errorf("call ai service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read ai response: %w", err)
	}
	c.log.Info("ai call finished", "path", path, "status", resp.StatusCode, "bytes", len(raw), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(raw)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet}
	}

	out := Classify(raw)
	c.log.Debug("ai response classified", "kind", out.Kind.String())
	return out, nil
}
