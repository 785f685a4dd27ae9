package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/weftlabs/weft/internal/config"
)

type (
	// Client is the language-model completion collaborator. Implementations
	// take a prompt and return text plus usage metrics; everything else
	// about the model is opaque to the pipeline
	Client interface {
		Complete(context.Context, *Request) (*Response, error)
	}

	// Request is one completion call
	Request struct {
		System    string `json:"system,omitempty"`
		Prompt    string `json:"prompt"`
		MaxTokens int    `json:"max_tokens,omitempty"`
	}

	// Response carries the model output and its usage metrics
	Response struct {
		Text  string `json:"text"`
		Usage Usage  `json:"usage"`
	}

	// Usage reports token consumption for one completion call
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	}

	// HTTPClient talks to a completion endpoint over JSON/HTTP
	HTTPClient struct {
		httpClient *http.Client
		endpoint   string
		model      string
		apiKey     string
		maxTokens  int
	}

	completionRequest struct {
		Model     string `json:"model,omitempty"`
		System    string `json:"system,omitempty"`
		Prompt    string `json:"prompt"`
		MaxTokens int    `json:"max_tokens,omitempty"`
	}
)

var (
	ErrHTTPError       = errors.New("completion endpoint returned HTTP error")
	ErrEmptyCompletion = errors.New("completion endpoint returned no text")
)

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a completion client from model configuration
func NewHTTPClient(cfg *config.ModelConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultModelTimeout
	}
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		maxTokens: cfg.MaxTokens,
	}
}

// Complete performs one completion call against the configured endpoint
func (c *HTTPClient) Complete(
	ctx context.Context, req *Request,
) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	body, err := json.Marshal(completionRequest{
		Model:     c.model,
		System:    req.System,
		Prompt:    req.Prompt,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("Completion request failed",
			slog.String("endpoint", c.endpoint),
			slog.Any("error", err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d: %s",
			ErrHTTPError, resp.StatusCode, string(data))
	}

	var res Response
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	if res.Text == "" {
		return nil, ErrEmptyCompletion
	}

	slog.Debug("Completion finished",
		slog.String("model", c.model),
		slog.Int64("prompt_tokens", res.Usage.PromptTokens),
		slog.Int64("completion_tokens", res.Usage.CompletionTokens),
		slog.Duration("elapsed", time.Since(start)))
	return &res, nil
}
