package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"forge/internal/logging"
	"forge/internal/model"
	"forge/internal/ratelimit"
	"forge/internal/robustness"

	"github.com/ollama/ollama/api"
)

// Message is a single role-tagged turn in a conversation, independent of wire format.
// Role is "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// CallOptions carries the Router's resolved model and the Classifier's size axis into Call.
type CallOptions struct {
	Spec        model.Spec
	Size        model.Size // scales the context window: small 1.0x, medium 1.5x, large 2.0x
	Temperature float32    // 0 means "use the role's sampling default"
}

// ResponseChunk is one token (or terminal event) delivered by a streaming call.
type ResponseChunk struct {
	Text         string
	Done         bool
	Interrupted  bool // stream ended via cancellation rather than natural completion
	Error        error
	InputTokens  int
	OutputTokens int
}

// StreamingResponse streams tokens in production order and exposes a blocking Collect
// for callers that just want the final string.
type StreamingResponse struct {
	Chunks <-chan ResponseChunk
	Done   <-chan struct{}
}

// Collect drains the stream and returns the final text. On cancellation it still returns
// whatever text had accumulated, wrapped in a *Cancelled error — callers must not discard
// partial output.
func (r *StreamingResponse) Collect(ctx context.Context) (string, error) {
	var b strings.Builder
	for {
		select {
		case chunk, ok := <-r.Chunks:
			if !ok {
				return b.String(), nil
			}
			if chunk.Error != nil {
				return b.String(), chunk.Error
			}
			b.WriteString(chunk.Text)
			if chunk.Done {
				if chunk.Interrupted {
					return b.String(), &Cancelled{PartialText: b.String()}
				}
				return b.String(), nil
			}
		case <-ctx.Done():
			return b.String(), &Cancelled{PartialText: b.String()}
		}
	}
}

// Config configures the Model Client's connection to a local or remote Ollama server.
type Config struct {
	BaseURL     string // Default: "http://localhost:11434"
	APIKey      string // Optional, for remote Ollama servers with auth
	HTTPTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 120 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
}

// authTransport adds an Authorization header, used only for remote Ollama servers.
type authTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.apiKey)
	return t.base.RoundTrip(clone)
}

// Client is the Model Client: it streams chat completions from Ollama, applies
// role-based sampling, and protects the connection with a circuit breaker and
// a token-bucket rate limiter.
type Client struct {
	raw     *api.Client
	cfg     Config
	breaker *robustness.CircuitBreaker
	limiter *ratelimit.Limiter
	status  StatusCallback
	mu      sync.RWMutex
}

// New creates a Model Client against a local (or configured remote) Ollama server.
func New(cfg Config) (*Client, error) {
	cfg.setDefaults()

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}
	if baseURL.Scheme == "http" {
		host := baseURL.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			logging.Warn("model server connection uses unencrypted HTTP to remote host",
				"host", host, "recommendation", "use HTTPS for remote Ollama servers")
		}
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.APIKey != "" {
		httpClient.Transport = &authTransport{base: http.DefaultTransport, apiKey: cfg.APIKey}
	}

	limiterCfg := ratelimit.DefaultConfig()
	limiterCfg.RequestsPerMinute = 120

	return &Client{
		raw:     api.NewClient(baseURL, httpClient),
		cfg:     cfg,
		breaker: robustness.NewCircuitBreaker(5, 30*time.Second),
		limiter: ratelimit.NewLimiter(limiterCfg),
		status:  &DefaultStatusCallback{},
	}, nil
}

// SetStatusCallback sets the callback used to report retries, rate-limit waits, and
// recoverable errors.
func (c *Client) SetStatusCallback(cb StatusCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb == nil {
		cb = &DefaultStatusCallback{}
	}
	c.status = cb
}

// Call streams a chat completion for role against the model the Router already resolved.
// messages is the full ordered turn history. The returned stream applies role sampling
// (temperature, and <think> stripping where the role's profile calls for it) before
// tokens reach the caller.
func (c *Client) Call(ctx context.Context, role model.Role, messages []Message, opts CallOptions) (*StreamingResponse, error) {
	profile := SamplingFor(role)
	temp := profile.Temperature
	if opts.Temperature > 0 {
		temp = opts.Temperature
	}

	req := &api.ChatRequest{
		Model:    opts.Spec.Name,
		Messages: toAPIMessages(messages),
		Stream:   Ptr(true),
		Options: map[string]interface{}{
			"temperature": temp,
			"num_ctx":     opts.Spec.ContextWindowFor(opts.Size),
		},
	}

	return c.streamChat(ctx, req, profile.StripReasoningTrace)
}

func toAPIMessages(messages []Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, api.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// estimateRequestTokens sums ratelimit.EstimateTokens over every message in
// req, so the rate limiter's reservation scales with the actual prompt
// instead of a flat guess.
func estimateRequestTokens(req *api.ChatRequest) int64 {
	var total int64
	for _, m := range req.Messages {
		total += ratelimit.EstimateTokens(m.Content)
	}
	return total
}

// streamChat performs the streaming request with retry, rate limiting, and the circuit
// breaker layered on top: transport failures retry with exponential backoff up to
// MaxRetries before surfacing a TransportError.
func (c *Client) streamChat(ctx context.Context, req *api.ChatRequest, stripTrace bool) (*StreamingResponse, error) {
	estimatedTokens := estimateRequestTokens(req)
	if err := c.limiter.AcquireWithContext(ctx, estimatedTokens); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	c.mu.RLock()
	cb := c.status
	c.mu.RUnlock()

	var lastErr error
	maxDelay := 30 * time.Second

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(c.cfg.RetryDelay, attempt-1, maxDelay)
			cb.OnRetry(attempt, c.cfg.MaxRetries, delay, reasonFor(lastErr))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				c.limiter.ReturnTokens(1, estimatedTokens)
				return nil, ctx.Err()
			}
		}

		var resp *StreamingResponse
		err := c.breaker.Execute(ctx, func() error {
			var innerErr error
			resp, innerErr = c.doStreamChat(ctx, req, stripTrace, cb)
			return innerErr
		})
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, robustness.ErrCircuitOpen) {
			c.limiter.ReturnTokens(1, estimatedTokens)
			return nil, &TransportError{Err: err}
		}

		lastErr = err
		if !IsRetryableError(err) {
			c.limiter.ReturnTokens(1, estimatedTokens)
			return nil, classifyError(err, req.Model)
		}
		logging.Warn("model call failed, will retry", "attempt", attempt, "error", err)
	}

	c.limiter.ReturnTokens(1, estimatedTokens)
	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.cfg.MaxRetries, classifyError(lastErr, req.Model))
}

// doStreamChat performs a single streaming chat request, stripping reasoning traces
// incrementally as the raw stream grows. The full, unstripped accumulation is kept
// so the stripper only ever has to emit the delta beyond what it already sent.
func (c *Client) doStreamChat(ctx context.Context, req *api.ChatRequest, stripTrace bool, cb StatusCallback) (*StreamingResponse, error) {
	chunks := make(chan ResponseChunk, 16)
	done := make(chan struct{})

	go func() {
		defer close(chunks)
		defer close(done)

		var inputTokens, outputTokens int
		var raw strings.Builder
		var sent int

		err := c.raw.Chat(ctx, req, func(resp api.ChatResponse) error {
			chunk := ResponseChunk{}

			if resp.Message.Content != "" {
				raw.WriteString(resp.Message.Content)
				if stripTrace {
					stripped := stripReasoningTraces(raw.String())
					if sent < len(stripped) {
						chunk.Text = stripped[sent:]
						sent = len(stripped)
					}
				} else {
					chunk.Text = resp.Message.Content
				}
			}

			if resp.Done {
				chunk.Done = true
				if resp.PromptEvalCount > 0 {
					inputTokens = resp.PromptEvalCount
				}
				if resp.EvalCount > 0 {
					outputTokens = resp.EvalCount
				}
				chunk.InputTokens = inputTokens
				chunk.OutputTokens = outputTokens
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		if err != nil {
			if ctx.Err() != nil {
				select {
				case chunks <- ResponseChunk{Interrupted: true, Done: true}:
				default:
				}
				return
			}
			if cb != nil && IsRetryableError(err) {
				cb.OnError(err, true)
			}
			select {
			case chunks <- ResponseChunk{Error: classifyError(err, req.Model), Done: true}:
			case <-ctx.Done():
			}
		}
	}()

	return &StreamingResponse{Chunks: chunks, Done: done}, nil
}

func reasonFor(err error) string {
	if err == nil {
		return "API error"
	}
	reason := err.Error()
	switch {
	case strings.Contains(reason, "connection refused"):
		return "model server not running"
	case strings.Contains(reason, "timeout"):
		return "timeout"
	case len(reason) > 50:
		return reason[:47] + "..."
	default:
		return reason
	}
}

// classifyError turns a raw transport/API error into one of the Model Client's typed
// errors so callers can branch on failure kind rather than string-matching.
func classifyError(err error, modelName string) error {
	if err == nil {
		return nil
	}
	if IsModelNotFoundError(err) {
		return &ModelMissing{Model: modelName}
	}
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return &TransportError{Err: err}
	}
	return err
}

// IsModelNotFoundError reports whether err indicates the requested model isn't installed.
func IsModelNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	if strings.Contains(errStr, "is not installed") ||
		(strings.Contains(errStr, "model") && strings.Contains(errStr, "not found")) {
		return true
	}
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == 404 {
		return true
	}
	return false
}

// ListModels returns the names of models installed on the server (GET /api/tags).
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.raw.List(ctx)
	if err != nil {
		return nil, classifyError(err, "")
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// IsModelAvailable checks if a model is installed locally, tolerating a missing
// ":latest" tag on either side of the comparison.
func (c *Client) IsModelAvailable(ctx context.Context, modelName string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m == modelName || m == modelName+":latest" || strings.HasPrefix(m, modelName+":") {
			return true, nil
		}
	}
	return false, nil
}

// PullProgress reports byte-accurate download progress for PullModel.
type PullProgress struct {
	Status    string
	Digest    string
	Total     int64
	Completed int64
	Percent   float64
}

// PullModel downloads a model from the Ollama library (POST /api/pull), streaming
// progress to progressFn.
func (c *Client) PullModel(ctx context.Context, modelName string, progressFn func(PullProgress)) error {
	req := &api.PullRequest{Model: modelName}

	return c.raw.Pull(ctx, req, func(resp api.ProgressResponse) error {
		if progressFn == nil {
			return nil
		}
		var percent float64
		if resp.Total > 0 {
			percent = float64(resp.Completed) / float64(resp.Total) * 100
		}
		progressFn(PullProgress{
			Status:    resp.Status,
			Digest:    resp.Digest,
			Total:     resp.Total,
			Completed: resp.Completed,
			Percent:   percent,
		})
		return nil
	})
}

// Healthcheck verifies the model server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	_, err := c.raw.List(ctx)
	if err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

// Ptr returns a pointer to v; used for Ollama's optional *bool request fields.
func Ptr[T any](v T) *T { return &v }
