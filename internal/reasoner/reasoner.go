package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urko/taskmill/internal/log"
)

// Request is one reasoning request against the external language model.
type Request struct {
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Reasoner is the boundary to the external reasoning step. Implementations
// are treated as unreliable: slow, flaky and possibly returning malformed
// output. Callers that expect structure must handle garbage as a
// non-fatal outcome.
type Reasoner interface {
	Reason(ctx context.Context, req Request) (string, error)
}

// ClientConfig is the configuration for the OpenAI-compatible HTTP client.
type ClientConfig struct {
	// BaseURL is the endpoint root, e.g. "http://localhost:1234/v1".
	BaseURL string
	// Model is the model name requested from the endpoint.
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "reasoner.Client"})
	return nil
}

// Client is a Reasoner backed by an OpenAI-compatible chat completions
// endpoint (LM Studio, llama.cpp server, and friends all speak it).
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a new OpenAI-compatible reasoner client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Reason sends the prompt to the chat completions endpoint and returns the
// raw text of the first choice.
func (c *Client) Reason(ctx context.Context, req Request) (string, error) {
	body := chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
		Stream:   false,
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = &req.MaxTokens
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("could not marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("could not call reasoning endpoint: %w", err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reasoning endpoint returned status %d: %s", resp.StatusCode, string(respData))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respData, &chatResp); err != nil {
		return "", fmt.Errorf("could not unmarshal response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("reasoning endpoint error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("reasoning endpoint returned no choices")
	}

	c.logger.Debugf("Reasoning call took %s", time.Since(start))

	return chatResp.Choices[0].Message.Content, nil
}
