package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spherical/glance/internal/domain"
	"github.com/spherical/glance/internal/observability"
)

const (
	openRouterURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel  = "google/gemini-2.5-flash"
)

// Client handles communication with the OpenRouter chat completions API
type Client struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
	retry      *RetryConfig
	logger     *observability.Logger
}

// Option configures a Client
type Option func(*Client)

// WithURL overrides the completions endpoint.
func WithURL(url string) Option {
	return func(c *Client) { c.url = url }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryConfig replaces the default retry policy.
func WithRetryConfig(cfg *RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// Request represents the API request structure
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Response represents the API response structure
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Choice represents a single completion choice
type Choice struct {
	Delta        Delta  `json:"delta"`
	Message      Delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Delta represents a message delta in streaming response
type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// NewClient creates a new LLM client
func NewClient(apiKey, model string, opts ...Option) *Client {
	if model == "" {
		model = defaultModel
	}

	c := &Client{
		apiKey:     apiKey,
		model:      model,
		url:        openRouterURL,
		httpClient: &http.Client{},
		retry:      DefaultRetryConfig(),
		logger:     observability.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model the client sends requests to.
func (c *Client) Model() string {
	return c.model
}

// complete sends a single user message and returns the streamed reply text
func (c *Client) complete(ctx context.Context, parts ...ContentPart) (string, error) {
	body, err := json.Marshal(&Request{
		Model:    c.model,
		Messages: []Message{{Role: "user", Content: parts}},
		Stream:   true,
	})
	if err != nil {
		return "", domain.APIError("Failed to marshal request", err)
	}

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("HTTP-Referer", "https://github.com/spherical/glance")
		req.Header.Set("X-Title", "Glance Text Reader")

		return c.httpClient.Do(req)
	})
	if err != nil {
		return "", domain.APIError("Failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", domain.APIError(fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(bodyBytes)), nil)
	}

	return c.parseStream(resp.Body)
}

// parseStream collects the Server-Sent Events stream into one string
func (c *Client) parseStream(body io.Reader) (string, error) {
	var out strings.Builder
	parser := NewStreamParser(body)
	for {
		chunk, err := parser.Next()
		if err != nil {
			return "", domain.APIError("Failed to parse stream", err)
		}
		out.WriteString(chunk.Content)
		if chunk.Done {
			return out.String(), nil
		}
	}
}
