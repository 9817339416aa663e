package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultEndpoint is the Anthropic messages API endpoint.
const DefaultEndpoint = "https://api.anthropic.com/v1/messages"

// AnthropicClient analyzes journal entries via the Anthropic messages API.
// It satisfies the Analyzer interface.
type AnthropicClient struct {
	endpoint  string
	apiKey    string
	model     string
	maxTokens int
	http      *http.Client
}

// NewAnthropicClient creates a client for the given credentials. An empty
// endpoint falls back to DefaultEndpoint; timeout bounds a single API call
// (zero means 60s).
func NewAnthropicClient(endpoint, apiKey, model string, timeout time.Duration) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("analyzer api key not set")
	}
	if model == "" {
		return nil, fmt.Errorf("analyzer model not set")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AnthropicClient{
		endpoint:  endpoint,
		apiKey:    apiKey,
		model:     model,
		maxTokens: 1024,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Analyze sends the entry and health context through the messages API and
// parses the response via the fallback chain in parse.go.
func (c *AnthropicClient) Analyze(ctx context.Context, content, healthContext string) (*Result, error) {
	raw, err := c.callAPI(ctx, BuildPrompt(content, healthContext))
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	return ParseResult(raw)
}

func (c *AnthropicClient) callAPI(ctx context.Context, prompt string) (string, error) {
	reqBody := apiRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []apiMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode, clip(string(body), 200))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("api error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return apiResp.Content[0].Text, nil
}
