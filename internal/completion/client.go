package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stewardbot/steward/internal/core"
)

// defaultTimeout bounds one completion round-trip. The upstream service has
// no timeout of its own, so the client must carry one.
const defaultTimeout = 60 * time.Second

// ChatMessage is one message in a completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body for chat completions.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// ChatResponse is the response from chat completions. Only
// choices[0].message.content is consumed; its absence is an empty reply.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Role    string `json:"role"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client calls an OpenAI-compatible completion endpoint and turns free-text
// replies into Decisions. It implements core.CompletionClient.
type Client struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	HTTP        *http.Client
	Policy      Policy
	Log         *slog.Logger
}

// NewClient creates a client with the default retry policy and timeout.
func NewClient(baseURL, apiKey, model string, temperature float64, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Model:       model,
		Temperature: temperature,
		HTTP:        &http.Client{Timeout: defaultTimeout},
		Policy:      DefaultPolicy(),
		Log:         log,
	}
}

// Complete sends the prompt as the sole instruction context and returns the
// extracted Decision. Transport failures, empty replies, and parse failures
// are retried per the policy; after the budget is spent a terminal Decision
// with a diagnostic answer and no function calls is returned, so the caller
// never has to handle an error.
func (c *Client) Complete(ctx context.Context, prompt string) core.Decision {
	var lastErr error
	for attempt := 1; attempt <= c.Policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.Policy.Backoff(attempt-1)); err != nil {
				lastErr = err
				break
			}
		}

		raw, err := c.send(ctx, prompt)
		if err != nil {
			lastErr = err
			c.Log.Warn("completion attempt failed", "attempt", attempt, "cause", "transport", "error", err)
			continue
		}

		dec, err := ExtractDecision(raw)
		if err != nil {
			lastErr = err
			c.Log.Warn("completion attempt failed", "attempt", attempt, "cause", "extraction", "error", err)
			continue
		}
		return dec
	}

	c.Log.Error("completion retries exhausted", "attempts", c.Policy.MaxAttempts, "error", lastErr)
	return core.Decision{
		Answer: fmt.Sprintf(
			"I wasn't able to get a usable reply from the language model after %d attempts (last problem: %v). Please try again in a moment.",
			c.Policy.MaxAttempts, lastErr),
		Reasoning:     "completion retries exhausted",
		FunctionCalls: []core.FunctionCallRequest{},
	}
}

// send performs one completion round-trip and returns the raw reply content.
func (c *Client) send(ctx context.Context, prompt string) (string, error) {
	if c.Model == "" {
		return "", fmt.Errorf("completion: model not set")
	}
	body := ChatRequest{
		Model:       c.Model,
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		Temperature: c.Temperature,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion: HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var out ChatResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return "", fmt.Errorf("completion: decode: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("completion: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", ErrEmptyReply
	}
	return out.Choices[0].Message.Content, nil
}
