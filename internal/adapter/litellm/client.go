// Package litellm provides the HTTP client for the LiteLLM proxy that backs
// both language-model collaborators of the core: routing classification and
// final narrative synthesis.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/resilience"
)

// classifyPrompt instructs the routing model to answer with exactly one step
// name. Anything else is coerced to finish by the caller.
const classifyPrompt = `You route pension analysis requests to one specialist.
Answer with exactly one word from this list and nothing else:
risk - risk tolerance, portfolio volatility, investment risk questions
fraud - suspicious activity, unauthorized access, anomalous transactions
projection - retirement savings growth, future balance, goal progress
finish - greetings, thanks, anything outside pension analysis`

// synthesisPrompt frames the final narrative. The guardrail screens the
// output afterwards; the prompt itself stays instruction-light.
const synthesisPrompt = `You are a pension analysis assistant. Summarize the
gathered worker results below into a short, clear answer for the member.
Report only what the data shows. Do not recommend specific investments.`

// Client talks to the LiteLLM proxy's OpenAI-compatible completions API.
type Client struct {
	baseURL        string
	masterKey      string
	routeModel     string
	synthesisModel string
	maxTokens      int
	httpClient     *http.Client
	breaker        *resilience.Breaker
}

// NewClient creates a proxy client. routeModel handles classification,
// synthesisModel the final narrative.
func NewClient(baseURL, masterKey, routeModel, synthesisModel string, maxTokens int) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		masterKey:      masterKey,
		routeModel:     routeModel,
		synthesisModel: synthesisModel,
		maxTokens:      maxTokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Classify asks the routing model for the next step of a fresh query.
func (c *Client) Classify(ctx context.Context, conversation string) (flow.Step, error) {
	text, err := c.complete(ctx, c.routeModel, classifyPrompt, conversation, 8)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	return flow.ParseStep(strings.ToLower(strings.TrimSpace(text))), nil
}

// Synthesize produces the final user-facing narrative from the transcript.
func (c *Client) Synthesize(ctx context.Context, history []flow.Message) (string, error) {
	var b strings.Builder
	for _, m := range history {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}

	text, err := c.complete(ctx, c.synthesisModel, synthesisPrompt, b.String(), c.maxTokens)
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Health checks if the proxy is reachable.
func (c *Client) Health(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/health/liveliness", nil)
	return err == nil, err
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete performs one chat completion and returns the first choice's text.
func (c *Client) complete(ctx context.Context, model, system, user string, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/chat/completions", body)
	if err != nil {
		return "", err
	}

	var result chatResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", fmt.Errorf("unmarshal completion: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.masterKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.masterKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("litellm API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
