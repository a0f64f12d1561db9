package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wronai/taskguard/internal/config"
	"github.com/wronai/taskguard/pkg/cerr"
)

const (
	ProviderOllama   = "ollama"
	ProviderLMStudio = "lmstudio"
)

// availableProbeTimeout bounds the availability check independently of the
// query budget.
const availableProbeTimeout = 5 * time.Second

// Client talks to a local inference endpoint. Two providers are supported:
// ollama's generate API and LM Studio's OpenAI-compatible chat API.
type Client struct {
	cfg        config.InferenceConfig
	httpClient *http.Client
}

func NewClient(cfg config.InferenceConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// Available probes the endpoint with a short timeout. A false result means
// the caller should use its non-AI fallback.
func (c *Client) Available(ctx context.Context) bool {
	path := "/api/tags"
	if c.cfg.Provider == ProviderLMStudio {
		path = "/v1/models"
	}
	ctx, cancel := context.WithTimeout(ctx, availableProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Query sends the prompt and returns the model's reply text. The configured
// timeout bounds the whole request; expiry surfaces as InferenceTimeout and
// is never retried.
func (c *Client) Query(ctx context.Context, systemPrompt, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
	defer cancel()
	switch c.cfg.Provider {
	case ProviderOllama:
		return c.queryOllama(ctx, systemPrompt, prompt)
	case ProviderLMStudio:
		return c.queryLMStudio(ctx, systemPrompt, prompt)
	default:
		return "", cerr.NewError(cerr.Validation,
			fmt.Sprintf("unknown inference provider %q", c.cfg.Provider), nil)
	}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	// Low temperature keeps extraction output consistent across runs.
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (c *Client) queryOllama(ctx context.Context, systemPrompt, prompt string) (string, error) {
	body := ollamaRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		System: systemPrompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: 0.1,
			TopP:        0.9,
			NumPredict:  2000,
		},
	}
	var reply ollamaResponse
	if err := c.post(ctx, "/api/generate", body, &reply); err != nil {
		return "", err
	}
	return strings.TrimSpace(reply.Response), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) queryLMStudio(ctx context.Context, systemPrompt, prompt string) (string, error) {
	var messages []chatMessage
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})
	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: 0.1,
		MaxTokens:   2000,
	}
	var reply chatResponse
	if err := c.post(ctx, "/v1/chat/completions", body, &reply); err != nil {
		return "", err
	}
	if len(reply.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(reply.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, path string, body, reply any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to encode inference request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to build inference request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return cerr.NewErrorWithHint(cerr.InferenceTimeout,
				fmt.Sprintf("inference request exceeded %s", c.cfg.Timeout()), err,
				"raise inference.timeout_seconds or rely on the heuristic parser")
		}
		return cerr.NewError(cerr.Unavailable, "inference endpoint unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return cerr.NewError(cerr.Unavailable,
			fmt.Sprintf("inference endpoint returned %d", resp.StatusCode), nil)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return cerr.NewError(cerr.Unavailable, "failed to read inference response", err)
	}
	// Truncated or non-JSON replies are a fallback trigger for the caller,
	// not a crash.
	if err := json.Unmarshal(raw, reply); err != nil {
		return cerr.NewError(cerr.Validation, "malformed inference response", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var uerr *url.Error
	return errors.As(err, &uerr) && uerr.Timeout()
}
