package selector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/igolaizola/mixtape/pkg/catalog"
)

const defaultOllamaEndpoint = "http://localhost:11434/api/chat"

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string    `json:"model"`
	Stream   bool      `json:"stream"`
	Messages []message `json:"messages"`
}

type Ollama struct {
	client   *http.Client
	endpoint string
	model    string
	perBatch int
	debug    bool
	retrier  *retrier
}

// NewOllama returns a selector that talks to an ollama compatible endpoint
// with plain json requests.
func NewOllama(cfg *Config) (*Ollama, error) {
	c, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}
	return &Ollama{
		client:   c.Client,
		endpoint: endpoint,
		model:    c.Model,
		perBatch: c.PerBatch,
		debug:    c.Debug,
		retrier: &retrier{
			name:        "ollama",
			maxRetries:  c.MaxRetries,
			timeout:     c.Timeout,
			backoffUnit: c.BackoffUnit,
			debug:       c.Debug,
		},
	}, nil
}

func (o *Ollama) log(format string, args ...any) {
	if o.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

func (o *Ollama) Select(ctx context.Context, batch []catalog.Record, theme string) (string, error) {
	system, user, err := prompt(batch, theme, o.perBatch)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(&ollamaRequest{
		Model:  o.model,
		Stream: false,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ollama: couldn't marshal request: %w", err)
	}
	return o.retrier.do(ctx, len(batch), func(ctx context.Context) (string, error) {
		return o.doAttempt(ctx, body)
	})
}

func (o *Ollama) doAttempt(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: couldn't create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: couldn't post %s: %w", o.endpoint, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama: couldn't read response body: %w", err)
	}
	o.log("ollama: response %d %s", resp.StatusCode, string(respBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama: post %s returned (%s): %w", o.endpoint, truncate(respBody, 100), errStatusCode(resp.StatusCode))
	}

	var out any
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("ollama: couldn't unmarshal response body: %w", err)
	}
	if text, ok := replyText(out); ok {
		return text, nil
	}
	return "", fmt.Errorf("%w: %s", ErrAnomaly, truncate(respBody, 200))
}

// replyText returns message.content for chat models or response for plain
// generate models. Any other shape has no usable text.
func replyText(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	if msg, ok := m["message"].(map[string]any); ok {
		if c, ok := msg["content"].(string); ok && strings.TrimSpace(c) != "" {
			return c, true
		}
	}
	if r, ok := m["response"].(string); ok && strings.TrimSpace(r) != "" {
		return r, true
	}
	return "", false
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
