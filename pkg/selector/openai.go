package selector

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/igolaizola/mixtape/pkg/catalog"
	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

type OpenAI struct {
	client   *openai.Client
	model    string
	perBatch int
	debug    bool
	retrier  *retrier
}

// NewOpenAI returns a selector that uses the chat completions API. Endpoint,
// when set, replaces the base URL so any compatible server can be used
// (e.g. ollama's /v1).
func NewOpenAI(cfg *Config) (*OpenAI, error) {
	c, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	oaCfg := openai.DefaultConfig(c.Token)
	if c.Endpoint != "" {
		oaCfg.BaseURL = strings.TrimSuffix(c.Endpoint, "/")
	}
	oaCfg.HTTPClient = c.Client
	model := c.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(oaCfg),
		model:    model,
		perBatch: c.PerBatch,
		debug:    c.Debug,
		retrier: &retrier{
			name:        "openai",
			maxRetries:  c.MaxRetries,
			timeout:     c.Timeout,
			backoffUnit: c.BackoffUnit,
			debug:       c.Debug,
		},
	}, nil
}

func (o *OpenAI) Select(ctx context.Context, batch []catalog.Record, theme string) (string, error) {
	system, user, err := prompt(batch, theme, o.perBatch)
	if err != nil {
		return "", err
	}
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	return o.retrier.do(ctx, len(batch), func(ctx context.Context) (string, error) {
		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("openai: couldn't create chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%w: no choices in response %s", ErrAnomaly, resp.ID)
		}
		content := resp.Choices[0].Message.Content
		if o.debug {
			log.Printf("openai: response %s\n", content)
		}
		if strings.TrimSpace(content) == "" {
			return "", fmt.Errorf("%w: empty content in response %s", ErrAnomaly, resp.ID)
		}
		return content, nil
	})
}
