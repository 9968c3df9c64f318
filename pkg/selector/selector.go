package selector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/igolaizola/mixtape/pkg/catalog"
)

var (
	// ErrAnomaly means the service answered with an envelope that has none of
	// the known content fields. It is not retried.
	ErrAnomaly = errors.New("selector: unexpected response format")
	// ErrExhausted means every attempt failed.
	ErrExhausted = errors.New("selector: retries exhausted")
)

const (
	defaultTimeout  = 120 * time.Second
	defaultPerBatch = 5
)

// Selector picks songs for a theme out of a batch and returns the raw reply.
type Selector interface {
	Select(ctx context.Context, batch []catalog.Record, theme string) (string, error)
}

type Config struct {
	Endpoint string
	Model    string
	Token    string
	Proxy    string
	Debug    bool

	// PerBatch is the number of songs asked for in each request.
	PerBatch int
	// MaxRetries is the number of extra attempts after the first one.
	// Negative means no retries.
	MaxRetries int
	// Timeout bounds each attempt.
	Timeout time.Duration
	// BackoffUnit is multiplied by 2^attempt between attempts.
	BackoffUnit time.Duration

	Client *http.Client
}

func (c *Config) withDefaults() (*Config, error) {
	cfg := *c
	if cfg.PerBatch <= 0 {
		cfg.PerBatch = defaultPerBatch
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BackoffUnit < 0 {
		cfg.BackoffUnit = 0
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{
			Timeout: cfg.Timeout,
		}
		if cfg.Proxy != "" {
			u, err := url.Parse(cfg.Proxy)
			if err != nil {
				return nil, fmt.Errorf("selector: invalid proxy URL: %w", err)
			}
			cfg.Client.Transport = &http.Transport{
				Proxy: http.ProxyURL(u),
			}
		}
	}
	return &cfg, nil
}

// New returns the selector backend for the given type (ollama or openai).
func New(typ string, cfg *Config) (Selector, error) {
	switch typ {
	case "", "ollama":
		return NewOllama(cfg)
	case "openai":
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("selector: unknown type %q", typ)
	}
}

type retrier struct {
	name        string
	maxRetries  int
	timeout     time.Duration
	backoffUnit time.Duration
	debug       bool
}

func (r *retrier) log(format string, args ...any) {
	if r.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// do runs fn until it succeeds, it returns ErrAnomaly, or maxRetries extra
// attempts have failed. Attempts are numbered from 1 and the wait after
// attempt n is 2^n backoff units.
func (r *retrier) do(ctx context.Context, size int, fn func(ctx context.Context) (string, error)) (string, error) {
	var err error
	for attempt := 1; attempt <= r.maxRetries+1; attempt++ {
		log.Printf("%s: sending batch of %d songs (attempt %d)\n", r.name, size, attempt)

		var text string
		text, err = r.attempt(ctx, fn)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, ErrAnomaly) {
			log.Printf("%s: %v\n", r.name, err)
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Printf("%s: attempt %d failed: %v\n", r.name, attempt, err)
		if attempt > r.maxRetries {
			break
		}

		wait := r.backoffUnit * time.Duration(1<<attempt)
		r.log("%s: waiting %s before retrying", r.name, wait)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %w", ErrExhausted, r.maxRetries+1, err)
}

func (r *retrier) attempt(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return fn(ctx)
}

type errStatusCode int

func (e errStatusCode) Error() string {
	return fmt.Sprintf("%d", e)
}
