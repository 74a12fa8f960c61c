package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"guildkeeper/internal/config"

	"golang.org/x/sync/semaphore"
)

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Kind int

const (
	KindBackend Kind = iota
	KindTimeout
	KindEmpty
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindEmpty:
		return "empty"
	case KindBusy:
		return "busy"
	default:
		return "backend"
	}
}

type Error struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s generator: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s generator: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func KindOf(err error) Kind {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return KindBackend
}

// Guard bounds every call with a timeout and, when maxConcurrent is positive,
// caps the number of calls in flight.
type Guard struct {
	next     Generator
	provider string
	timeout  time.Duration
	sem      *semaphore.Weighted
}

func NewGuard(next Generator, provider string, timeout time.Duration, maxConcurrent int) *Guard {
	g := &Guard{next: next, provider: provider, timeout: timeout}
	if maxConcurrent > 0 {
		g.sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return g
}

func (g *Guard) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return "", &Error{Provider: g.provider, Kind: KindBusy, Err: err}
		}
		defer g.sem.Release(1)
	}

	text, err := g.next.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &Error{Provider: g.provider, Kind: KindTimeout, Err: err}
		}
		return "", &Error{Provider: g.provider, Kind: KindBackend, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &Error{Provider: g.provider, Kind: KindEmpty}
	}
	return text, nil
}

func New(ctx context.Context, cfg config.GeneratorConfig) (*Guard, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s api key is required", cfg.Provider)
	}

	var (
		next Generator
		err  error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		next = NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		next, err = NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL)
	}
	if err != nil {
		return nil, err
	}
	return NewGuard(next, cfg.Provider, cfg.Timeout(), cfg.MaxConcurrent), nil
}

func Footer(provider string) string {
	switch provider {
	case config.ProviderOpenAI:
		return "Powered by OpenAI"
	default:
		return "Powered by Google's Gemini AI"
	}
}
