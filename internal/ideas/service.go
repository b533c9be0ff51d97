// Package ideas asks a hosted language model for project ideas built from
// selected components.
package ideas

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kalambet/partsbin/internal/apperror"
	"github.com/kalambet/partsbin/internal/catalog"
	"github.com/kalambet/partsbin/internal/logging"
	"github.com/kalambet/partsbin/internal/metrics"
)

const DefaultTimeout = 60 * time.Second

// Generator produces text for a system instruction and a user prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Options configures a provider and the service around it.
type Options struct {
	Provider      string
	APIKey        string
	Model         string
	BaseURL       string
	Timeout       time.Duration
	RatePerMinute int
}

// NewGenerator builds the generator for opts.Provider. An empty API key
// returns ErrMissingAPIKey.
func NewGenerator(ctx context.Context, opts Options) (Generator, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	switch opts.Provider {
	case "", ProviderOpenRouter:
		return NewOpenRouterWithBaseURL(opts.APIKey, opts.Model, opts.BaseURL), nil
	case ProviderGemini:
		return NewGemini(ctx, opts.APIKey, opts.Model)
	}
	return nil, apperror.NewInvalidInput("unknown LLM provider %q (use openrouter or gemini)", opts.Provider)
}

// Result is delivered by SuggestAsync.
type Result struct {
	Text string
	Err  error
}

// Service throttles and times out idea requests.
type Service struct {
	gen      Generator
	genErr   error
	registry *catalog.Registry
	limiter  *rate.Limiter
	timeout  time.Duration
	log      *logging.Logger
}

// NewService wraps gen. When gen is nil every call fails with genErr, which
// lets callers report a missing key only when ideas are requested.
func NewService(gen Generator, genErr error, registry *catalog.Registry, opts Options, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Default()
	}
	if gen == nil && genErr == nil {
		genErr = ErrMissingAPIKey
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	if opts.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RatePerMinute))
	}
	return &Service{
		gen:      gen,
		genErr:   genErr,
		registry: registry,
		limiter:  rate.NewLimiter(limit, 1),
		timeout:  timeout,
		log:      log.WithComponent("ideas"),
	}
}

// Available reports whether a generator is configured.
func (s *Service) Available() bool {
	return s.gen != nil
}

// Suggest asks the model for project ideas using components.
func (s *Service) Suggest(ctx context.Context, components []catalog.Component) (string, error) {
	if len(components) == 0 {
		return "", apperror.NewInvalidInput("select at least one component")
	}
	if s.gen == nil {
		return "", apperror.NewInvalidInput("%s", UserMessage(s.genErr)).WithCause(s.genErr)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", apperror.NewUpstream(UserMessage(err), fmt.Errorf("waiting for rate limiter: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.gen.Generate(ctx, systemPrompt, BuildPrompt(components, s.registry))
	metrics.RecordIdeas(s.gen.Name(), start, err)
	if err != nil {
		s.log.Warnw("idea request failed", "provider", s.gen.Name(), "error", err)
		return "", apperror.NewUpstream(UserMessage(err), err)
	}
	s.log.Debugw("idea request done", "provider", s.gen.Name(), "components", len(components), "elapsed", time.Since(start))
	return text, nil
}

// SuggestAsync runs Suggest in the background. The channel receives exactly
// one Result and is then closed.
func (s *Service) SuggestAsync(ctx context.Context, components []catalog.Component) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		text, err := s.Suggest(ctx, components)
		out <- Result{Text: text, Err: err}
	}()
	return out
}
