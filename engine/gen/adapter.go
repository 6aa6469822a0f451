package gen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/wessley-fleet/engine/domain"
	"github.com/WessleyAI/wessley-fleet/pkg/resilience"
	"golang.org/x/time/rate"
)

// Outcomes reported to Options.Observe.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
	OutcomeTimeout     = "timeout"
	OutcomeCircuitOpen = "circuit_open"
)

// Options configures an Adapter.
type Options struct {
	Backends map[Provider]Backend
	// Limiter paces calls across all backends; nil means unlimited. Callers
	// wait for a token rather than being rejected.
	Limiter *rate.Limiter
	// Breaker configures the per-provider circuit breakers.
	Breaker resilience.BreakerOpts
	Logger  *slog.Logger
	// Observe, if set, receives every backend call's outcome and duration.
	Observe func(provider Provider, outcome string, d time.Duration)
}

// Adapter binds templates and sends them to the profile's backend.
type Adapter struct {
	templates *Templates
	backends  map[Provider]Backend
	breakers  map[Provider]*resilience.Breaker
	limiter   *rate.Limiter
	log       *slog.Logger
	observe   func(Provider, string, time.Duration)
}

// NewAdapter creates an Adapter over the given templates and backends.
func NewAdapter(templates *Templates, opts Options) *Adapter {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	a := &Adapter{
		templates: templates,
		backends:  opts.Backends,
		breakers:  make(map[Provider]*resilience.Breaker, len(opts.Backends)),
		limiter:   opts.Limiter,
		log:       log,
		observe:   opts.Observe,
	}
	for p := range opts.Backends {
		bo := opts.Breaker
		bo.Name = string(p)
		if bo.Counts == nil {
			bo.Counts = ServerFailure
		}
		if bo.OnStateChange == nil {
			bo.OnStateChange = func(name string, from, to resilience.State) {
				log.Warn("gen: circuit breaker", "provider", name, "from", from.String(), "to", to.String())
			}
		}
		a.breakers[p] = resilience.NewBreaker(bo)
	}
	return a
}

// Invoke renders templateID with params and performs exactly one round trip
// to the backend named by profile. Missing parameters fail with
// *domain.TemplateBindingError before any network call; every backend
// failure is a *domain.GenerativeBackendError.
func (a *Adapter) Invoke(ctx context.Context, templateID string, params Params, profile Profile) (string, error) {
	prompt, err := a.templates.Render(templateID, params)
	if err != nil {
		return "", err
	}

	backend, ok := a.backends[profile.Provider]
	if !ok {
		return "", backendError(profile.Provider, profile.Model, 0, fmt.Errorf("%w: no backend for provider %q", domain.ErrUnknownProfile, profile.Provider))
	}

	if profile.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, profile.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := a.call(ctx, backend, profile, Request{
		Model:       profile.Model,
		Prompt:      prompt,
		MaxTokens:   profile.MaxTokens,
		Temperature: profile.Temperature,
	})
	d := time.Since(start)
	outcome := outcomeOf(err)
	if a.observe != nil {
		a.observe(profile.Provider, outcome, d)
	}
	if err != nil {
		a.log.Warn("gen: invoke failed", "template", templateID, "profile", profile.Name,
			"provider", profile.Provider, "outcome", outcome, "duration", d, "err", err)
		return "", err
	}
	a.log.Debug("gen: invoke", "template", templateID, "profile", profile.Name, "duration", d, "chars", len(text))
	return text, nil
}

func (a *Adapter) call(ctx context.Context, backend Backend, profile Profile, req Request) (string, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return "", backendError(profile.Provider, profile.Model, 0, fmt.Errorf("rate limiter: %w", err))
		}
	}

	var text string
	call := func(ctx context.Context) error {
		out, err := backend.Generate(ctx, req)
		if err != nil {
			return err
		}
		if strings.TrimSpace(out) == "" {
			return backendError(profile.Provider, profile.Model, 0, ErrEmptyResponse)
		}
		text = out
		return nil
	}

	var err error
	if br := a.breakers[profile.Provider]; br != nil {
		err = br.Call(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", asBackendError(profile.Provider, profile.Model, err)
	}
	return text, nil
}

func outcomeOf(err error) string {
	var be *domain.GenerativeBackendError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, resilience.ErrCircuitOpen):
		return OutcomeCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.As(err, &be) && be.RateLimited:
		return OutcomeRateLimited
	default:
		return OutcomeError
	}
}
