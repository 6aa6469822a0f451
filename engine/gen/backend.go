// Package gen invokes generative text models: it binds a registered prompt
// template, sends exactly one request to the profile's backend and returns
// the completion text.
package gen

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/WessleyAI/wessley-fleet/engine/domain"
)

// Provider names a backend family.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
)

// ErrEmptyResponse is returned when a backend answers with no text.
var ErrEmptyResponse = errors.New("empty completion")

// Profile selects a model and its generation parameters.
type Profile struct {
	Name        string        `koanf:"name" json:"name"`
	Provider    Provider      `koanf:"provider" json:"provider" validate:"oneof=anthropic openai ollama"`
	Model       string        `koanf:"model" json:"model" validate:"required"`
	MaxTokens   int           `koanf:"max_tokens" json:"max_tokens" validate:"gte=1"`
	Temperature float64       `koanf:"temperature" json:"temperature" validate:"gte=0,lte=2"`
	Timeout     time.Duration `koanf:"timeout" json:"timeout"`
}

// Request is one rendered prompt for a backend.
type Request struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Backend sends one request and returns the completion text. Implementations
// must not retry.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request) (string, error)

// Generate implements Backend.
func (f BackendFunc) Generate(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

func backendError(provider Provider, model string, status int, err error) *domain.GenerativeBackendError {
	return &domain.GenerativeBackendError{
		Provider:    string(provider),
		Model:       model,
		StatusCode:  status,
		RateLimited: status == http.StatusTooManyRequests,
		Err:         err,
	}
}

// asBackendError keeps an existing *domain.GenerativeBackendError and wraps
// anything else.
func asBackendError(provider Provider, model string, err error) *domain.GenerativeBackendError {
	var be *domain.GenerativeBackendError
	if errors.As(err, &be) {
		return be
	}
	return backendError(provider, model, 0, err)
}

// ServerFailure reports whether err should count toward a provider's circuit
// breaker. Caller cancellation and client errors other than 408 and 429 say
// nothing about the provider's health.
func ServerFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var be *domain.GenerativeBackendError
	if errors.As(err, &be) && be.StatusCode >= 400 && be.StatusCode < 500 {
		return be.StatusCode == http.StatusRequestTimeout || be.StatusCode == http.StatusTooManyRequests
	}
	return true
}
