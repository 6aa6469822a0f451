package gen

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WessleyAI/wessley-fleet/engine/domain"
	"github.com/WessleyAI/wessley-fleet/pkg/resilience"
	"golang.org/x/time/rate"
)

type recordingBackend struct {
	mu    sync.Mutex
	reqs  []Request
	reply func(ctx context.Context, req Request) (string, error)
}

func (b *recordingBackend) Generate(ctx context.Context, req Request) (string, error) {
	b.mu.Lock()
	b.reqs = append(b.reqs, req)
	b.mu.Unlock()
	return b.reply(ctx, req)
}

func (b *recordingBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.reqs)
}

func echo(text string) func(context.Context, Request) (string, error) {
	return func(context.Context, Request) (string, error) { return text, nil }
}

var testProfile = Profile{Name: "cost", Provider: ProviderOpenAI, Model: "gpt-test", MaxTokens: 512, Temperature: 0.2}

func newTestAdapter(b Backend, opts Options) *Adapter {
	tpl := NewTemplates()
	tpl.MustRegister("hello", "Cześć {{ .name }}")
	if opts.Backends == nil {
		opts.Backends = map[Provider]Backend{ProviderOpenAI: b}
	}
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAdapter(tpl, opts)
}

func TestInvokeSendsRenderedPrompt(t *testing.T) {
	b := &recordingBackend{reply: echo("odpowiedź")}
	var outcome string
	a := newTestAdapter(b, Options{Observe: func(_ Provider, o string, _ time.Duration) { outcome = o }})

	out, err := a.Invoke(context.Background(), "hello", Params{"name": "Anna"}, testProfile)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out != "odpowiedź" {
		t.Fatalf("got %q", out)
	}
	req := b.reqs[0]
	if req.Prompt != "Cześć Anna" || req.Model != "gpt-test" || req.MaxTokens != 512 || req.Temperature != 0.2 {
		t.Fatalf("unexpected request %+v", req)
	}
	if outcome != OutcomeOK {
		t.Fatalf("outcome = %q", outcome)
	}
}

func TestInvokeBindingErrorBeforeNetwork(t *testing.T) {
	b := &recordingBackend{reply: echo("x")}
	a := newTestAdapter(b, Options{})
	_, err := a.Invoke(context.Background(), "hello", Params{}, testProfile)
	if !errors.Is(err, domain.ErrTemplateBinding) {
		t.Fatalf("expected binding error, got %v", err)
	}
	if b.calls() != 0 {
		t.Fatal("backend must not be called")
	}
}

func TestInvokeUnknownProvider(t *testing.T) {
	a := newTestAdapter(&recordingBackend{reply: echo("x")}, Options{})
	p := testProfile
	p.Provider = ProviderAnthropic
	_, err := a.Invoke(context.Background(), "hello", Params{"name": "x"}, p)
	if !errors.Is(err, domain.ErrGenerativeBackend) || !errors.Is(err, domain.ErrUnknownProfile) {
		t.Fatalf("unexpected %v", err)
	}
}

func TestInvokeEmptyResponse(t *testing.T) {
	a := newTestAdapter(&recordingBackend{reply: echo("  \n")}, Options{})
	_, err := a.Invoke(context.Background(), "hello", Params{"name": "x"}, testProfile)
	if !errors.Is(err, ErrEmptyResponse) || !errors.Is(err, domain.ErrGenerativeBackend) {
		t.Fatalf("unexpected %v", err)
	}
}

func TestInvokeTimeout(t *testing.T) {
	b := &recordingBackend{reply: func(ctx context.Context, _ Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	var outcome string
	a := newTestAdapter(b, Options{Observe: func(_ Provider, o string, _ time.Duration) { outcome = o }})
	p := testProfile
	p.Timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := a.Invoke(context.Background(), "hello", Params{"name": "x"}, p)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	var be *domain.GenerativeBackendError
	if !errors.As(err, &be) || be.Provider != "openai" || be.Model != "gpt-test" {
		t.Fatalf("expected GenerativeBackendError, got %T", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout not enforced")
	}
	if outcome != OutcomeTimeout {
		t.Fatalf("outcome = %q", outcome)
	}
}

func TestInvokeKeepsBackendErrorDetails(t *testing.T) {
	b := &recordingBackend{reply: func(context.Context, Request) (string, error) {
		return "", backendError(ProviderOpenAI, "gpt-test", 429, errors.New("slow down"))
	}}
	var outcome string
	a := newTestAdapter(b, Options{Observe: func(_ Provider, o string, _ time.Duration) { outcome = o }})
	_, err := a.Invoke(context.Background(), "hello", Params{"name": "x"}, testProfile)
	var be *domain.GenerativeBackendError
	if !errors.As(err, &be) || !be.RateLimited || be.StatusCode != 429 {
		t.Fatalf("unexpected %v", err)
	}
	if outcome != OutcomeRateLimited {
		t.Fatalf("outcome = %q", outcome)
	}
	if b.calls() != 1 {
		t.Fatalf("backend called %d times; no retries allowed", b.calls())
	}
}

func TestInvokeCircuitOpens(t *testing.T) {
	b := &recordingBackend{reply: func(context.Context, Request) (string, error) { return "", errors.New("502") }}
	a := newTestAdapter(b, Options{Breaker: resilience.BreakerOpts{FailThreshold: 2, Timeout: time.Minute}})
	for i := 0; i < 2; i++ {
		_, _ = a.Invoke(context.Background(), "hello", Params{"name": "x"}, testProfile)
	}
	_, err := a.Invoke(context.Background(), "hello", Params{"name": "x"}, testProfile)
	if !errors.Is(err, resilience.ErrCircuitOpen) || !errors.Is(err, domain.ErrGenerativeBackend) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if b.calls() != 2 {
		t.Fatalf("backend called %d times", b.calls())
	}
}

func TestInvokeLimiterRespectsContext(t *testing.T) {
	b := &recordingBackend{reply: echo("ok")}
	a := newTestAdapter(b, Options{Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)})
	if _, err := a.Invoke(context.Background(), "hello", Params{"name": "x"}, testProfile); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := a.Invoke(ctx, "hello", Params{"name": "x"}, testProfile)
	if !errors.Is(err, domain.ErrGenerativeBackend) {
		t.Fatalf("expected limiter error, got %v", err)
	}
	if b.calls() != 1 {
		t.Fatal("limited call must not reach the backend")
	}
}

func TestInvokeConcurrentSafe(t *testing.T) {
	var n atomic.Int32
	b := BackendFunc(func(context.Context, Request) (string, error) { n.Add(1); return "ok", nil })
	a := newTestAdapter(b, Options{})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.Invoke(context.Background(), "hello", Params{"name": "x"}, testProfile); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if n.Load() != 16 {
		t.Fatalf("calls = %d", n.Load())
	}
}
