package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below match them with errors.Is.
var (
	ErrInvalidCriteria   = errors.New("invalid criteria")
	ErrIngestion         = errors.New("ingestion failed")
	ErrGenerativeBackend = errors.New("generative backend failed")
	ErrTemplateBinding   = errors.New("template binding failed")
	ErrContractViolation = errors.New("contract violation")
	ErrUnknownTemplate   = errors.New("unknown template")
	ErrUnknownProfile    = errors.New("unknown model profile")
	ErrEmptyCorpus       = errors.New("empty corpus")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Wrapped error
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// ValidationErrors collects every failing field of one validation pass.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (es ValidationErrors) Is(target error) bool {
	return len(es) > 0 && errors.Is(es[0].Wrapped, target)
}

// IngestionError reports a document that could not be read, parsed, chunked,
// embedded or stored. Step names the failing step.
type IngestionError struct {
	Path string
	Step string
	Err  error
}

func (e *IngestionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("ingestion: %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("ingestion: %s %s: %v", e.Step, e.Path, e.Err)
}

func (e *IngestionError) Unwrap() error        { return e.Err }
func (e *IngestionError) Is(target error) bool { return target == ErrIngestion }

// GenerativeBackendError reports a failed model call: transport failure,
// non-success status, empty completion or timeout.
type GenerativeBackendError struct {
	Provider    string
	Model       string
	StatusCode  int
	RateLimited bool
	Err         error
}

func (e *GenerativeBackendError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gen: %s/%s", e.Provider, e.Model)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.RateLimited {
		b.WriteString(": rate limited")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *GenerativeBackendError) Unwrap() error        { return e.Err }
func (e *GenerativeBackendError) Is(target error) bool { return target == ErrGenerativeBackend }

// TemplateBindingError reports template parameters that were not supplied.
// It is raised before any backend is contacted.
type TemplateBindingError struct {
	Template string
	Missing  []string
	Err      error
}

func (e *TemplateBindingError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("template %q: missing parameters: %s", e.Template, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("template %q: %v", e.Template, e.Err)
}

func (e *TemplateBindingError) Unwrap() error        { return e.Err }
func (e *TemplateBindingError) Is(target error) bool { return target == ErrTemplateBinding }

// ContractViolation reports model output that does not satisfy the declared
// structured contract. Payload keeps the raw text for diagnostics.
type ContractViolation struct {
	Stage   string
	Payload string
	Err     error
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("contract violation in %s: %v", e.Stage, e.Err)
}

func (e *ContractViolation) Unwrap() error        { return e.Err }
func (e *ContractViolation) Is(target error) bool { return target == ErrContractViolation }
