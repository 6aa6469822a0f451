package rag

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/WessleyAI/wessley-fleet/engine/domain"
	"github.com/invopop/jsonschema"
)

// CostAnalysis is the structured payload of the cost analysis stage.
type CostAnalysis struct {
	Report     string   `json:"report" validate:"required" jsonschema:"description=Raport kosztów TCO w formacie Markdown"`
	Candidates []string `json:"candidates" validate:"required,dive,required" jsonschema:"description=Pełna lista nazw modeli analizowanych w raporcie"`
}

var fencePattern = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)\r?\n?```$")

// stripFences removes one pair of surrounding code-fence markers.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ParseCostAnalysis decodes and validates a cost analysis response. Fenced
// and unfenced payloads decode identically. The payload must be exactly one
// object with no fields beyond those of CostAnalysis. Failures are
// *domain.ContractViolation carrying the raw payload.
func ParseCostAnalysis(raw string) (CostAnalysis, error) {
	violation := func(err error) (CostAnalysis, error) {
		return CostAnalysis{}, &domain.ContractViolation{Stage: string(StateCostAnalysis), Payload: raw, Err: err}
	}

	var out CostAnalysis
	dec := json.NewDecoder(strings.NewReader(stripFences(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return violation(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return violation(errors.New("trailing data after cost analysis object"))
	}
	out.Report = strings.TrimSpace(out.Report)
	for i, c := range out.Candidates {
		out.Candidates[i] = strings.TrimSpace(c)
	}
	if err := domain.Validator().Struct(out, domain.ErrContractViolation); err != nil {
		return violation(err)
	}
	return out, nil
}

var (
	schemaOnce sync.Once
	schemaText string
)

// CostAnalysisSchema is the JSON schema of CostAnalysis, embedded in the
// cost analysis prompt.
func CostAnalysisSchema() string {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
		b, err := json.MarshalIndent(r.Reflect(&CostAnalysis{}), "", "  ")
		if err != nil {
			panic(errors.Join(errors.New("rag: cost analysis schema"), err))
		}
		schemaText = string(b)
	})
	return schemaText
}
