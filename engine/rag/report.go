package rag

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/WessleyAI/wessley-fleet/engine/corpus"
	"github.com/WessleyAI/wessley-fleet/engine/domain"
)

// State of a recommendation run.
type State string

const (
	StateCostAnalysis State = "cost_analysis"
	StateRiskAnalysis State = "risk_analysis"
	StateSynthesis    State = "synthesis"
	StateDone         State = "done"
	StateAborted      State = "aborted"
)

// Fixed texts of the final report.
const (
	NoDataReport         = "Nie udało się znaleźć pasujących informacji w bazie danych. Spróbuj zmienić kryteria."
	SynthesisUnavailable = "Podsumowanie niedostępne."
	riskHeading          = "### Analiza ryzyka: "
	riskUnavailable      = "Analiza ryzyka niedostępna dla: %s."
)

// RiskReport is the risk analysis of one candidate. Err is set when the
// analysis failed and the section shows a placeholder.
type RiskReport struct {
	Candidate string
	Text      string
	Err       error
}

// RiskUnavailable is the placeholder for a failed risk analysis.
func RiskUnavailable(candidate string) string { return fmt.Sprintf(riskUnavailable, candidate) }

// Section renders the report section of the candidate.
func (r RiskReport) Section() string {
	text := r.Text
	if r.Err != nil {
		text = RiskUnavailable(r.Candidate)
	}
	return riskHeading + r.Candidate + "\n\n" + strings.TrimSpace(text)
}

// Report is the final result of a recommendation run.
type Report struct {
	state        State
	noData       bool
	costReport   string
	candidates   []string
	risks        []RiskReport
	synthesis    string
	synthesisErr error
}

// State is the terminal state of the run.
func (r *Report) State() State { return r.state }

// NoData reports whether retrieval found nothing and no model was called.
func (r *Report) NoData() bool { return r.noData }

// CostReport is the cost analysis text.
func (r *Report) CostReport() string { return r.costReport }

// Candidates lists the analyzed candidates in cost analysis order.
func (r *Report) Candidates() []string { return slices.Clone(r.candidates) }

// Risks returns the risk analyses in candidate order.
func (r *Report) Risks() []RiskReport { return slices.Clone(r.risks) }

// Synthesis returns the synthesis text and whether it succeeded.
func (r *Report) Synthesis() (string, bool) { return r.synthesis, r.synthesisErr == nil }

// Placeholders counts sections replaced by a placeholder.
func (r *Report) Placeholders() int {
	n := 0
	for _, rr := range r.risks {
		if rr.Err != nil {
			n++
		}
	}
	if len(r.candidates) > 0 && r.synthesisErr != nil {
		n++
	}
	return n
}

// Text assembles the report: the cost analysis, every risk section in
// candidate order, then the synthesis or its placeholder.
func (r *Report) Text() string {
	if r.noData {
		return NoDataReport
	}
	if len(r.candidates) == 0 {
		return r.costReport
	}
	parts := make([]string, 0, len(r.risks)+2)
	parts = append(parts, r.costReport)
	for _, rr := range r.risks {
		parts = append(parts, rr.Section())
	}
	if r.synthesisErr != nil {
		parts = append(parts, SynthesisUnavailable)
	} else {
		parts = append(parts, strings.TrimSpace(r.synthesis))
	}
	return strings.Join(parts, corpus.Separator)
}

type riskJSON struct {
	Candidate string `json:"candidate"`
	Text      string `json:"text"`
	Available bool   `json:"available"`
}

type synthesisJSON struct {
	Text      string `json:"text"`
	Available bool   `json:"available"`
}

type stagesJSON struct {
	CostAnalysis string         `json:"cost_analysis"`
	RiskAnalysis []riskJSON     `json:"risk_analysis"`
	Synthesis    *synthesisJSON `json:"synthesis,omitempty"`
}

// MarshalJSON renders the report for API clients: the assembled text plus
// the output of each stage.
func (r *Report) MarshalJSON() ([]byte, error) {
	st := stagesJSON{CostAnalysis: r.CostReport(), RiskAnalysis: []riskJSON{}}
	for _, rr := range r.Risks() {
		text := rr.Text
		if rr.Err != nil {
			text = RiskUnavailable(rr.Candidate)
		}
		st.RiskAnalysis = append(st.RiskAnalysis, riskJSON{Candidate: rr.Candidate, Text: text, Available: rr.Err == nil})
	}
	if len(r.candidates) > 0 {
		text, ok := r.Synthesis()
		if !ok {
			text = SynthesisUnavailable
		}
		st.Synthesis = &synthesisJSON{Text: text, Available: ok}
	}
	return json.Marshal(struct {
		Report       string     `json:"report"`
		Candidates   []string   `json:"candidates"`
		State        State      `json:"state"`
		NoData       bool       `json:"no_data"`
		Placeholders int        `json:"placeholders"`
		Stages       stagesJSON `json:"stages"`
	}{r.Text(), r.Candidates(), r.state, r.NoData(), r.Placeholders(), st})
}

// StageError reports an aborted run.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("rag: stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// State is the terminal state of an aborted run.
func (e *StageError) State() State { return StateAborted }

// Payload returns the raw malformed response, if the stage failed on one.
func (e *StageError) Payload() (string, bool) {
	var cv *domain.ContractViolation
	if errors.As(e.Err, &cv) {
		return cv.Payload, true
	}
	return "", false
}
