// Package rag runs the recommendation pipeline: a retrieval-grounded cost
// analysis, a per-candidate risk analysis fan-out and a final synthesis.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/wessley-fleet/engine/corpus"
	"github.com/WessleyAI/wessley-fleet/engine/domain"
	"github.com/WessleyAI/wessley-fleet/engine/gen"
	"github.com/WessleyAI/wessley-fleet/pkg/fn"
)

// Defaults for Options.
const (
	DefaultTopK          = 20
	DefaultMaxCandidates = 5
	DefaultWorkers       = 3
)

// noEquipment is rendered when no equipment is required.
const noEquipment = "brak dodatkowych wymagań"

// Retriever returns the corpus passages most similar to a query.
type Retriever interface {
	Query(ctx context.Context, text string, k int) (corpus.RetrievedContext, error)
}

// Generator performs one templated generative call.
type Generator interface {
	Invoke(ctx context.Context, templateID string, params gen.Params, profile gen.Profile) (string, error)
}

// Profiles selects the backend profile of each stage.
type Profiles struct {
	Cost      gen.Profile
	Risk      gen.Profile
	Synthesis gen.Profile
}

// Recorder receives pipeline metrics.
type Recorder interface {
	StageDone(stage string, d time.Duration, err error)
	Retrieved(passages int)
	Placeholders(n int)
	AuditMismatches(n int)
}

type nopRecorder struct{}

func (nopRecorder) StageDone(string, time.Duration, error) {}
func (nopRecorder) Retrieved(int)                          {}
func (nopRecorder) Placeholders(int)                       {}
func (nopRecorder) AuditMismatches(int)                    {}

// Options configures a Service.
type Options struct {
	Profiles Profiles
	// TopK is the number of passages retrieved for the cost analysis.
	TopK int
	// MaxCandidates is the candidate limit stated in the cost analysis prompt.
	MaxCandidates int
	// Workers bounds concurrent risk analysis calls.
	Workers int
	Logger  *slog.Logger
	Metrics Recorder
}

// Service runs recommendation pipelines. It holds no per-request state and
// is safe for concurrent use.
type Service struct {
	retriever Retriever
	gen       Generator
	opts      Options
	log       *slog.Logger
	metrics   Recorder
}

// New creates a Service.
func New(r Retriever, g Generator, opts Options) *Service {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = nopRecorder{}
	}
	return &Service{retriever: r, gen: g, opts: opts, log: log, metrics: m}
}

// costOutcome is the result of the cost analysis stage.
type costOutcome struct {
	analysis CostAnalysis
	noData   bool
}

// Recommend runs the pipeline for one request. Invalid criteria fail with
// domain.ErrInvalidCriteria. A cost analysis failure aborts the run with a
// *StageError; risk and synthesis failures become placeholders.
func (s *Service) Recommend(ctx context.Context, criteria domain.SelectionCriteria) (*Report, error) {
	c := criteria.Normalize()
	if err := domain.ValidateCriteria(c); err != nil {
		return nil, fmt.Errorf("rag: recommend: %w", err)
	}

	cost, err := stage(s, StateCostAnalysis, s.analyzeCost)(ctx, c).Unwrap()
	if err != nil {
		s.log.Error("rag: run aborted", "stage", StateCostAnalysis, "err", err)
		return nil, &StageError{Stage: StateCostAnalysis, Err: err}
	}
	if cost.noData {
		s.log.Info("rag: no matching passages", "query", BuildQuery(c))
		return &Report{state: StateDone, noData: true}, nil
	}

	report := &Report{state: StateDone, costReport: cost.analysis.Report, candidates: cost.analysis.Candidates}
	if len(report.candidates) == 0 {
		s.log.Info("rag: no candidates, returning cost report")
		return report, nil
	}
	s.audit(cost.analysis)

	report.risks, _ = stage(s, StateRiskAnalysis, s.analyzeRisks)(ctx, report.candidates).Unwrap()
	report.synthesis, report.synthesisErr = stage(s, StateSynthesis, s.synthesize)(ctx, report).Unwrap()
	if report.synthesisErr != nil {
		s.log.Warn("rag: synthesis unavailable", "err", report.synthesisErr)
	}

	s.metrics.Placeholders(report.Placeholders())
	return report, nil
}

// stage wraps a pipeline step with a span, metrics and enter/exit logs.
func stage[In, Out any](s *Service, state State, f fn.Stage[In, Out]) fn.Stage[In, Out] {
	name := string(state)
	return fn.LoggedStage(name, s.log,
		fn.TimedStage(name, s.metrics.StageDone,
			fn.TracedStage("rag."+name, f)))
}

func (s *Service) analyzeCost(ctx context.Context, c domain.SelectionCriteria) fn.Result[costOutcome] {
	rc, err := s.retriever.Query(ctx, BuildQuery(c), s.opts.TopK)
	if err != nil {
		return fn.Err[costOutcome](fmt.Errorf("retrieve: %w", err))
	}
	s.metrics.Retrieved(rc.Len())
	if rc.Empty() {
		return fn.Ok(costOutcome{noData: true})
	}

	raw, err := s.gen.Invoke(ctx, TemplateCostAnalysis, costParams(c, rc, s.opts.MaxCandidates), s.opts.Profiles.Cost)
	if err != nil {
		return fn.Err[costOutcome](err)
	}
	analysis, err := ParseCostAnalysis(raw)
	if err != nil {
		return fn.Err[costOutcome](err)
	}
	if len(analysis.Candidates) > s.opts.MaxCandidates {
		s.log.Warn("rag: more candidates than requested", "candidates", len(analysis.Candidates), "max", s.opts.MaxCandidates)
	}
	return fn.Ok(costOutcome{analysis: analysis})
}

func costParams(c domain.SelectionCriteria, rc corpus.RetrievedContext, maxCandidates int) gen.Params {
	equipment := noEquipment
	if len(c.Equipment) > 0 {
		equipment = strings.Join(c.Equipment, ", ")
	}
	return gen.Params{
		"context":           rc.Text(),
		"classes":           strings.Join(c.ClassNames(), ", "),
		"fuels":             strings.Join(c.FuelNames(), ", "),
		"price_new":         c.MaxPrice,
		"equipment":         equipment,
		"horizon":           c.HorizonYears,
		"max_mileage":       c.MaxMileage,
		"service_cost":      c.ServiceCost,
		"petrol_price":      c.PetrolPrice.StringFixed(2),
		"diesel_price":      c.DieselPrice.StringFixed(2),
		"electricity_price": c.ElectricityPrice.StringFixed(2),
		"max_candidates":    maxCandidates,
		"schema":            CostAnalysisSchema(),
	}
}

// analyzeRisks runs one risk analysis per candidate. Slot i always holds
// the analysis of candidates[i]; a failed call fills its slot with the error
// and never affects the other slots.
func (s *Service) analyzeRisks(ctx context.Context, candidates []string) fn.Result[[]RiskReport] {
	results := fn.ParMapResult(ctx, candidates, s.opts.Workers, func(ctx context.Context, _ int, name string) fn.Result[string] {
		return fn.FromPair(s.gen.Invoke(ctx, TemplateRiskAnalysis, gen.Params{"model_name": name}, s.opts.Profiles.Risk))
	})
	reports := make([]RiskReport, len(results))
	for i, res := range results {
		text, err := res.Unwrap()
		if err != nil {
			s.log.Warn("rag: risk analysis unavailable", "candidate", candidates[i], "slot", i, "err", err)
		}
		reports[i] = RiskReport{Candidate: candidates[i], Text: text, Err: err}
	}
	return fn.Ok(reports)
}

func (s *Service) synthesize(ctx context.Context, r *Report) fn.Result[string] {
	risks := r.Risks()
	sections := make([]string, len(risks))
	for i, rr := range risks {
		sections[i] = rr.Section()
	}
	return fn.FromPair(s.gen.Invoke(ctx, TemplateSynthesis, gen.Params{
		"cost_report":  r.CostReport(),
		"risk_reports": strings.Join(sections, corpus.Separator),
	}, s.opts.Profiles.Synthesis))
}
