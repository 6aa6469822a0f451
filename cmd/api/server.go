package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/WessleyAI/wessley-fleet/engine/domain"
	"github.com/WessleyAI/wessley-fleet/engine/rag"
	"github.com/WessleyAI/wessley-fleet/pkg/metrics"
	"github.com/WessleyAI/wessley-fleet/pkg/mid"
	"github.com/go-chi/chi/v5"
)

// Recommender runs one recommendation.
type Recommender interface {
	Recommend(ctx context.Context, c domain.SelectionCriteria) (*rag.Report, error)
}

// IndexStatus describes the loaded corpus snapshot.
type IndexStatus interface {
	Loaded() bool
	Size() int
	LoadedAt() (time.Time, bool)
}

// serverDeps are the collaborators of the HTTP handlers.
type serverDeps struct {
	Recommender    Recommender
	Index          IndexStatus
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	CORSOrigins    []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

func newServer(d serverDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mid.RequestID(),
		mid.Recover(d.Logger),
		mid.Logger(d.Logger),
		mid.Metrics(d.Metrics),
		mid.CORS(d.CORSOrigins...),
	)

	r.Get("/api/health", handleHealth(d.Index))
	r.Get("/api/catalog", handleCatalog)
	r.With(mid.MaxBody(d.MaxBodyBytes)).Post("/api/recommend", handleRecommend(d.Recommender, d.RequestTimeout, d.Logger))
	r.Handle("/metrics", d.Metrics.Handler())

	return mid.Chain(r, mid.OTel("fleet-api"))
}

type errorBody struct {
	Error   string       `json:"error"`
	State   rag.State    `json:"state,omitempty"`
	Stage   rag.State    `json:"stage,omitempty"`
	Payload string       `json:"payload,omitempty"`
	Fields  []fieldError `json:"fields,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// --- Handlers ---

type healthBody struct {
	Status   string     `json:"status"`
	Loaded   bool       `json:"index_loaded"`
	Passages int        `json:"passages"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
}

func handleHealth(ix IndexStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := healthBody{Status: "ok", Loaded: ix.Loaded(), Passages: ix.Size()}
		if at, ok := ix.LoadedAt(); ok {
			body.LoadedAt = &at
		}
		if !body.Loaded {
			body.Status = "no_index"
		}
		writeJSON(w, http.StatusOK, body)
	}
}

type catalogBody struct {
	Classes   []domain.Option `json:"classes"`
	Fuels     []domain.Option `json:"fuels"`
	Equipment []domain.Option `json:"equipment"`
	Defaults  catalogDefaults `json:"defaults"`
}

type catalogDefaults struct {
	PetrolPrice      string `json:"petrol_price"`
	DieselPrice      string `json:"diesel_price"`
	ElectricityPrice string `json:"electricity_price"`
	MinHorizonYears  int    `json:"min_exploitation_period"`
	MaxHorizonYears  int    `json:"max_exploitation_period"`
	MinMileage       int    `json:"min_max_mileage"`
}

func handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, catalogBody{
		Classes:   domain.Classes,
		Fuels:     domain.Fuels,
		Equipment: domain.Equipment,
		Defaults: catalogDefaults{
			PetrolPrice:      domain.DefaultPetrolPrice.StringFixed(2),
			DieselPrice:      domain.DefaultDieselPrice.StringFixed(2),
			ElectricityPrice: domain.DefaultElectricityPrice.StringFixed(2),
			MinHorizonYears:  domain.MinHorizonYears,
			MaxHorizonYears:  domain.MaxHorizonYears,
			MinMileage:       domain.MinMileage,
		},
	})
}

func handleRecommend(rec Recommender, timeout time.Duration, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := domain.DefaultCriteria()
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
				return
			}
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
			return
		}

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		report, err := rec.Recommend(ctx, c)
		if err != nil {
			status, body := recommendError(err)
			if status >= http.StatusInternalServerError {
				log.Error("recommend failed", "err", err)
			}
			writeJSON(w, status, body)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func recommendError(err error) (int, errorBody) {
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		body := errorBody{Error: "invalid criteria"}
		for _, v := range verrs {
			body.Fields = append(body.Fields, fieldError{Field: v.Field, Message: v.Message})
		}
		return http.StatusBadRequest, body
	}
	var se *rag.StageError
	if errors.As(err, &se) {
		body := errorBody{Error: se.Error(), State: se.State(), Stage: se.Stage}
		body.Payload, _ = se.Payload()
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, body
		}
		return http.StatusBadGateway, body
	}
	return http.StatusInternalServerError, errorBody{Error: "internal server error"}
}
