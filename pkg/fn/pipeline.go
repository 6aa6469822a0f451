package fn

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "wessley-fleet/pkg/fn"

// Stage is a function that transforms In to Out within a context.
type Stage[In, Out any] func(context.Context, In) Result[Out]

// Then composes two stages, short-circuiting on error.
func Then[A, B, C any](first Stage[A, B], second Stage[B, C]) Stage[A, C] {
	return func(ctx context.Context, a A) Result[C] {
		r := first(ctx, a)
		if r.IsErr() {
			_, err := r.Unwrap()
			return Err[C](err)
		}
		v, _ := r.Unwrap()
		return second(ctx, v)
	}
}

// TracedStage wraps a stage with an OTel span named name.
func TracedStage[In, Out any](name string, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		ctx, span := otel.Tracer(tracerName).Start(ctx, name)
		defer span.End()
		result := stage(ctx, in)
		if result.IsErr() {
			_, err := result.Unwrap()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return result
	}
}

// TimedStage calls observe with the stage name, elapsed time and outcome
// after every run.
func TimedStage[In, Out any](name string, observe func(name string, d time.Duration, err error), stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		start := time.Now()
		result := stage(ctx, in)
		_, err := result.Unwrap()
		if observe != nil {
			observe(name, time.Since(start), err)
		}
		return result
	}
}

// LoggedStage wraps a stage with logging at entry and exit, including the
// duration and the error of a failed run.
func LoggedStage[In, Out any](name string, log *slog.Logger, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		log.Info("stage.enter", "stage", name)
		start := time.Now()
		r := stage(ctx, in)
		if _, err := r.Unwrap(); err != nil {
			log.Error("stage.exit", "stage", name, "duration", time.Since(start), "err", err)
		} else {
			log.Info("stage.exit", "stage", name, "duration", time.Since(start))
		}
		return r
	}
}
