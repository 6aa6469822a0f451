// Package fn holds the small generic building blocks the engine pipelines
// are composed from: a Result type, order-preserving fan-out, and traced stages.
package fn

import "fmt"

// Result[T] carries either a value or an error through a pipeline.
type Result[T any] struct {
	val T
	err error
	ok  bool
}

// Ok creates a successful Result.
func Ok[T any](v T) Result[T] {
	return Result[T]{val: v, ok: true}
}

// Err creates a failed Result. A nil error still yields a failed Result.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = fmt.Errorf("fn: failed result without error")
	}
	return Result[T]{err: err}
}

// FromPair creates a Result from a (value, error) pair.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

// IsErr reports whether the result failed.
func (r Result[T]) IsErr() bool { return !r.ok }

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }
