// internal/common/genai/fallback.go
package genai

import "context"

// WithFallback returns primary's value, or fallback's when primary fails.
// onFallback, if set, receives the primary error. The bool reports whether
// the fallback was used.
func WithFallback[T any](ctx context.Context, primary func(context.Context) (T, error), fallback func() T, onFallback func(error)) (T, bool) {
	value, err := primary(ctx)
	if err == nil {
		return value, false
	}
	if onFallback != nil {
		onFallback(err)
	}
	return fallback(), true
}
