// Package translate provides the best-effort caption translation capability.
package translate

import "context"

// SourceAuto asks the backend to detect the source language itself.
const SourceAuto = "auto"

// Translator converts text between languages. Implementations are
// best-effort: callers fall back to the input text on error.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Noop returns the input unchanged. Used when translation is disabled and
// as a stand-in for tests.
type Noop struct{}

func (Noop) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}
