// Package translate provides the machine-translation port used to
// materialize the translated variant of each chat message.
package translate

import (
	"context"
	"errors"
)

// ErrUnavailable reports that no translation could be produced. It
// never blocks message delivery: callers degrade to a placeholder.
var ErrUnavailable = errors.New("translation unavailable")

// Placeholder stands in for a variant that could not be translated.
const Placeholder = "(translation unavailable)"

// Translator turns text from one language into another.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Func adapts a plain function into a Translator.
type Func func(ctx context.Context, text, sourceLang, targetLang string) (string, error)

func (f Func) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return f(ctx, text, sourceLang, targetLang)
}

// Noop passes text through untranslated, for setups without a
// configured translation backend.
type Noop struct{}

func (Noop) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

// Materialize resolves the translated variant's text. Identical source
// and target languages skip the backend entirely; failures degrade to
// the placeholder so message delivery and ordering never stall on the
// translation provider.
func Materialize(ctx context.Context, tr Translator, text, sourceLang, targetLang string) string {
	if sourceLang == targetLang || tr == nil {
		return text
	}
	translated, err := tr.Translate(ctx, text, sourceLang, targetLang)
	if err != nil || translated == "" {
		return Placeholder
	}
	return translated
}
