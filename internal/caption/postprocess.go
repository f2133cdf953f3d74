package caption

import (
	"context"
	"log/slog"
	"strings"

	"github.com/abraxas0001/Caption-Master-Pro/internal/conv"
	"github.com/abraxas0001/Caption-Master-Pro/internal/translate"
)

// Chain is the post-processor pipeline applied to every transformed,
// non-empty caption: chained global substitution, then conditional
// translation.
type Chain struct {
	translator translate.Translator
}

func NewChain(tr translate.Translator) *Chain {
	if tr == nil {
		tr = translate.Noop{}
	}
	return &Chain{translator: tr}
}

// Apply runs the chain. Replacements are applied in table order, so a later
// entry may re-match text produced by an earlier one. Translation runs when
// the conversation language is not the default or the text is in a foreign
// script; on failure the untranslated text is used and the error logged.
func (c *Chain) Apply(ctx context.Context, text string, reps []conv.Replacement, lang string) string {
	if text == "" {
		return text
	}

	for _, r := range reps {
		if r.Target == "" {
			continue
		}
		text = strings.ReplaceAll(text, r.Target, r.Replacement)
	}

	if lang == "" {
		lang = conv.DefaultLanguage
	}
	if lang == conv.DefaultLanguage && !hasForeignScript(text) {
		return text
	}

	translated, err := c.translator.Translate(ctx, text, translate.SourceAuto, lang)
	if err != nil {
		slog.Warn("caption translation failed, keeping original text", "lang", lang, "err", err)
		return text
	}
	return translated
}
