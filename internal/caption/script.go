package caption

import "unicode"

// foreignScripts are the unicode blocks that trigger translation even when
// the conversation language is the default. Latin and Devanagari text is
// treated as native and passes through untranslated.
var foreignScripts = []*unicode.RangeTable{
	unicode.Cyrillic,
	unicode.Han,
	unicode.Hiragana,
	unicode.Katakana,
	unicode.Hangul,
	unicode.Arabic,
	unicode.Hebrew,
	unicode.Thai,
	unicode.Georgian,
	unicode.Armenian,
}

// hasForeignScript reports whether any rune of s belongs to one of the
// foreign script blocks.
func hasForeignScript(s string) bool {
	for _, r := range s {
		for _, table := range foreignScripts {
			if unicode.Is(table, r) {
				return true
			}
		}
	}
	return false
}
