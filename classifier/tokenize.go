package classifier

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonTokenChars = regexp.MustCompile(`[^\pL\pN\s']+`)
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	vowelGroups   = regexp.MustCompile(`[aeiouy]+`)
)

// NormalizeText lower-cases text and folds accents so "Cåsino" matches "casino".
func NormalizeText(text string) string {
	// transformers are stateful, so each call builds its own chain
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(fold, strings.ToLower(text))
	if err != nil {
		zap.L().Warn("unicode normalization error", zap.Error(err))
		return strings.ToLower(text)
	}
	return out
}

// Tokenize splits free-form text into normalized word tokens.
func Tokenize(text string) []string {
	return strings.Fields(nonTokenChars.ReplaceAllString(NormalizeText(text), " "))
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceSplit.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func countSyllables(word string) int {
	word = strings.TrimSuffix(strings.ToLower(word), "e")
	n := len(vowelGroups.FindAllString(word, -1))
	if n == 0 {
		return 1
	}
	return n
}

// phrasePattern compiles a case-insensitive, word-bounded alternation.
func phrasePattern(phrases ...string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// confidenceBand maps a risk score to the classifier confidence: high at the
// extremes, medium in the next band, low in the ambiguous middle.
func confidenceBand(risk float64) float64 {
	switch {
	case risk < 0.1 || risk > 0.8:
		return 0.9
	case risk < 0.3 || risk > 0.6:
		return 0.7
	default:
		return 0.5
	}
}
