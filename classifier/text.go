// Package classifier holds the deterministic text, image and quality
// analyzers. Each analyzer returns a complete types.ModerationResult and, on
// failure, a documented fail-closed fallback together with a
// *types.ClassifierError.
package classifier

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/snap-point/moderation-api/types"
	"go.uber.org/zap"
)

const TextClassifierName = "text"

// TextScores holds per-category risk in [0,1].
type TextScores struct {
	Toxicity     float64 `json:"toxicity"`
	Profanity    float64 `json:"profanity"`
	Spam         float64 `json:"spam"`
	Hate         float64 `json:"hate"`
	Harassment   float64 `json:"harassment"`
	Violence     float64 `json:"violence"`
	Sexual       float64 `json:"sexual"`
	Drugs        float64 `json:"drugs"`
	Gambling     float64 `json:"gambling"`
	PersonalInfo float64 `json:"personalInfo"`
}

type TextAnalysis struct {
	Scores    TextScores `json:"scores"`
	SpamScore int        `json:"spamScore"`
	RiskScore float64    `json:"riskScore"`
}

// keywordCategory scores one category as perHit * occurrences, capped at 1.
type keywordCategory struct {
	pattern *regexp.Regexp
	perHit  float64
}

func (k keywordCategory) score(text string) float64 {
	return clamp01(float64(len(k.pattern.FindAllStringIndex(text, -1))) * k.perHit)
}

var (
	toxicityWords = keywordCategory{phrasePattern(
		"stupid", "idiot", "moron", "loser", "dumb", "pathetic", "worthless", "trash", "shut up", "clown",
	), 0.25}
	profanityWords = keywordCategory{phrasePattern(
		"damn", "crap", "wtf", "fuck", "fucking", "shit", "bitch", "bastard", "asshole", "dick",
	), 0.3}
	hateWords = keywordCategory{phrasePattern(
		"subhuman", "vermin", "inferior race", "go back to your country", "exterminate them", "hate all", "degenerates",
	), 0.5}
	harassmentWords = keywordCategory{phrasePattern(
		"kill yourself", "kys", "nobody likes you", "i will find you", "i know where you live", "you should die", "ugly freak",
	), 0.6}
	violenceWords = keywordCategory{phrasePattern(
		"kill", "murder", "shoot", "stab", "bomb", "behead", "beat you", "attack", "massacre",
	), 0.3}
	sexualWords = keywordCategory{phrasePattern(
		"nude", "nudes", "porn", "xxx", "nsfw", "onlyfans", "sex", "sexting",
	), 0.3}
	drugWords = keywordCategory{phrasePattern(
		"cocaine", "heroin", "meth", "mdma", "lsd", "weed for sale", "buy pills", "plug",
	), 0.35}
	gamblingWords = keywordCategory{phrasePattern(
		"casino", "betting", "bet now", "jackpot", "poker", "slots", "free spins",
	), 0.3}

	personalInfoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
		regexp.MustCompile(`(?:\+?\d{1,3}[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`),
		regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		regexp.MustCompile(`\b(?:\d[ \-]?){13,16}\b`),
	}

	urlPattern        = regexp.MustCompile(`(?i)\bhttps?://[^\s]+|\bwww\.[^\s]+`)
	repeatedCharRun   = 10
	spamPhrasePattern = phrasePattern(
		"click here", "buy now", "limited time", "act now", "free money", "make money fast",
		"work from home", "100% free", "earn cash", "winner", "congratulations you won", "dm me for",
	)
)

// hasRepeatedRun reports whether any rune repeats n or more times in a row.
// Go's regexp has no backreferences, so this is a linear scan.
func hasRepeatedRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

func capsRatio(text string) float64 {
	letters, upper := 0, 0
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			letters++
		} else if r >= 'A' && r <= 'Z' {
			letters++
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// spamScore counts independent spam indicators.
func spamScore(text string) int {
	score := 0
	if len(urlPattern.FindAllString(text, -1)) >= 3 {
		score++
	}
	if hasRepeatedRun(text, repeatedCharRun) {
		score++
	}
	score += len(spamPhrasePattern.FindAllStringIndex(text, -1))
	if len(text) > 20 && capsRatio(text) > 0.7 {
		score++
	}
	return score
}

type TextClassifier struct {
	log     *zap.Logger
	weights types.TextWeights
}

func NewTextClassifier(log *zap.Logger) *TextClassifier {
	return &TextClassifier{
		log:     log.Named("text_classifier"),
		weights: types.GetTextWeights(),
	}
}

// TextFallback is used whenever text analysis fails: the content is held and reviewed.
func TextFallback() types.ModerationResult {
	return types.FailClosed("text_analysis_error", "Text analysis failed; content held for review")
}

// Score computes category scores without applying any policy.
func (tc *TextClassifier) Score(text string) TextAnalysis {
	norm := NormalizeText(text)
	spam := spamScore(text)

	var personal float64
	for _, p := range personalInfoPatterns {
		personal += float64(len(p.FindAllStringIndex(text, -1))) * 0.4
	}

	s := TextScores{
		Toxicity:     toxicityWords.score(norm),
		Profanity:    profanityWords.score(norm),
		Spam:         clamp01(float64(spam) * 0.25),
		Hate:         hateWords.score(norm),
		Harassment:   harassmentWords.score(norm),
		Violence:     violenceWords.score(norm),
		Sexual:       sexualWords.score(norm),
		Drugs:        drugWords.score(norm),
		Gambling:     gamblingWords.score(norm),
		PersonalInfo: clamp01(personal),
	}
	w := tc.weights
	risk := s.Violence*w.Violence + s.Hate*w.Hate + s.Harassment*w.Harassment +
		s.Toxicity*w.Toxicity + s.PersonalInfo*w.PersonalInfo + s.Profanity*w.Profanity +
		s.Sexual*w.Sexual + s.Spam*w.Spam + s.Drugs*w.Drugs + s.Gambling*w.Gambling

	return TextAnalysis{Scores: s, SpamScore: spam, RiskScore: clamp01(risk)}
}

// Analyze classifies text. Blank text is approved without analysis and the
// returned *TextAnalysis is nil. On error the result is TextFallback.
func (tc *TextClassifier) Analyze(ctx context.Context, text string) (res types.ModerationResult, analysis *TextAnalysis, err error) {
	if strings.TrimSpace(text) == "" {
		return types.IdentityResult(), nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &types.ClassifierError{Classifier: TextClassifierName, Err: fmt.Errorf("panic: %v", r)}
			res, analysis = TextFallback(), nil
		}
	}()
	if err := ctx.Err(); err != nil {
		return TextFallback(), nil, &types.ClassifierError{Classifier: TextClassifierName, Err: err}
	}

	a := tc.Score(text)
	return tc.decide(a), &a, nil
}

func (tc *TextClassifier) decide(a TextAnalysis) types.ModerationResult {
	s := a.Scores
	res := types.IdentityResult()

	var flags, reasons []string
	add := func(flag, reason string) {
		flags = append(flags, flag)
		reasons = append(reasons, reason)
	}
	if a.SpamScore >= 2 {
		add("spam", "Content matches multiple spam indicators")
	}
	if s.Toxicity > 0.3 {
		add("toxicity", "Toxic language detected")
	}
	if s.Profanity > 0.3 {
		add("profanity", "Profanity detected")
	}
	if s.Hate > 0.3 {
		add("hate_speech", "Hate speech detected")
	}
	if s.Harassment > 0.3 {
		add("harassment", "Harassment detected")
	}
	if s.Violence > 0.3 {
		add("violence", "Violent language detected")
	}
	if s.Sexual > 0.3 {
		add("sexual_content", "Sexual content detected")
	}
	if s.Drugs > 0.3 {
		add("drugs", "Drug-related content detected")
	}
	if s.Gambling > 0.3 {
		add("gambling", "Gambling-related content detected")
	}
	if s.PersonalInfo > 0.3 {
		add("personal_info", "Personal information exposed")
	}

	switch {
	case s.Violence > 0.5 || s.Hate > 0.4 || s.Harassment > 0.5:
		res.Severity = types.SeverityCritical
	case a.RiskScore > 0.6 || s.PersonalInfo > 0.3:
		res.Severity = types.SeverityHigh
	case a.RiskScore > 0.3:
		res.Severity = types.SeverityMedium
	default:
		res.Severity = types.SeverityLow
	}

	res.Confidence = confidenceBand(a.RiskScore)
	res.IsApproved = !(res.Severity == types.SeverityCritical ||
		(res.Severity == types.SeverityHigh && a.RiskScore > 0.7) ||
		a.RiskScore > 0.8)
	res.RequiresHumanReview = res.Severity == types.SeverityCritical ||
		(res.Severity == types.SeverityHigh && res.Confidence < 0.8) ||
		(a.RiskScore > 0.4 && res.Confidence < 0.6)

	if s.Harassment > 0.5 || s.Hate > 0.4 {
		res.AutoActions = []string{types.ActionHideContent, types.ActionSendWarning}
	}
	res.Flags = types.UnionStrings(flags)
	res.Reasons = types.UnionStrings(reasons)
	res.AutoActions = types.UnionStrings(res.AutoActions)
	res.Metadata = map[string]any{
		"riskScore": a.RiskScore,
		"spamScore": a.SpamScore,
		"scores":    s,
	}
	return res
}

// SpamScore is the number of spam indicators present in text.
func SpamScore(text string) int {
	return spamScore(text)
}

// ExtractURLs returns the links found in text, in order of appearance.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}
