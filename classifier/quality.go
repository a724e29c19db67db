package classifier

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/snap-point/moderation-api/types"
	"go.uber.org/zap"
)

const (
	QualityClassifierName = "quality"
	qualityConfidence     = 0.8
)

type QualityScores struct {
	Readability float64 `json:"readability"`
	Coherence   float64 `json:"coherence"`
	Relevance   float64 `json:"relevance"`
	Originality float64 `json:"originality"`
	Engagement  float64 `json:"engagement"`
	Length      float64 `json:"length"`
	Structure   float64 `json:"structure"`
}

type QualityAnalysis struct {
	Scores       QualityScores `json:"scores"`
	ContentScore float64       `json:"contentScore"`
	OffTopic     bool          `json:"offTopic"`
	Commercial   bool          `json:"commercial"`
	Original     bool          `json:"original"`
	WordCount    int           `json:"wordCount"`
}

var (
	boilerplatePattern = phrasePattern(
		"lorem ipsum", "copy and paste", "share this", "follow for follow", "like for like",
		"f4f", "l4l", "check out my profile", "link in bio", "repost if",
	)
	commercialPattern = phrasePattern(
		"buy", "discount", "promo code", "coupon", "sale", "price", "order now", "shop",
		"deal", "% off", "free shipping", "sponsored",
	)
	callToActionPattern = phrasePattern(
		"share", "comment", "tell me", "thoughts", "join", "check out", "let me know", "what do you think",
	)
	personalPronouns = map[string]bool{
		"i": true, "me": true, "my": true, "we": true, "our": true, "you": true, "your": true,
	}
	stopWords = map[string]bool{
		"about": true, "after": true, "again": true, "their": true, "there": true, "these": true,
		"those": true, "which": true, "while": true, "would": true, "could": true, "should": true,
		"where": true, "being": true, "other": true, "really": true,
	}
)

type QualityAnalyzer struct {
	log      *zap.Logger
	weights  types.QualityWeights
	windows  map[types.ContentType]types.LengthWindow
	keywords map[string]bool
}

type QualityOption func(*QualityAnalyzer)

// WithTopicKeywords enables the off-topic check: long posts that use none of
// the words are flagged. Without a vocabulary every post counts as on-topic.
func WithTopicKeywords(words []string) QualityOption {
	return func(qa *QualityAnalyzer) {
		for _, w := range words {
			for _, tok := range Tokenize(w) {
				qa.keywords[tok] = true
			}
		}
	}
}

func NewQualityAnalyzer(log *zap.Logger, opts ...QualityOption) *QualityAnalyzer {
	qa := &QualityAnalyzer{
		log:      log.Named("quality_analyzer"),
		weights:  types.GetQualityWeights(),
		windows:  types.GetLengthWindows(),
		keywords: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(qa)
	}
	return qa
}

func QualityFallback() types.ModerationResult {
	return types.FailClosed("quality_analysis_error", "Quality analysis failed; content held for review")
}

// Analyze scores non-safety quality. Blank text is approved without analysis.
func (qa *QualityAnalyzer) Analyze(ctx context.Context, text string, ct types.ContentType) (res types.ModerationResult, analysis *QualityAnalysis, err error) {
	if strings.TrimSpace(text) == "" {
		return types.IdentityResult(), nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &types.ClassifierError{Classifier: QualityClassifierName, Err: fmt.Errorf("panic: %v", r)}
			res, analysis = QualityFallback(), nil
		}
	}()
	if err := ctx.Err(); err != nil {
		return QualityFallback(), nil, &types.ClassifierError{Classifier: QualityClassifierName, Err: err}
	}

	a := qa.Score(text, ct)
	return qa.decide(a), &a, nil
}

func (qa *QualityAnalyzer) Score(text string, ct types.ContentType) QualityAnalysis {
	words := Tokenize(text)
	sentences := splitSentences(text)

	s := QualityScores{
		Readability: readability(words, sentences),
		Coherence:   coherence(words, len(sentences)),
		Relevance:   qa.relevance(words),
		Originality: originality(text, words),
		Engagement:  engagement(text, words),
		Length:      qa.lengthScore(len(words), ct),
		Structure:   structure(text, len(words)),
	}
	w := qa.weights
	score := s.Readability*w.Readability + s.Coherence*w.Coherence + s.Relevance*w.Relevance +
		s.Originality*w.Originality + s.Engagement*w.Engagement + s.Length*w.Length + s.Structure*w.Structure

	a := QualityAnalysis{
		Scores:     s,
		WordCount:  len(words),
		OffTopic:   ct == types.ContentTypePost && len(words) >= 20 && s.Relevance == 0,
		Commercial: len(commercialPattern.FindAllStringIndex(text, -1)) >= 2,
		Original:   s.Originality >= 0.5,
	}
	if a.OffTopic {
		score *= w.OffTopicPenalty
	}
	if a.Commercial {
		score *= w.CommercialPenalty
	}
	if !a.Original {
		score *= w.UnoriginalPenalty
	}
	a.ContentScore = clamp01(score)
	return a
}

// readability is the Flesch reading-ease score scaled to [0,1].
func readability(words []string, sentences []string) float64 {
	if len(words) == 0 {
		return 0
	}
	n := len(sentences)
	if n == 0 {
		n = 1
	}
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}
	flesch := 206.835 - 1.015*float64(len(words))/float64(n) - 84.6*float64(syllables)/float64(len(words))
	return clamp01(flesch / 100)
}

// coherence rewards key terms that recur across sentences.
func coherence(words []string, sentences int) float64 {
	if sentences <= 1 {
		return 0.7
	}
	counts := make(map[string]int)
	for _, w := range words {
		if len(w) > 4 && !stopWords[w] {
			counts[w]++
		}
	}
	repeated := 0
	for _, c := range counts {
		if c >= 2 {
			repeated++
		}
	}
	return clamp01(0.3 + 0.7*float64(repeated)/float64(sentences-1))
}

func (qa *QualityAnalyzer) relevance(words []string) float64 {
	if len(qa.keywords) == 0 {
		return 1
	}
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if qa.keywords[w] {
			hits++
		}
	}
	// a handful of topical words in a typical post is already on-topic
	return clamp01(float64(hits) / float64(len(words)) * 5)
}

func originality(text string, words []string) float64 {
	score := 1.0
	score -= 0.3 * float64(len(boilerplatePattern.FindAllStringIndex(text, -1)))
	score -= 0.3 * float64(len(spamPhrasePattern.FindAllStringIndex(text, -1)))
	if len(words) >= 10 {
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[w] = struct{}{}
		}
		if float64(len(unique))/float64(len(words)) < 0.5 {
			score -= 0.4
		}
	}
	return clamp01(score)
}

func engagement(text string, words []string) float64 {
	score := 0.3
	if strings.Contains(text, "?") {
		score += 0.2
	}
	if strings.Contains(text, "!") {
		score += 0.1
	}
	if callToActionPattern.MatchString(text) {
		score += 0.2
	}
	for _, w := range words {
		if personalPronouns[w] {
			score += 0.2
			break
		}
	}
	return clamp01(score)
}

func (qa *QualityAnalyzer) lengthScore(words int, ct types.ContentType) float64 {
	win, ok := qa.windows[ct]
	if !ok {
		win = qa.windows[types.ContentTypePost]
	}
	switch {
	case words >= win.Min && words <= win.Max:
		return 1.0
	case words < win.Min && words*2 >= win.Min:
		return 0.5
	case words < win.Min:
		return 0.2
	case words <= win.Max*2:
		return 0.6
	default:
		return 0.3
	}
}

func structure(text string, words int) float64 {
	trimmed := strings.TrimSpace(text)
	score := 1.0
	for _, r := range trimmed {
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			score -= 0.2
		}
		break
	}
	if words > 100 && !strings.Contains(trimmed, "\n\n") {
		score -= 0.2
	}
	if !strings.ContainsAny(trimmed, ".!?,;:") {
		score -= 0.2
	}
	if capsRatio(trimmed) > 0.5 {
		score -= 0.3
	}
	return clamp01(score)
}

func (qa *QualityAnalyzer) decide(a QualityAnalysis) types.ModerationResult {
	res := types.IdentityResult()
	res.Confidence = qualityConfidence

	var flags, reasons []string
	add := func(flag, reason string) {
		flags = append(flags, flag)
		reasons = append(reasons, reason)
	}
	low := a.ContentScore < qa.weights.MinimumContentScore
	if low {
		add("low_quality", "Content quality is below the minimum")
	}
	if a.OffTopic {
		add("off_topic", "Content is off-topic")
	}
	if a.Commercial {
		add("commercial_content", "Content appears commercial")
	}
	if !a.Original {
		add("unoriginal_content", "Content appears unoriginal")
	}

	switch {
	case a.ContentScore < qa.weights.MinimumContentScore/2:
		res.Severity = types.SeverityHigh
	case low || !a.Original:
		res.Severity = types.SeverityMedium
	default:
		res.Severity = types.SeverityLow
	}
	res.IsApproved = !(res.Severity.AtLeast(types.SeverityHigh) || low)
	res.RequiresHumanReview = low || !a.Original

	res.Flags = types.UnionStrings(flags)
	res.Reasons = types.UnionStrings(reasons)
	res.Metadata = map[string]any{
		"contentScore": a.ContentScore,
		"scores":       a.Scores,
		"wordCount":    a.WordCount,
	}
	return res
}
