package classifier

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/snap-point/moderation-api/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const ImageClassifierName = "image"

type ImageScores struct {
	Adult    float64 `json:"adult"`
	Violence float64 `json:"violence"`
	Racy     float64 `json:"racy"`
	Medical  float64 `json:"medical"`
	Spoof    float64 `json:"spoof"`
}

type ImageAnalysis struct {
	URL       string      `json:"url"`
	Scores    ImageScores `json:"scores"`
	Labels    []string    `json:"labels"`
	Faces     int         `json:"faces"`
	Text      string      `json:"text,omitempty"`
	Quality   float64     `json:"quality"`
	RiskScore float64     `json:"riskScore"`
}

// ImageItemResult is one entry of a bulk run. Err is set when the item failed;
// Result then holds the fallback.
type ImageItemResult struct {
	URL      string                 `json:"url"`
	Result   types.ModerationResult `json:"result"`
	Analysis *ImageAnalysis         `json:"analysis,omitempty"`
	Err      string                 `json:"error,omitempty"`
}

type imageEntry struct {
	result   types.ModerationResult
	analysis ImageAnalysis
}

type ImageClassifierOptions struct {
	Inspector  ImageInspector
	CacheSize  int
	CacheTTL   time.Duration
	BatchSize  int
	BatchDelay time.Duration
}

type ImageClassifier struct {
	vision    VisionClient
	inspector ImageInspector
	cache     *expirable.LRU[string, imageEntry]
	weights   types.ImageWeights
	opts      ImageClassifierOptions
	log       *zap.Logger
}

func NewImageClassifier(vision VisionClient, opts ImageClassifierOptions, log *zap.Logger) *ImageClassifier {
	if opts.BatchSize <= 0 {
		opts.BatchSize = types.DEFAULT_IMAGE_BATCH_SIZE
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	ic := &ImageClassifier{
		vision:    vision,
		inspector: opts.Inspector,
		weights:   types.GetImageWeights(),
		opts:      opts,
		log:       log.Named("image_classifier"),
	}
	if opts.CacheTTL > 0 {
		ic.cache = expirable.NewLRU[string, imageEntry](opts.CacheSize, nil, opts.CacheTTL)
	}
	return ic
}

func ImageFallback() types.ModerationResult {
	return types.FailClosed("image_analysis_error", "Image analysis failed; content held for review")
}

func invalidImageResult(reason string) types.ModerationResult {
	r := types.IdentityResult()
	r.IsApproved = false
	r.Severity = types.SeverityMedium
	r.Flags = []string{"invalid_image_url"}
	r.Reasons = []string{reason}
	return r
}

// ValidateImageURL checks the scheme and the file extension allow-list.
func ValidateImageURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return types.Validationf("malformed image url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return types.Validationf("unsupported image url scheme %q", u.Scheme)
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, allowed := range types.GetImageExtensions() {
		if ext == allowed {
			return nil
		}
	}
	return types.Validationf("unsupported image extension %q", ext)
}

// Analyze classifies one image. Invalid URLs are rejected without calling the
// vision backend and without an error. Backend failures return ImageFallback
// and a *types.ClassifierError.
func (ic *ImageClassifier) Analyze(ctx context.Context, imageURL string) (res types.ModerationResult, analysis *ImageAnalysis, err error) {
	if verr := ValidateImageURL(imageURL); verr != nil {
		return invalidImageResult("Invalid image URL: " + verr.Error()), nil, nil
	}
	if ic.cache != nil {
		if e, ok := ic.cache.Get(imageURL); ok {
			a := e.analysis
			return e.result, &a, nil
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = &types.ClassifierError{Classifier: ImageClassifierName, Err: fmt.Errorf("panic: %v", r)}
			res, analysis = ImageFallback(), nil
		}
	}()

	ann, err := ic.vision.Annotate(ctx, imageURL)
	if err != nil {
		return ImageFallback(), nil, &types.ClassifierError{Classifier: ImageClassifierName, Err: err}
	}
	if ic.inspector != nil {
		obj, err := ic.inspector.Inspect(ctx, imageURL)
		if err != nil {
			// metadata is an enrichment; the vision verdict still stands
			ic.log.Warn("image inspection failed", zap.String("url", imageURL), zap.Error(err))
		}
		applyObject(ann, obj)
	}

	a := ic.score(imageURL, ann)
	res = ic.decide(a)
	if ic.cache != nil {
		ic.cache.Add(imageURL, imageEntry{result: res, analysis: a})
	}
	return res, &a, nil
}

func (ic *ImageClassifier) score(imageURL string, ann *VisionAnnotation) ImageAnalysis {
	s := ImageScores{
		Adult:    clamp01(ann.Adult),
		Violence: clamp01(ann.Violence),
		Racy:     clamp01(ann.Racy),
		Medical:  clamp01(ann.Medical),
		Spoof:    clamp01(ann.Spoof),
	}
	w := ic.weights
	risk := s.Adult*w.Adult + s.Violence*w.Violence + s.Racy*w.Racy + s.Medical*w.Medical + s.Spoof*w.Spoof
	if ann.Quality < 0.3 {
		risk += w.LowQualityPenalty
	}
	labels := types.UnionStrings(ann.Labels)
	for _, l := range types.GetSuspiciousImageLabels() {
		if types.HasString(labels, l) {
			risk += w.SuspiciousLabelPenalty
			break
		}
	}
	if suspiciousImageText(ann.Text) {
		risk += w.SuspiciousTextPenalty
	}
	return ImageAnalysis{
		URL:       imageURL,
		Scores:    s,
		Labels:    labels,
		Faces:     ann.Faces,
		Text:      ann.Text,
		Quality:   ann.Quality,
		RiskScore: clamp01(risk),
	}
}

func suspiciousImageText(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	norm := NormalizeText(text)
	return spamPhrasePattern.MatchString(norm) ||
		profanityWords.pattern.MatchString(norm) ||
		sexualWords.pattern.MatchString(norm)
}

func (ic *ImageClassifier) decide(a ImageAnalysis) types.ModerationResult {
	s := a.Scores
	res := types.IdentityResult()

	var flags, reasons []string
	add := func(flag, reason string) {
		flags = append(flags, flag)
		reasons = append(reasons, reason)
	}
	if s.Adult > 0.5 {
		add("adult_content", "Adult content detected in image")
	}
	if s.Violence > 0.5 {
		add("violent_imagery", "Violent imagery detected")
	}
	if s.Racy > 0.6 {
		add("racy_content", "Racy content detected in image")
	}
	if s.Medical > 0.6 {
		add("medical_content", "Graphic medical content detected")
	}
	if s.Spoof > 0.6 {
		add("spoof", "Image appears manipulated")
	}
	if a.Quality < 0.3 {
		add("low_quality_image", "Image quality is too low")
	}
	for _, l := range types.GetSuspiciousImageLabels() {
		if types.HasString(a.Labels, l) {
			add("suspicious_label", "Suspicious image label: "+l)
		}
	}
	if suspiciousImageText(a.Text) {
		add("suspicious_image_text", "Image text matches spam or inappropriate patterns")
	}

	switch {
	case s.Adult > 0.8 || s.Violence > 0.7:
		res.Severity = types.SeverityCritical
	case a.RiskScore > 0.6:
		res.Severity = types.SeverityHigh
	case a.RiskScore > 0.3:
		res.Severity = types.SeverityMedium
	default:
		res.Severity = types.SeverityLow
	}

	res.Confidence = confidenceBand(a.RiskScore)
	res.IsApproved = !(res.Severity == types.SeverityCritical ||
		s.Adult > 0.7 || s.Violence > 0.6 || a.RiskScore > 0.7)
	res.RequiresHumanReview = res.Severity == types.SeverityCritical ||
		(res.Severity == types.SeverityHigh && res.Confidence < 0.8) ||
		(a.RiskScore > 0.4 && res.Confidence < 0.6)
	if s.Adult > 0.8 {
		res.AutoActions = []string{types.ActionHideContent}
	}

	res.Flags = types.UnionStrings(flags)
	res.Reasons = types.UnionStrings(reasons)
	res.AutoActions = types.UnionStrings(res.AutoActions)
	res.Metadata = map[string]any{
		"url":       a.URL,
		"riskScore": a.RiskScore,
		"scores":    s,
		"labels":    a.Labels,
		"faces":     a.Faces,
		"quality":   a.Quality,
	}
	return res
}

// AnalyzeBulk classifies urls in fixed-size batches, pausing between batches.
// Item failures are reported in place and never abort the run. If ctx is
// cancelled, the remaining items carry the fallback and the context error.
func (ic *ImageClassifier) AnalyzeBulk(ctx context.Context, urls []string) []ImageItemResult {
	out := make([]ImageItemResult, len(urls))
	for start := 0; start < len(urls); start += ic.opts.BatchSize {
		end := start + ic.opts.BatchSize
		if end > len(urls) {
			end = len(urls)
		}
		if start > 0 && ic.opts.BatchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(ic.opts.BatchDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			for i := start; i < len(urls); i++ {
				out[i] = ImageItemResult{URL: urls[i], Result: ImageFallback(), Err: err.Error()}
			}
			return out
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				res, a, err := ic.Analyze(ctx, urls[i])
				item := ImageItemResult{URL: urls[i], Result: res, Analysis: a}
				if err != nil {
					ic.log.Warn("bulk image item failed", zap.String("url", urls[i]), zap.Error(err))
					item.Err = err.Error()
				}
				out[i] = item
				return nil
			})
		}
		_ = g.Wait()
	}
	return out
}
