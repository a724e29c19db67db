// Package moderation runs the classifiers and the rule engine over a piece of
// content, merges their opinions and applies the outcome.
package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/snap-point/moderation-api/automod"
	"github.com/snap-point/moderation-api/classifier"
	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/notify"
	"github.com/snap-point/moderation-api/queue"
	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type TextAnalyzer interface {
	Analyze(ctx context.Context, text string) (types.ModerationResult, *classifier.TextAnalysis, error)
}

type ImageAnalyzer interface {
	Analyze(ctx context.Context, imageURL string) (types.ModerationResult, *classifier.ImageAnalysis, error)
}

type QualityScorer interface {
	Analyze(ctx context.Context, text string, ct types.ContentType) (types.ModerationResult, *classifier.QualityAnalysis, error)
}

type RuleApplier interface {
	ApplyRules(ctx context.Context, content types.ContentToModerate) (automod.Outcome, error)
}

type orchestratorStore interface {
	store.ResultStore
	store.AppealStore
	OpenQueueItem(ctx context.Context, contentID, contentType string) (*models.QueueItem, error)
	QueueCounts(ctx context.Context) (map[string]int64, error)
	ReportCounts(ctx context.Context) (map[string]int64, error)
	HideContent(ctx context.Context, contentID string, ct types.ContentType) error
	FlagUser(ctx context.Context, userID string) error
	WarnUser(ctx context.Context, userID string) error
	SuspendUser(ctx context.Context, userID string, until time.Time) error
	LogActivity(ctx context.Context, entry *models.ActivityLog) error
}

type Options struct {
	ClassifierTimeout  time.Duration
	BatchSize          int
	BatchDelay         time.Duration
	SuspensionDuration time.Duration
}

type Orchestrator struct {
	text    TextAnalyzer
	image   ImageAnalyzer
	quality QualityScorer
	rules   RuleApplier

	store  orchestratorStore
	queue  *queue.Queue
	notify *notify.Dispatcher
	opts   Options
	log    *zap.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(text TextAnalyzer, image ImageAnalyzer, quality QualityScorer, rules RuleApplier,
	s orchestratorStore, q *queue.Queue, d *notify.Dispatcher, opts Options, log *zap.Logger) *Orchestrator {
	if opts.ClassifierTimeout <= 0 {
		opts.ClassifierTimeout = types.DEFAULT_CLASSIFIER_TIMEOUT
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = types.DEFAULT_BULK_BATCH_SIZE
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	if opts.SuspensionDuration <= 0 {
		opts.SuspensionDuration = types.DEFAULT_SUSPENSION
	}
	return &Orchestrator{
		text:    text,
		image:   image,
		quality: quality,
		rules:   rules,
		store:   s,
		queue:   q,
		notify:  d,
		opts:    opts,
		log:     log.Named("moderation"),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withTimeout runs fn with a deadline and gives up waiting once it passes,
// even if fn ignores its context.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) T) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan T, 1)
	go func() { done <- fn(ctx) }()
	select {
	case v := <-done:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func validateContent(c types.ContentToModerate) error {
	switch {
	case strings.TrimSpace(c.ID) == "":
		return types.Validationf("id is required")
	case strings.TrimSpace(c.UserID) == "":
		return types.Validationf("userId is required")
	case !c.Type.Valid():
		return types.Validationf("invalid content type %q", c.Type)
	}
	return nil
}

// analysis is one classifier's contribution to a run.
type analysis struct {
	result types.ModerationResult
	detail any
	err    error
}

type textOutcome struct {
	res types.ModerationResult
	a   *classifier.TextAnalysis
	err error
}

type imageOutcome struct {
	res types.ModerationResult
	a   *classifier.ImageAnalysis
	err error
}

type qualityOutcome struct {
	res types.ModerationResult
	a   *classifier.QualityAnalysis
	err error
}

type rulesOutcome struct {
	out automod.Outcome
	err error
}

// signals runs every analyzer concurrently, each under its own timeout. The
// returned signals are in merge order: text, images in input order, quality,
// rules. Failed analyzers contribute their fail-closed fallback.
func (o *Orchestrator) signals(ctx context.Context, c types.ContentToModerate) []types.Signal {
	hasText := strings.TrimSpace(c.Content) != ""
	var (
		text    analysis
		images  = make([]analysis, len(c.ImageURLs))
		quality analysis
		rules   analysis
		ruleOut automod.Outcome
		timeout = o.opts.ClassifierTimeout
	)

	var g errgroup.Group
	if hasText {
		g.Go(func() error {
			v, err := withTimeout(ctx, timeout, func(ctx context.Context) textOutcome {
				res, a, err := o.text.Analyze(ctx, c.Content)
				return textOutcome{res, a, err}
			})
			if err == nil {
				err = v.err
			}
			text = analysis{result: v.res, detail: v.a, err: err}
			if err != nil {
				text.result = classifier.TextFallback()
			}
			return nil
		})
		g.Go(func() error {
			v, err := withTimeout(ctx, timeout, func(ctx context.Context) qualityOutcome {
				res, a, err := o.quality.Analyze(ctx, c.Content, c.Type)
				return qualityOutcome{res, a, err}
			})
			if err == nil {
				err = v.err
			}
			quality = analysis{result: v.res, detail: v.a, err: err}
			if err != nil {
				quality.result = classifier.QualityFallback()
			}
			return nil
		})
	}
	for i, u := range c.ImageURLs {
		i, u := i, u
		g.Go(func() error {
			v, err := withTimeout(ctx, timeout, func(ctx context.Context) imageOutcome {
				res, a, err := o.image.Analyze(ctx, u)
				return imageOutcome{res, a, err}
			})
			if err == nil {
				err = v.err
			}
			images[i] = analysis{result: v.res, detail: v.a, err: err}
			if err != nil {
				images[i].result = classifier.ImageFallback()
			}
			return nil
		})
	}
	g.Go(func() error {
		v, err := withTimeout(ctx, timeout, func(ctx context.Context) rulesOutcome {
			out, err := o.rules.ApplyRules(ctx, c)
			return rulesOutcome{out, err}
		})
		if err == nil {
			err = v.err
		}
		ruleOut = v.out
		rules = analysis{err: err}
		if err != nil {
			rules.result = automod.RulesFallback()
		}
		return nil
	})
	_ = g.Wait()

	var out []types.Signal
	if hasText {
		o.logFailure(c, classifier.TextClassifierName, text.err)
		out = append(out, text.result.Signal(classifier.TextClassifierName))
	}
	for i, img := range images {
		o.logFailure(c, classifier.ImageClassifierName, img.err)
		s := img.result.Signal("")
		s.Metadata = nil
		if img.err != nil {
			s.Reasons = types.UnionStrings(s.Reasons, []string{fmt.Sprintf("Image %d could not be analyzed", i+1)})
		}
		out = append(out, s)
	}
	if hasText {
		o.logFailure(c, classifier.QualityClassifierName, quality.err)
		out = append(out, quality.result.Signal(classifier.QualityClassifierName))
	}
	o.logFailure(c, automod.EngineName, rules.err)
	if rules.err != nil {
		out = append(out, rules.result.Signal(automod.EngineName))
	} else {
		out = append(out, ruleOut.Signal)
	}

	if len(images) > 0 {
		details := make([]any, len(images))
		for i, img := range images {
			details[i] = img.detail
		}
		out = append(out, types.Signal{Source: "images", Metadata: map[string]any{"analyses": details}})
	}
	return out
}

func (o *Orchestrator) logFailure(c types.ContentToModerate, name string, err error) {
	if err == nil {
		return
	}
	classifierErrors.WithLabelValues(name).Inc()
	o.log.Warn("classifier failed, using fail-closed result",
		zap.String("classifier", name),
		zap.String("content_id", c.ID),
		zap.String("content_type", string(c.Type)),
		zap.Error(err))
}

// Moderate runs the full pipeline for one piece of content. Only malformed
// input is returned as an error; analyzer and storage failures fail the run
// closed and are reported through the result.
func (o *Orchestrator) Moderate(ctx context.Context, c types.ContentToModerate) (types.ModerationResult, error) {
	if err := validateContent(c); err != nil {
		return types.ModerationResult{}, err
	}
	start := o.now()
	defer func() { moderationDuration.Observe(time.Since(start).Seconds()) }()

	res, err := o.decide(ctx, c)
	if err != nil {
		o.log.Error("moderation failed",
			zap.String("content_id", c.ID),
			zap.String("content_type", string(c.Type)),
			zap.Error(err))
		res = types.FailClosed("moderation_error", "Moderation failed; content held for review")
		moderationRuns.WithLabelValues("error").Inc()
		o.enqueue(ctx, c, res)
		return res, nil
	}

	moderationRuns.WithLabelValues(outcomeLabel(res)).Inc()
	if res.RequiresHumanReview {
		o.enqueue(ctx, c, res)
	}
	o.ExecuteAutoActions(ctx, c, res.AutoActions)
	return res, nil
}

// decide merges the analyzer signals, folds in user risk, applies the final
// decision and persists the result.
func (o *Orchestrator) decide(ctx context.Context, c types.ContentToModerate) (types.ModerationResult, error) {
	res := types.IdentityResult()
	for _, s := range o.signals(ctx, c) {
		res = types.Merge(res, s)
	}

	history, err := o.store.UserHistory(ctx, c.UserID, o.now().Add(-types.USER_HISTORY_WINDOW))
	if err != nil {
		return res, &types.PipelineError{Stage: "user_history", Err: err}
	}
	res = applyUserRisk(res, UserRiskScore(history))
	res = ApplyFinalDecision(res)
	res.Metadata["processedAt"] = o.now().UTC().Format(time.RFC3339)

	if err := o.persist(ctx, c, res); err != nil {
		return res, &types.PipelineError{Stage: "persist", Err: err}
	}
	return res, nil
}

func (o *Orchestrator) persist(ctx context.Context, c types.ContentToModerate, res types.ModerationResult) error {
	meta, err := json.Marshal(res.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	rec := &models.ModerationRecord{
		ID:                  uuid.NewString(),
		ContentID:           c.ID,
		ContentType:         string(c.Type),
		UserID:              c.UserID,
		ContentHash:         automod.ContentHash(c.Content),
		IsApproved:          res.IsApproved,
		Confidence:          res.Confidence,
		Severity:            string(res.Severity),
		Flags:               pq.StringArray(res.Flags),
		Reasons:             pq.StringArray(res.Reasons),
		AutoActions:         pq.StringArray(res.AutoActions),
		RequiresHumanReview: res.RequiresHumanReview,
		Metadata:            string(meta),
		CreatedAt:           o.now(),
	}
	return o.store.SaveResult(ctx, rec)
}

func (o *Orchestrator) enqueue(ctx context.Context, c types.ContentToModerate, res types.ModerationResult) {
	if o.queue == nil {
		return
	}
	_, _, err := o.queue.Enqueue(ctx, queue.EnqueueRequest{
		ContentID:   c.ID,
		ContentType: c.Type,
		UserID:      c.UserID,
		Flags:       res.Flags,
		Reasons:     res.Reasons,
		Severity:    res.Severity,
		Confidence:  res.Confidence,
	})
	if err != nil {
		o.log.Error("queueing content for review",
			zap.String("content_id", c.ID),
			zap.String("content_type", string(c.Type)),
			zap.Error(err))
	}
}

func outcomeLabel(r types.ModerationResult) string {
	switch {
	case r.RequiresHumanReview:
		return "review"
	case r.IsApproved:
		return "approved"
	default:
		return "rejected"
	}
}

// BulkItemResult is one entry of ModerateBulk. Err is set when the item could
// not be moderated at all.
type BulkItemResult struct {
	ContentID   string                  `json:"contentId"`
	ContentType types.ContentType       `json:"contentType"`
	Result      *types.ModerationResult `json:"result,omitempty"`
	Err         string                  `json:"error,omitempty"`
}

// ModerateBulk moderates items in fixed-size batches with a pause between
// batches. Items fail individually; the output is in input order.
func (o *Orchestrator) ModerateBulk(ctx context.Context, items []types.ContentToModerate) []BulkItemResult {
	out := make([]BulkItemResult, len(items))
	for i, c := range items {
		out[i] = BulkItemResult{ContentID: c.ID, ContentType: c.Type}
	}

	size := o.opts.BatchSize
	for start := 0; start < len(items); start += size {
		if start > 0 {
			if err := o.sleep(ctx, o.opts.BatchDelay); err != nil {
				for i := start; i < len(items); i++ {
					out[i].Err = err.Error()
				}
				return out
			}
		}
		end := min(start+size, len(items))

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				res, err := o.Moderate(ctx, items[i])
				if err != nil {
					out[i].Err = err.Error()
					return nil
				}
				out[i].Result = &res
				return nil
			})
		}
		_ = g.Wait()
	}
	return out
}

// StatusView is the latest moderation state of one content item.
type StatusView struct {
	ContentID   string                   `json:"contentId"`
	ContentType types.ContentType        `json:"contentType"`
	Result      *models.ModerationRecord `json:"result,omitempty"`
	QueueItem   *models.QueueItem        `json:"queueItem,omitempty"`
}

func (o *Orchestrator) Status(ctx context.Context, contentID string, ct types.ContentType) (*StatusView, error) {
	if contentID == "" {
		return nil, types.Validationf("contentId is required")
	}
	if !ct.Valid() {
		return nil, types.Validationf("invalid content type %q", ct)
	}
	view := &StatusView{ContentID: contentID, ContentType: ct}

	rec, err := o.store.LatestResult(ctx, contentID, string(ct))
	switch {
	case err == nil:
		view.Result = rec
	case !errors.Is(err, types.ErrNotFound):
		return nil, err
	}
	item, err := o.store.OpenQueueItem(ctx, contentID, string(ct))
	switch {
	case err == nil:
		view.QueueItem = item
	case !errors.Is(err, types.ErrNotFound):
		return nil, err
	}

	if view.Result == nil && view.QueueItem == nil {
		return nil, types.NotFoundf("no moderation state for %s %s", ct, contentID)
	}
	return view, nil
}

type AppealRequest struct {
	ContentID   string            `json:"contentId" binding:"required"`
	ContentType types.ContentType `json:"contentType" binding:"required"`
	UserID      string            `json:"-"`
	Reason      string            `json:"reason" binding:"required"`
}

// Appeal records a user's appeal against the latest decision on their content
// and puts the content back in front of a moderator.
func (o *Orchestrator) Appeal(ctx context.Context, req AppealRequest) (*models.Appeal, *models.QueueItem, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	switch {
	case req.UserID == "":
		return nil, nil, types.Validationf("user is required")
	case req.ContentID == "":
		return nil, nil, types.Validationf("contentId is required")
	case !req.ContentType.Valid():
		return nil, nil, types.Validationf("invalid content type %q", req.ContentType)
	case req.Reason == "":
		return nil, nil, types.Validationf("reason is required")
	}

	rec, err := o.store.LatestResult(ctx, req.ContentID, string(req.ContentType))
	if err != nil {
		return nil, nil, err
	}
	if rec.UserID != req.UserID {
		return nil, nil, fmt.Errorf("only the author can appeal %s %s: %w", req.ContentType, req.ContentID, types.ErrForbidden)
	}

	appeal := &models.Appeal{
		ID:          uuid.NewString(),
		ContentID:   req.ContentID,
		ContentType: string(req.ContentType),
		UserID:      req.UserID,
		Reason:      req.Reason,
		CreatedAt:   o.now(),
	}
	if err := o.store.CreateAppeal(ctx, appeal); err != nil {
		return nil, nil, fmt.Errorf("recording appeal: %w", err)
	}
	o.log.Info("appeal submitted",
		zap.String("content_id", req.ContentID),
		zap.String("content_type", string(req.ContentType)),
		zap.String("user_id", req.UserID))

	if o.queue == nil {
		return appeal, nil, nil
	}
	item, _, err := o.queue.Enqueue(ctx, queue.EnqueueRequest{
		ContentID:   req.ContentID,
		ContentType: req.ContentType,
		UserID:      req.UserID,
		Priority:    types.PriorityMedium,
		Severity:    types.Severity(rec.Severity),
		Confidence:  rec.Confidence,
		Flags:       []string{"appeal"},
		Reasons:     []string{"User appeal: " + req.Reason},
	})
	if err != nil {
		return appeal, nil, fmt.Errorf("queueing appeal: %w", err)
	}
	return appeal, item, nil
}

type Statistics struct {
	Last24Hours store.ResultStats `json:"last24Hours"`
	Last7Days   store.ResultStats `json:"last7Days"`
	Queue       map[string]int64  `json:"queue"`
	Reports     map[string]int64  `json:"reports"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

func (o *Orchestrator) Statistics(ctx context.Context) (*Statistics, error) {
	now := o.now()
	stats := &Statistics{GeneratedAt: now}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Last24Hours, err = o.store.ResultStats(ctx, now.Add(-24*time.Hour))
		return err
	})
	g.Go(func() (err error) {
		stats.Last7Days, err = o.store.ResultStats(ctx, now.Add(-7*24*time.Hour))
		return err
	})
	g.Go(func() (err error) {
		stats.Queue, err = o.store.QueueCounts(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Reports, err = o.store.ReportCounts(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collecting statistics: %w", err)
	}
	return stats, nil
}
