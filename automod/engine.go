package automod

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/snap-point/moderation-api/classifier"
	"github.com/snap-point/moderation-api/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
)

const EngineName = "rules"

type engineStore interface {
	CountDuplicates(ctx context.Context, contentHash, excludeUserID string, since time.Time) (int, error)
	CountContentReports(ctx context.Context, contentID, contentType string, since time.Time) (int, error)
}

// EvalContext is what every rule in one pass is evaluated against.
type EvalContext struct {
	Content     types.ContentToModerate
	Behavior    types.UserBehaviorMetrics
	ContentHash string
	Now         time.Time
}

// Outcome is the result of one ApplyRules pass.
type Outcome struct {
	Signal    types.Signal
	Triggered []Rule
	Behavior  types.UserBehaviorMetrics
	Failed    []string
}

type Engine struct {
	registry *Registry
	behavior BehaviorSource
	store    engineStore
	log      *zap.Logger
	now      func() time.Time
}

func NewEngine(registry *Registry, behavior BehaviorSource, s engineStore, log *zap.Logger) *Engine {
	return &Engine{
		registry: registry,
		behavior: behavior,
		store:    s,
		log:      log.Named("automod"),
		now:      time.Now,
	}
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

// ContentHash fingerprints text after normalization so trivial edits in case,
// accents and whitespace still match. Blank text has no hash.
func ContentHash(text string) string {
	norm := strings.Join(strings.Fields(classifier.NormalizeText(text)), " ")
	if norm == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// RulesFallback is used when the behavior snapshot cannot be computed.
func RulesFallback() types.ModerationResult {
	return types.FailClosed("rule_engine_error", "Rule evaluation failed; content held for review")
}

// ApplyRules evaluates every active rule against content concurrently. A
// failing rule is logged and treated as not triggered. An error is returned
// only when the behavior snapshot cannot be built.
func (e *Engine) ApplyRules(ctx context.Context, content types.ContentToModerate) (Outcome, error) {
	rules := e.registry.Snapshot()

	behavior, err := e.behavior.Compute(ctx, content.UserID)
	if err != nil {
		ruleErrorCount.WithLabelValues("_behavior").Inc()
		return Outcome{}, &types.ClassifierError{Classifier: EngineName, Err: err}
	}

	ec := EvalContext{
		Content:     content,
		Behavior:    behavior,
		ContentHash: ContentHash(content.Content),
		Now:         e.now(),
	}

	hits := make([]bool, len(rules))
	errs := make([]error, len(rules))
	var g errgroup.Group
	for i, rule := range rules {
		i, rule := i, rule
		g.Go(func() error {
			hits[i], errs[i] = e.evaluateSafe(ctx, rule, ec)
			return nil
		})
	}
	_ = g.Wait()

	out := Outcome{Behavior: behavior}
	for i, rule := range rules {
		if errs[i] != nil {
			ruleErrorCount.WithLabelValues(rule.ID).Inc()
			e.log.Warn("rule evaluation failed",
				zap.String("rule_id", rule.ID),
				zap.String("content_id", content.ID),
				zap.Error(errs[i]))
			out.Failed = append(out.Failed, rule.ID)
			continue
		}
		if hits[i] {
			ruleTriggerCount.WithLabelValues(rule.ID).Inc()
			out.Triggered = append(out.Triggered, rule)
		}
	}
	out.Signal = buildSignal(out.Triggered, behavior)
	return out, nil
}

// buildSignal turns triggered rules into a partial opinion. The rule engine
// never states a confidence, and only blocking actions veto approval.
func buildSignal(triggered []Rule, behavior types.UserBehaviorMetrics) types.Signal {
	s := types.Signal{
		Source:   EngineName,
		Severity: types.SeverityLow,
		Metadata: map[string]any{
			"suspiciousActivity": behavior.SuspiciousActivity,
		},
	}
	var flags, reasons, actions, ids []string
	blocking := false
	for _, r := range triggered {
		flags = append(flags, r.ID)
		reasons = append(reasons, "Rule triggered: "+r.Name)
		actions = append(actions, r.Action)
		ids = append(ids, r.ID)
		s.Severity = types.MaxSeverity(s.Severity, r.Severity)
		if r.Action == types.ActionRequireReview || r.Severity.AtLeast(types.SeverityHigh) {
			s.RequiresHumanReview = true
		}
		blocking = blocking || r.Blocking()
	}
	if blocking {
		no := false
		s.Approved = &no
	}
	s.Flags = types.UnionStrings(flags)
	s.Reasons = types.UnionStrings(reasons)
	s.AutoActions = types.UnionStrings(actions)
	s.Metadata["triggeredRules"] = types.UnionStrings(ids)
	return s
}

func (e *Engine) evaluateSafe(ctx context.Context, rule Rule, ec EvalContext) (hit bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			hit, err = false, &types.RuleEvaluationError{RuleID: rule.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	hit, err = e.evaluate(ctx, rule.Condition, ec)
	if err != nil {
		return false, &types.RuleEvaluationError{RuleID: rule.ID, Err: err}
	}
	return hit, nil
}

func (e *Engine) evaluate(ctx context.Context, cond Condition, ec EvalContext) (bool, error) {
	switch c := cond.(type) {
	case ContainsSpamPatterns:
		return classifier.SpamScore(ec.Content.Content) >= 2, nil
	case PostsPerHourAbove:
		return ec.Behavior.PostsLastHour > c.Limit, nil
	case NewAccountBurst:
		return ec.Behavior.AccountAge < c.MaxAge && ec.Behavior.PostsLastDay > c.MinPosts, nil
	case ReportsAtLeast:
		n, err := e.store.CountContentReports(ctx, ec.Content.ID, string(ec.Content.Type), ec.Now.Add(-c.Window))
		if err != nil {
			return false, err
		}
		return n >= c.Count, nil
	case ContainsSuspiciousLinks:
		return len(SuspiciousLinks(ec.Content.Content)) > 0, nil
	case DuplicateContent:
		if ec.ContentHash == "" {
			return false, nil
		}
		n, err := e.store.CountDuplicates(ctx, ec.ContentHash, ec.Content.UserID, ec.Now.Add(-c.Window))
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
	return false, fmt.Errorf("unhandled condition %T", cond)
}
