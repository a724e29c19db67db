package automod

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/types"
	"go.uber.org/zap"
)

// Registry pairs an immutable rule catalog with a mutable active/inactive
// status map. Rules are never removed at runtime, only deactivated.
type Registry struct {
	catalog []Rule
	index   map[string]int

	mu     sync.RWMutex
	active map[string]bool

	// serializes toggles so persisted state and memory agree
	toggleMu sync.Mutex
	states   store.RuleStateStore
	log      *zap.Logger
}

// NewRegistry builds a registry with every rule active. states may be nil, in
// which case toggles are kept in memory only.
func NewRegistry(rules []Rule, states store.RuleStateStore, log *zap.Logger) (*Registry, error) {
	r := &Registry{
		catalog: make([]Rule, len(rules)),
		index:   make(map[string]int, len(rules)),
		active:  make(map[string]bool, len(rules)),
		states:  states,
		log:     log.Named("rules"),
	}
	copy(r.catalog, rules)
	for i, rule := range r.catalog {
		if _, dup := r.index[rule.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %q", rule.ID)
		}
		if rule.Condition == nil {
			return nil, fmt.Errorf("rule %q has no condition", rule.ID)
		}
		r.index[rule.ID] = i
		r.active[rule.ID] = true
	}
	return r, nil
}

// Load applies persisted toggles. States for unknown rules are ignored.
func (r *Registry) Load(ctx context.Context) error {
	if r.states == nil {
		return nil
	}
	states, err := r.states.LoadRuleStates(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range states {
		if _, ok := r.index[st.RuleID]; !ok {
			r.log.Warn("ignoring state for unknown rule", zap.String("rule_id", st.RuleID))
			continue
		}
		r.active[st.RuleID] = st.IsActive
	}
	return nil
}

// Snapshot returns the rules active at the time of the call. Callers evaluate
// one pass against a single snapshot.
func (r *Registry) Snapshot() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.catalog))
	for _, rule := range r.catalog {
		if r.active[rule.ID] {
			out = append(out, rule)
		}
	}
	return out
}

func (r *Registry) List() []RuleView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RuleView, len(r.catalog))
	for i, rule := range r.catalog {
		out[i] = rule.View(r.active[rule.ID])
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.catalog)
}

// SetActive toggles a rule. Unknown ids yield types.ErrNotFound.
func (r *Registry) SetActive(ctx context.Context, ruleID string, active bool, actorID string) (RuleView, error) {
	i, ok := r.index[ruleID]
	if !ok {
		return RuleView{}, types.NotFoundf("rule %s", ruleID)
	}

	r.toggleMu.Lock()
	defer r.toggleMu.Unlock()

	if r.states != nil {
		err := r.states.SaveRuleState(ctx, &models.RuleState{
			RuleID:    ruleID,
			IsActive:  active,
			UpdatedBy: actorID,
			UpdatedAt: time.Now(),
		})
		if err != nil {
			return RuleView{}, fmt.Errorf("persisting rule state: %w", err)
		}
	}

	r.mu.Lock()
	r.active[ruleID] = active
	r.mu.Unlock()

	r.log.Info("rule toggled",
		zap.String("rule_id", ruleID),
		zap.Bool("active", active),
		zap.String("actor_id", actorID))
	return r.catalog[i].View(active), nil
}
