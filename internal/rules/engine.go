package rules

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownRule is returned when a rule ID is not registered.
var ErrUnknownRule = errors.New("rules: unknown rule")

// RuleInfo describes a registered rule.
type RuleInfo struct {
	ID           string   `json:"id"`
	Kind         Kind     `json:"kind"`
	Category     Category `json:"category"`
	Enabled      bool     `json:"enabled"`
	CooldownDays int      `json:"cooldown_days"`
}

// Stats counts registered and enabled rules.
type Stats struct {
	TotalRules  int `json:"total_rules"`
	ActiveRules int `json:"active_rules"`
}

// RuleError records a rule that could not be evaluated for a cultivation.
type RuleError struct {
	RuleID        string
	CultivationID string
	Err           error
}

func (e RuleError) Error() string {
	return fmt.Sprintf("rule %s on cultivation %s: %v", e.RuleID, e.CultivationID, e.Err)
}

func (e RuleError) Unwrap() error { return e.Err }

type entry struct {
	rule    Rule
	enabled bool
}

// Engine holds the rule registry and evaluates rules against cultivations.
// It is safe for concurrent use.
type Engine struct {
	mu    sync.RWMutex
	order []string
	rules map[string]*entry
}

// NewEngine returns an Engine with rules registered and enabled.
func NewEngine(rules ...Rule) (*Engine, error) {
	e := &Engine{rules: make(map[string]*entry, len(rules))}
	for _, r := range rules {
		if err := e.Register(r, true); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Register adds r to the registry. Rule IDs must be unique.
func (e *Engine) Register(r Rule, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, dup := e.rules[r.ID()]; dup {
		return fmt.Errorf("rules: duplicate rule id %q", r.ID())
	}
	e.rules[r.ID()] = &entry{rule: r, enabled: enabled}
	e.order = append(e.order, r.ID())
	return nil
}

// SetEnabled toggles a rule.
func (e *Engine) SetEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	en, ok := e.rules[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRule, id)
	}
	en.enabled = enabled
	return nil
}

// Rules lists the registry in registration order.
func (e *Engine) Rules() []RuleInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]RuleInfo, 0, len(e.order))
	for _, id := range e.order {
		en := e.rules[id]
		out = append(out, RuleInfo{
			ID:           id,
			Kind:         en.rule.Kind(),
			Category:     en.rule.Category(),
			Enabled:      en.enabled,
			CooldownDays: en.rule.CooldownDays(),
		})
	}
	return out
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Stats{TotalRules: len(e.rules)}
	for _, en := range e.rules {
		if en.enabled {
			s.ActiveRules++
		}
	}
	return s
}

// Windows maps every rule ID to its cooldown in days.
func (e *Engine) Windows() map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	w := make(map[string]int, len(e.rules))
	for id, en := range e.rules {
		w[id] = en.rule.CooldownDays()
	}
	return w
}

// Active returns the enabled rules in the given categories, or every enabled
// rule when no category is given.
func (e *Engine) Active(categories ...Category) []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Rule
	for _, id := range e.order {
		en := e.rules[id]
		if !en.enabled {
			continue
		}
		if len(categories) > 0 && !slices.Contains(categories, en.rule.Category()) {
			continue
		}
		out = append(out, en.rule)
	}
	return out
}

// Evaluate runs the enabled rules of the given categories against one
// cultivation and returns one draft per eligible rule. Rules that fail or
// panic are reported in the second return value and skipped.
func (e *Engine) Evaluate(in Input, categories ...Category) ([]Draft, []RuleError) {
	var (
		drafts []Draft
		errs   []RuleError
	)
	for _, r := range e.Active(categories...) {
		d, ok, err := evaluate(r, in)
		if err != nil {
			errs = append(errs, RuleError{RuleID: r.ID(), CultivationID: in.Cultivation.ID, Err: err})
			continue
		}
		if ok {
			drafts = append(drafts, d)
		}
	}
	return drafts, errs
}

func evaluate(r Rule, in Input) (d Draft, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			d, ok, err = Draft{}, false, fmt.Errorf("panic: %v", p)
		}
	}()

	ok, err = r.Eligible(in)
	if err != nil || !ok {
		return Draft{}, false, err
	}
	return r.Build(in), true, nil
}
