package rules

import (
	"context"
	"fmt"
	"slices"
)

// TextClassifier assigns one label to a piece of text.
type TextClassifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Predicate matches when any Any term is present (if set) and every All
// group has at least one term present. An empty predicate never matches.
type Predicate struct {
	Any []string   `yaml:"any"`
	All [][]string `yaml:"all"`
}

type Rule struct {
	Label string    `yaml:"label"`
	When  Predicate `yaml:"when"`
}

// RuleSet is an ordered first-match-wins rule list with a fallback label.
type RuleSet struct {
	Default string `yaml:"default"`
	Rules   []Rule `yaml:"rules"`
}

type matcher struct {
	any *Terms
	all []*Terms
}

func compilePredicate(p Predicate) (matcher, error) {
	var m matcher
	if len(p.Any) > 0 {
		t, err := NewTerms(p.Any...)
		if err != nil {
			return m, err
		}
		m.any = t
	}
	for _, group := range p.All {
		t, err := NewTerms(group...)
		if err != nil {
			return m, err
		}
		m.all = append(m.all, t)
	}
	return m, nil
}

func (m matcher) match(text string) bool {
	if m.any == nil && len(m.all) == 0 {
		return false
	}
	if m.any != nil && !m.any.Any(text) {
		return false
	}
	for _, g := range m.all {
		if !g.Any(text) {
			return false
		}
	}
	return true
}

// RuleBased evaluates its rules in order and returns the first matching label.
type RuleBased struct {
	labels   []string
	matchers []matcher
	def      string
}

func NewRuleBased(set RuleSet) (*RuleBased, error) {
	if set.Default == "" {
		return nil, fmt.Errorf("rule set needs a default label")
	}
	rb := &RuleBased{def: set.Default}
	for i, r := range set.Rules {
		if r.Label == "" {
			return nil, fmt.Errorf("rule %d: empty label", i)
		}
		m, err := compilePredicate(r.When)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Label, err)
		}
		if m.any == nil && len(m.all) == 0 {
			return nil, fmt.Errorf("rule %q: empty predicate", r.Label)
		}
		rb.labels = append(rb.labels, r.Label)
		rb.matchers = append(rb.matchers, m)
	}
	return rb, nil
}

func (c *RuleBased) Classify(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for i, m := range c.matchers {
		if m.match(text) {
			return c.labels[i], nil
		}
	}
	return c.def, nil
}

// Labels lists every label the classifier can return, default last.
func (c *RuleBased) Labels() []string {
	out := slices.Clone(c.labels)
	if !slices.Contains(out, c.def) {
		out = append(out, c.def)
	}
	return out
}

// Prediction is the output of a learned model.
type Prediction struct {
	Label      string
	Confidence float64
}

type Predictor interface {
	Predict(ctx context.Context, text string) (Prediction, error)
}

// ModelBacked defers to a Predictor and falls back when the model errors,
// is unsure, or returns a label outside Labels.
type ModelBacked struct {
	Predictor     Predictor
	Labels        []string
	MinConfidence float64
	Fallback      TextClassifier
}

func (c *ModelBacked) Classify(ctx context.Context, text string) (string, error) {
	p, err := c.Predictor.Predict(ctx, text)
	if err == nil && p.Confidence >= c.MinConfidence && slices.Contains(c.Labels, p.Label) {
		return p.Label, nil
	}
	if c.Fallback == nil {
		if err != nil {
			return "", fmt.Errorf("predict: %w", err)
		}
		return "", fmt.Errorf("prediction %q (%.2f) rejected and no fallback configured", p.Label, p.Confidence)
	}
	return c.Fallback.Classify(ctx, text)
}
