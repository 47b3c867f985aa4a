package profile

import (
	"context"
	"fmt"
	"strings"

	"call-intel-go/internal/rules"
	"call-intel-go/internal/types"
)

// Profiler derives a psychological profile from what the prospect said.
type Profiler struct {
	rules         rules.ProfileRules
	decision      rules.TextClassifier
	communication rules.TextClassifier
}

type Option func(*Profiler)

// WithDecisionClassifier replaces the catalog's decision-style rules.
func WithDecisionClassifier(c rules.TextClassifier) Option {
	return func(p *Profiler) { p.decision = c }
}

// WithCommunicationClassifier replaces the catalog's communication-style rules.
func WithCommunicationClassifier(c rules.TextClassifier) Option {
	return func(p *Profiler) { p.communication = c }
}

func New(c *rules.Catalog, opts ...Option) *Profiler {
	p := &Profiler{
		rules:         c.Profile,
		decision:      c.Profile.DecisionStyle,
		communication: c.Profile.CommunicationStyle,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Default returns a copy of the profile used when the prospect never spoke.
func (p *Profiler) Default() types.PsychologicalProfile {
	d := p.rules.Default
	d.TrustFactors = append([]string(nil), d.TrustFactors...)
	d.MotivationalTriggers = append([]string(nil), d.MotivationalTriggers...)
	d.Concerns = append([]string(nil), d.Concerns...)
	return d
}

func (p *Profiler) Profile(ctx context.Context, segs []types.TranscriptSegment) (types.PsychologicalProfile, error) {
	var parts []string
	for _, s := range segs {
		if s.Role == types.RoleProspect {
			parts = append(parts, s.Text)
		}
	}
	if len(parts) == 0 {
		return p.Default(), nil
	}
	text := strings.Join(parts, " ")

	decision, err := p.decision.Classify(ctx, text)
	if err != nil {
		return types.PsychologicalProfile{}, fmt.Errorf("decision style: %w", err)
	}
	communication, err := p.communication.Classify(ctx, text)
	if err != nil {
		return types.PsychologicalProfile{}, fmt.Errorf("communication style: %w", err)
	}

	return types.PsychologicalProfile{
		PersonalityType:      p.personality(text),
		DecisionMakingStyle:  decision,
		CommunicationStyle:   communication,
		RiskTolerance:        p.risk(text),
		PriceSensitivity:     p.price(text),
		TrustFactors:         p.rules.TrustFactors.Labels(text),
		MotivationalTriggers: p.rules.Motivations.Labels(text),
		Concerns:             p.rules.Concerns.Labels(text),
	}, nil
}

// personality picks the bucket with most hits. Ties go to the earlier bucket.
func (p *Profiler) personality(text string) types.PersonalityType {
	best, bestCount := 0, -1
	for i, b := range p.rules.Personality {
		if n := b.Terms.Count(text); n > bestCount {
			best, bestCount = i, n
		}
	}
	return types.PersonalityType(p.rules.Personality[best].Label)
}

func (p *Profiler) risk(text string) types.Level {
	averse, taking := p.rules.RiskAverse.Count(text), p.rules.RiskTaking.Count(text)
	switch {
	case averse > taking:
		return types.LevelLow
	case taking > averse:
		return types.LevelHigh
	default:
		return types.LevelMedium
	}
}

func (p *Profiler) price(text string) types.Level {
	price, value := p.rules.PriceTerms.Count(text), p.rules.ValueTerms.Count(text)
	switch {
	case float64(price) > p.rules.PriceHighRatio*float64(value):
		return types.LevelHigh
	case value > price:
		return types.LevelLow
	default:
		return types.LevelMedium
	}
}
