package rules

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"call-intel-go/internal/types"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type labeledTerms struct {
	Label string   `yaml:"label"`
	Terms []string `yaml:"terms"`
}

type mappingFile struct {
	Rules    []labeledTerms `yaml:"rules"`
	Defaults []string       `yaml:"defaults"`
}

type signalFile struct {
	Name              string            `yaml:"name"`
	Type              types.InsightType `yaml:"type"`
	Category          string            `yaml:"category"`
	Confidence        float64           `yaml:"confidence"`
	Patterns          []string          `yaml:"patterns"`
	SuggestedResponse string            `yaml:"suggested_response"`
}

type weightedTerm struct {
	Term   string      `yaml:"term"`
	Impact types.Level `yaml:"impact"`
}

type catalogFile struct {
	Roles struct {
		Rep      []string `yaml:"rep"`
		Prospect []string `yaml:"prospect"`
	} `yaml:"roles"`
	Sentiment struct {
		Positive []string `yaml:"positive"`
		Negative []string `yaml:"negative"`
	} `yaml:"sentiment"`
	Emotions []struct {
		Emotion string   `yaml:"emotion"`
		Terms   []string `yaml:"terms"`
		Marks   []string `yaml:"marks"`
	} `yaml:"emotions"`
	KeyPhrases struct {
		MinLength int      `yaml:"min_length"`
		Max       int      `yaml:"max"`
		Stopwords []string `yaml:"stopwords"`
	} `yaml:"key_phrases"`
	Signals         []signalFile   `yaml:"signals"`
	ImpactDefault   int            `yaml:"impact_default"`
	Impact          map[string]int `yaml:"impact"`
	HandlingPhrases []string       `yaml:"handling_phrases"`
	Competitors     struct {
		Confidence float64 `yaml:"confidence"`
		Names      []struct {
			Name    string   `yaml:"name"`
			Aliases []string `yaml:"aliases"`
		} `yaml:"names"`
		Positive    []string `yaml:"positive"`
		Negative    []string `yaml:"negative"`
		Features    []string `yaml:"features"`
		PriceTerms  []string `yaml:"price_terms"`
		SwitchTerms []string `yaml:"switch_terms"`
	} `yaml:"competitors"`
	Profile struct {
		Personality        []labeledTerms `yaml:"personality"`
		DecisionStyle      RuleSet        `yaml:"decision_style"`
		CommunicationStyle RuleSet        `yaml:"communication_style"`
		Risk               struct {
			Averse []string `yaml:"averse"`
			Taking []string `yaml:"taking"`
		} `yaml:"risk"`
		Price struct {
			Price     []string `yaml:"price"`
			Value     []string `yaml:"value"`
			HighRatio float64  `yaml:"high_ratio"`
		} `yaml:"price"`
		TrustFactors mappingFile                `yaml:"trust_factors"`
		Motivations  mappingFile                `yaml:"motivations"`
		Concerns     mappingFile                `yaml:"concerns"`
		Default      types.PsychologicalProfile `yaml:"default"`
	} `yaml:"profile"`
	Questions struct {
		Leading []string `yaml:"leading"`
		Open    []string `yaml:"open"`
	} `yaml:"questions"`
	Control struct {
		ToRep      []weightedTerm `yaml:"to_rep"`
		ToProspect []weightedTerm `yaml:"to_prospect"`
	} `yaml:"control"`
	Influence map[string][]string `yaml:"influence"`
	Stages    RuleSet             `yaml:"stages"`
	Quality   []struct {
		Key        string   `yaml:"key"`
		Area       string   `yaml:"area"`
		Indicators []string `yaml:"indicators"`
	} `yaml:"quality"`
}

// Catalog is the compiled rule vocabulary shared by all analysis stages.
// It is read-only after construction and safe for concurrent use.
type Catalog struct {
	RepRoles      *Terms
	ProspectRoles *Terms

	Positive   *Terms
	Negative   *Terms
	Emotions   []EmotionCue
	KeyPhrases KeyPhraseRules

	Signals         []Signal
	impact          map[string]int
	impactDefault   int
	HandlingPhrases *Terms
	Competitors     CompetitorRules

	Profile   ProfileRules
	Questions QuestionRules
	Control   ControlRules
	Influence InfluenceRules
	Stages    *RuleBased
	Quality   []QualityArea
}

type EmotionCue struct {
	Emotion string
	Terms   *Terms
	Marks   []string
}

type KeyPhraseRules struct {
	MinLength int
	Max       int
	Stopwords map[string]bool
}

// Signal is one extraction rule. Patterns are alternatives.
type Signal struct {
	Name              string
	Type              types.InsightType
	Category          string
	Confidence        float64
	Patterns          []Pattern
	SuggestedResponse string
}

// Match returns the first matching pattern's text.
func (s Signal) Match(text string) (string, bool) {
	for _, p := range s.Patterns {
		if m := p.Find(text); m != "" {
			return m, true
		}
	}
	return "", false
}

type Competitor struct {
	Name    string
	Aliases *Terms
}

type CompetitorRules struct {
	Confidence float64
	Names      []Competitor
	Positive   *Terms
	Negative   *Terms
	Features   *Terms
	Price      *Terms
	Switch     *Terms
}

type LabeledTerms struct {
	Label string
	Terms *Terms
}

// Mapping turns keyword hits into labels, substituting Defaults on zero hits.
type Mapping struct {
	Rules    []LabeledTerms
	Defaults []string
}

func (m Mapping) Labels(text string) []string {
	var out []string
	for _, r := range m.Rules {
		if r.Terms.Any(text) {
			out = append(out, r.Label)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), m.Defaults...)
	}
	return out
}

type ProfileRules struct {
	Personality        []LabeledTerms
	DecisionStyle      *RuleBased
	CommunicationStyle *RuleBased
	RiskAverse         *Terms
	RiskTaking         *Terms
	PriceTerms         *Terms
	ValueTerms         *Terms
	PriceHighRatio     float64
	TrustFactors       Mapping
	Motivations        Mapping
	Concerns           Mapping
	Default            types.PsychologicalProfile
}

type QuestionRules struct {
	Leading *Terms
	Open    *Terms
}

type WeightedTerm struct {
	Term   string
	Impact types.Level
	Terms  *Terms
}

type ControlRules struct {
	ToRep      []WeightedTerm
	ToProspect []WeightedTerm
}

type InfluenceRules struct {
	Reciprocity *Terms
	Commitment  *Terms
	SocialProof *Terms
	Authority   *Terms
	Liking      *Terms
	Scarcity    *Terms
}

type QualityArea struct {
	Key        string
	Area       string
	Indicators []Pattern
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog override from path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rule catalog: %w", err)
	}
	c, err := compile(f)
	if err != nil {
		return nil, fmt.Errorf("compile rule catalog: %w", err)
	}
	return c, nil
}

// Impact looks up "type:category", then "type", then the default.
func (c *Catalog) Impact(t types.InsightType, category string) int {
	if v, ok := c.impact[string(t)+":"+category]; ok {
		return v
	}
	if v, ok := c.impact[string(t)]; ok {
		return v
	}
	return c.impactDefault
}

// termCompiler collects the first error so compile stays readable.
type termCompiler struct{ err error }

func (tc *termCompiler) terms(list []string) *Terms {
	t, err := NewTerms(list...)
	if err != nil && tc.err == nil {
		tc.err = err
	}
	return t
}

func (tc *termCompiler) mapping(m mappingFile) Mapping {
	out := Mapping{Defaults: m.Defaults}
	for _, r := range m.Rules {
		out.Rules = append(out.Rules, LabeledTerms{Label: r.Label, Terms: tc.terms(r.Terms)})
	}
	return out
}

func (tc *termCompiler) weighted(list []weightedTerm) []WeightedTerm {
	out := make([]WeightedTerm, 0, len(list))
	for _, w := range list {
		out = append(out, WeightedTerm{Term: w.Term, Impact: w.Impact, Terms: tc.terms([]string{w.Term})})
	}
	return out
}

func compile(f catalogFile) (*Catalog, error) {
	tc := &termCompiler{}
	c := &Catalog{
		RepRoles:        tc.terms(f.Roles.Rep),
		ProspectRoles:   tc.terms(f.Roles.Prospect),
		Positive:        tc.terms(f.Sentiment.Positive),
		Negative:        tc.terms(f.Sentiment.Negative),
		impact:          f.Impact,
		impactDefault:   f.ImpactDefault,
		HandlingPhrases: tc.terms(f.HandlingPhrases),
	}

	for _, e := range f.Emotions {
		c.Emotions = append(c.Emotions, EmotionCue{Emotion: e.Emotion, Terms: tc.terms(e.Terms), Marks: e.Marks})
	}

	c.KeyPhrases = KeyPhraseRules{MinLength: f.KeyPhrases.MinLength, Max: f.KeyPhrases.Max, Stopwords: map[string]bool{}}
	for _, w := range f.KeyPhrases.Stopwords {
		c.KeyPhrases.Stopwords[w] = true
	}
	if c.KeyPhrases.Max <= 0 {
		c.KeyPhrases.Max = 5
	}

	seen := map[string]bool{}
	for _, s := range f.Signals {
		if s.Name == "" || seen[s.Name] {
			return nil, fmt.Errorf("signal rule name %q missing or duplicated", s.Name)
		}
		seen[s.Name] = true
		if s.Confidence < 0 || s.Confidence > 1 {
			return nil, fmt.Errorf("signal %q: confidence %.2f outside [0,1]", s.Name, s.Confidence)
		}
		pats, err := compilePatterns(s.Patterns)
		if err != nil {
			return nil, fmt.Errorf("signal %q: %w", s.Name, err)
		}
		if len(pats) == 0 {
			return nil, fmt.Errorf("signal %q: no patterns", s.Name)
		}
		c.Signals = append(c.Signals, Signal{
			Name:              s.Name,
			Type:              s.Type,
			Category:          s.Category,
			Confidence:        s.Confidence,
			Patterns:          pats,
			SuggestedResponse: s.SuggestedResponse,
		})
	}

	comp := f.Competitors
	for _, n := range comp.Names {
		aliases := n.Aliases
		if len(aliases) == 0 {
			aliases = []string{n.Name}
		}
		c.Competitors.Names = append(c.Competitors.Names, Competitor{Name: n.Name, Aliases: tc.terms(aliases)})
	}
	c.Competitors.Confidence = comp.Confidence
	if c.Competitors.Confidence <= 0 || c.Competitors.Confidence > 1 {
		c.Competitors.Confidence = 0.8
	}
	c.Competitors.Positive = tc.terms(comp.Positive)
	c.Competitors.Negative = tc.terms(comp.Negative)
	c.Competitors.Features = tc.terms(comp.Features)
	c.Competitors.Price = tc.terms(comp.PriceTerms)
	c.Competitors.Switch = tc.terms(comp.SwitchTerms)

	p := f.Profile
	for _, b := range p.Personality {
		c.Profile.Personality = append(c.Profile.Personality, LabeledTerms{Label: b.Label, Terms: tc.terms(b.Terms)})
	}
	c.Profile.RiskAverse = tc.terms(p.Risk.Averse)
	c.Profile.RiskTaking = tc.terms(p.Risk.Taking)
	c.Profile.PriceTerms = tc.terms(p.Price.Price)
	c.Profile.ValueTerms = tc.terms(p.Price.Value)
	c.Profile.PriceHighRatio = p.Price.HighRatio
	if c.Profile.PriceHighRatio <= 0 {
		c.Profile.PriceHighRatio = 2
	}
	c.Profile.TrustFactors = tc.mapping(p.TrustFactors)
	c.Profile.Motivations = tc.mapping(p.Motivations)
	c.Profile.Concerns = tc.mapping(p.Concerns)
	c.Profile.Default = p.Default

	c.Questions = QuestionRules{Leading: tc.terms(f.Questions.Leading), Open: tc.terms(f.Questions.Open)}
	c.Control = ControlRules{ToRep: tc.weighted(f.Control.ToRep), ToProspect: tc.weighted(f.Control.ToProspect)}

	c.Influence = InfluenceRules{
		Reciprocity: tc.terms(f.Influence["reciprocity"]),
		Commitment:  tc.terms(f.Influence["commitment"]),
		SocialProof: tc.terms(f.Influence["social_proof"]),
		Authority:   tc.terms(f.Influence["authority"]),
		Liking:      tc.terms(f.Influence["liking"]),
		Scarcity:    tc.terms(f.Influence["scarcity"]),
	}

	for _, q := range f.Quality {
		pats, err := compilePatterns(q.Indicators)
		if err != nil {
			return nil, fmt.Errorf("quality %q: %w", q.Key, err)
		}
		c.Quality = append(c.Quality, QualityArea{Key: q.Key, Area: q.Area, Indicators: pats})
	}

	if tc.err != nil {
		return nil, tc.err
	}

	var err error
	if c.Stages, err = NewRuleBased(f.Stages); err != nil {
		return nil, fmt.Errorf("stages: %w", err)
	}
	if c.Profile.DecisionStyle, err = NewRuleBased(p.DecisionStyle); err != nil {
		return nil, fmt.Errorf("decision style: %w", err)
	}
	if c.Profile.CommunicationStyle, err = NewRuleBased(p.CommunicationStyle); err != nil {
		return nil, fmt.Errorf("communication style: %w", err)
	}

	if err := validateProfileDefault(c.Profile); err != nil {
		return nil, err
	}
	return c, nil
}

func validateProfileDefault(p ProfileRules) error {
	d := p.Default
	if d.PersonalityType == "" || d.DecisionMakingStyle == "" || d.CommunicationStyle == "" ||
		d.RiskTolerance == "" || d.PriceSensitivity == "" {
		return fmt.Errorf("profile default is incomplete")
	}
	if len(d.TrustFactors) == 0 || len(d.MotivationalTriggers) == 0 || len(d.Concerns) == 0 {
		return fmt.Errorf("profile default lists must not be empty")
	}
	for name, m := range map[string]Mapping{"trust_factors": p.TrustFactors, "motivations": p.Motivations, "concerns": p.Concerns} {
		if len(m.Defaults) == 0 {
			return fmt.Errorf("profile %s needs defaults", name)
		}
	}
	if len(p.Personality) == 0 {
		return fmt.Errorf("profile personality buckets missing")
	}
	return nil
}
