package quality

import (
	"fmt"
	"math"
	"strings"

	"call-intel-go/internal/config"
	"call-intel-go/internal/rules"
	"call-intel-go/internal/types"
)

const objectionHandlingArea = "Objection Handling"

// Scorer grades the rep's side of the call against the catalog's indicator phrases.
type Scorer struct {
	areas       map[string]rules.QualityArea
	strength    float64
	improvement float64
}

func New(c *rules.Catalog, cfg config.Analysis) *Scorer {
	areas := make(map[string]rules.QualityArea, len(c.Quality))
	for _, a := range c.Quality {
		areas[a.Key] = a
	}
	return &Scorer{areas: areas, strength: cfg.StrengthThreshold, improvement: cfg.ImprovementThreshold}
}

func (s *Scorer) Score(segs []types.TranscriptSegment, sales types.SalesInsights) types.QualityScore {
	var parts []string
	for _, seg := range segs {
		if seg.Role == types.RoleRep {
			parts = append(parts, seg.Text)
		}
	}
	text := strings.Join(parts, "\n")

	q := types.QualityScore{
		Rapport:           s.indicatorScore("rapport", text),
		Discovery:         s.indicatorScore("discovery", text),
		Presentation:      s.indicatorScore("presentation", text),
		ObjectionHandling: ObjectionHandling(sales.Objections),
		Closing:           s.indicatorScore("closing", text),
		Strengths:         []string{},
		ImprovementAreas:  []string{},
	}
	q.Overall = round1((q.Rapport + q.Discovery + q.Presentation + q.ObjectionHandling + q.Closing) / 5)

	for _, a := range s.named(q) {
		switch {
		case a.score >= s.strength:
			q.Strengths = append(q.Strengths, fmt.Sprintf("Strong %s (%.0f%%)", a.name, a.score))
		case a.score < s.improvement:
			q.ImprovementAreas = append(q.ImprovementAreas, fmt.Sprintf("Improve %s (currently %.0f%%)", a.name, a.score))
		}
	}
	return q
}

// ObjectionHandling is the handled share of objections. No objections scores 100.
func ObjectionHandling(objections []types.Insight) float64 {
	if len(objections) == 0 {
		return 100
	}
	handled := 0
	for _, o := range objections {
		if !o.Unhandled() {
			handled++
		}
	}
	return round1(float64(handled) / float64(len(objections)) * 100)
}

func (s *Scorer) indicatorScore(key, text string) float64 {
	area, ok := s.areas[key]
	if !ok || len(area.Indicators) == 0 {
		return 0
	}
	matches := 0
	for _, p := range area.Indicators {
		if p.Match(text) {
			matches++
		}
	}
	return round1(math.Min(100, float64(matches)/float64(len(area.Indicators))*100))
}

type namedScore struct {
	name  string
	score float64
}

func (s *Scorer) named(q types.QualityScore) []namedScore {
	name := func(key, fallback string) string {
		if a, ok := s.areas[key]; ok && a.Area != "" {
			return a.Area
		}
		return fallback
	}
	return []namedScore{
		{name("rapport", "Rapport Building"), q.Rapport},
		{name("discovery", "Discovery"), q.Discovery},
		{name("presentation", "Presentation"), q.Presentation},
		{objectionHandlingArea, q.ObjectionHandling},
		{name("closing", "Closing"), q.Closing},
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
