package power

import (
	"math"
	"strings"

	"call-intel-go/internal/config"
	"call-intel-go/internal/rules"
	"call-intel-go/internal/types"
)

var levelRank = map[types.Level]int{types.LevelLow: 1, types.LevelMedium: 2, types.LevelHigh: 3}

type Analyzer struct {
	catalog *rules.Catalog
	cfg     config.Analysis
}

func New(c *rules.Catalog, cfg config.Analysis) *Analyzer {
	return &Analyzer{catalog: c, cfg: cfg}
}

func (a *Analyzer) Analyze(segs []types.TranscriptSegment) types.PowerAnalysis {
	moments := a.controlMoments(segs)
	scores := a.influence(segs)
	return types.PowerAnalysis{
		OverallDynamic:          a.dynamic(moments),
		ControlMoments:          moments,
		InfluenceScores:         scores,
		PersuasionEffectiveness: clampInt(int(math.Round(scores.Mean()*10)), 0, 100),
	}
}

// controlMoments tags rep value statements as shifts to the rep and prospect
// objections as shifts to the prospect. The strongest trigger in a segment wins.
func (a *Analyzer) controlMoments(segs []types.TranscriptSegment) []types.ControlMoment {
	out := []types.ControlMoment{}
	for _, s := range segs {
		var vocab []rules.WeightedTerm
		var dir string
		switch s.Role {
		case types.RoleRep:
			vocab, dir = a.catalog.Control.ToRep, types.ShiftToRep
		case types.RoleProspect:
			vocab, dir = a.catalog.Control.ToProspect, types.ShiftToProspect
		default:
			continue
		}
		var best *rules.WeightedTerm
		for i := range vocab {
			w := &vocab[i]
			if !w.Terms.Any(s.Text) {
				continue
			}
			if best == nil || levelRank[w.Impact] > levelRank[best.Impact] {
				best = w
			}
		}
		if best == nil {
			continue
		}
		out = append(out, types.ControlMoment{
			SegmentIndex: s.Index,
			Timestamp:    s.Timestamp,
			Direction:    dir,
			Trigger:      best.Term,
			Impact:       best.Impact,
		})
	}
	return out
}

func (a *Analyzer) dynamic(moments []types.ControlMoment) types.PowerDynamic {
	var rep, prospect int
	for _, m := range moments {
		if m.Direction == types.ShiftToRep {
			rep++
		} else {
			prospect++
		}
	}
	total := float64(rep + prospect)
	switch {
	case total == 0:
		return types.DynamicBalanced
	case float64(rep)/total > a.cfg.DominanceShare:
		return types.DynamicRepDominant
	case float64(prospect)/total > a.cfg.DominanceShare:
		return types.DynamicProspectDominant
	default:
		return types.DynamicBalanced
	}
}

// influence scores each dimension by keyword hits per 100 rep words, scaled
// and clamped to 0-10.
func (a *Analyzer) influence(segs []types.TranscriptSegment) types.InfluenceScores {
	var parts []string
	words := 0
	for _, s := range segs {
		if s.Role == types.RoleRep {
			parts = append(parts, s.Text)
			words += s.WordCount
		}
	}
	if words == 0 {
		return types.InfluenceScores{}
	}
	text := strings.Join(parts, " ")
	score := func(t *rules.Terms) float64 {
		density := float64(t.Count(text)) / float64(words) * 100
		return clamp(math.Round(density*a.cfg.InfluenceDensityScale*10)/10, 0, 10)
	}
	in := a.catalog.Influence
	return types.InfluenceScores{
		Reciprocity: score(in.Reciprocity),
		Commitment:  score(in.Commitment),
		SocialProof: score(in.SocialProof),
		Authority:   score(in.Authority),
		Liking:      score(in.Liking),
		Scarcity:    score(in.Scarcity),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
