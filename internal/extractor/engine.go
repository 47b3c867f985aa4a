package extractor

import (
	"call-intel-go/internal/config"
	"call-intel-go/internal/rules"
	"call-intel-go/internal/types"
)

// Engine tags segments with typed insights using the catalog's signal rules.
type Engine struct {
	catalog *rules.Catalog
	window  int
}

type Result struct {
	Insights    []types.Insight           `json:"insights"`
	Competitors []types.CompetitorMention `json:"competitors"`
}

func New(c *rules.Catalog, cfg config.Analysis) *Engine {
	window := cfg.HandlingWindow
	if window <= 0 {
		window = 2
	}
	return &Engine{catalog: c, window: window}
}

// Extract runs every rule against every segment. A rule fires at most once
// per segment. Output order is segment order, then catalog rule order, then
// competitor mentions.
func (e *Engine) Extract(segs []types.TranscriptSegment) Result {
	res := Result{Insights: []types.Insight{}, Competitors: []types.CompetitorMention{}}
	for i, seg := range segs {
		for _, rule := range e.catalog.Signals {
			if _, ok := rule.Match(seg.Text); !ok {
				continue
			}
			ins := types.Insight{
				Rule:              rule.Name,
				Type:              rule.Type,
				Category:          rule.Category,
				Text:              seg.Text,
				Timestamp:         seg.Timestamp,
				SegmentIndex:      seg.Index,
				Speaker:           seg.Role,
				Confidence:        rule.Confidence,
				ImpactScore:       e.catalog.Impact(rule.Type, rule.Category),
				FollowUpRequired:  rule.Type == types.InsightObjection || rule.Type == types.InsightPainPoint,
				SuggestedResponse: rule.SuggestedResponse,
			}
			if rule.Type == types.InsightObjection {
				handled := e.handled(segs, i)
				ins.HandledSuccessfully = &handled
			}
			res.Insights = append(res.Insights, ins)
		}

		for _, m := range e.competitors(seg) {
			res.Competitors = append(res.Competitors, m)
			res.Insights = append(res.Insights, types.Insight{
				Rule:             "competitor_mention",
				Type:             types.InsightCompetitorMention,
				Category:         m.CompetitorName,
				Text:             m.Context,
				Timestamp:        seg.Timestamp,
				SegmentIndex:     seg.Index,
				Speaker:          seg.Role,
				Confidence:       e.catalog.Competitors.Confidence,
				ImpactScore:      e.catalog.Impact(types.InsightCompetitorMention, m.CompetitorName),
				FollowUpRequired: m.SwitchingIntent,
			})
		}
	}
	return res
}

// handled reports whether a Rep answered the objection at segs[i] within the
// handling window.
func (e *Engine) handled(segs []types.TranscriptSegment, i int) bool {
	for j := i + 1; j < len(segs) && j <= i+e.window; j++ {
		if segs[j].Role == types.RoleRep && e.catalog.HandlingPhrases.Any(segs[j].Text) {
			return true
		}
	}
	return false
}
