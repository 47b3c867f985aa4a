package aggregator

import (
	"math"
	"sort"

	"call-intel-go/internal/types"
)

const DefaultLimit = 5

// Summarize rolls up a rep's analyses. analyses are expected newest first,
// which is the order the store lists them in.
func Summarize(repID string, analyses []types.CallAnalysis, limit int) types.RepSummary {
	if limit <= 0 {
		limit = DefaultLimit
	}
	topics := map[string]int{}
	concerns := map[string]int{}
	var quality, win float64
	suggestions := []string{}
	seen := map[string]bool{}

	for _, a := range analyses {
		quality += a.Quality.Overall
		win += float64(a.Sales.WinProbability)
		for _, in := range a.Insights {
			if in.Category != "" {
				topics[in.Category]++
			}
		}
		for _, c := range a.Profile.Concerns {
			concerns[c]++
		}
		for _, s := range a.Quality.ImprovementAreas {
			if len(suggestions) < limit && !seen[s] {
				seen[s] = true
				suggestions = append(suggestions, s)
			}
		}
	}

	out := types.RepSummary{
		RepID:                     repID,
		TotalCalls:                len(analyses),
		TopTopics:                 rank(topics, limit),
		CommonConcerns:            rank(concerns, limit),
		RecentCoachingSuggestions: suggestions,
	}
	if n := float64(len(analyses)); n > 0 {
		out.AverageQuality = round1(quality / n)
		out.AverageWinProbability = round1(win / n)
	}
	return out
}

// rank orders counts by frequency, then label, and keeps the first limit.
func rank(counts map[string]int, limit int) []types.Count {
	out := make([]types.Count, 0, len(counts))
	for label, n := range counts {
		out = append(out, types.Count{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
