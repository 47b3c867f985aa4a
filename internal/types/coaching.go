package types

type CoachingStatus string

const (
	CoachingPending   CoachingStatus = "pending"
	CoachingReviewed  CoachingStatus = "reviewed"
	CoachingDismissed CoachingStatus = "dismissed"
)

type CoachingSession struct {
	ID               string         `json:"id"`
	RepID            string         `json:"rep_id"`
	SessionType      string         `json:"session_type"`
	CallIDs          []string       `json:"call_ids"`
	Strengths        []string       `json:"strengths"`
	ImprovementAreas []string       `json:"improvement_areas"`
	ActionItems      []string       `json:"action_items"`
	OverallScore     float64        `json:"overall_score"`
	Status           CoachingStatus `json:"status"`
}

// Count is one entry of a frequency-ranked list.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// RepSummary is the read-side rollup over a rep's analyzed calls.
type RepSummary struct {
	RepID                     string   `json:"rep_id"`
	TotalCalls                int      `json:"total_calls"`
	AverageQuality            float64  `json:"average_quality"`
	AverageWinProbability     float64  `json:"average_win_probability"`
	TopTopics                 []Count  `json:"top_topics"`
	CommonConcerns            []Count  `json:"common_concerns"`
	RecentCoachingSuggestions []string `json:"recent_coaching_suggestions"`
}
