package types

type InsightType string

const (
	InsightObjection         InsightType = "Objection"
	InsightBuyingSignal      InsightType = "BuyingSignal"
	InsightPainPoint         InsightType = "PainPoint"
	InsightCompetitorMention InsightType = "CompetitorMention"
	InsightDecisionCriteria  InsightType = "DecisionCriteria"
	InsightBudget            InsightType = "Budget"
	InsightTimeline          InsightType = "Timeline"
)

// Insight is a single rule hit against one segment.
type Insight struct {
	Rule                string      `json:"rule"`
	Type                InsightType `json:"type"`
	Category            string      `json:"category"`
	Text                string      `json:"text"`
	Timestamp           string      `json:"timestamp"`
	SegmentIndex        int         `json:"segment_index"`
	Speaker             Role        `json:"speaker"`
	Confidence          float64     `json:"confidence"`
	ImpactScore         int         `json:"impact_score"`
	FollowUpRequired    bool        `json:"follow_up_required"`
	HandledSuccessfully *bool       `json:"handled_successfully,omitempty"`
	SuggestedResponse   string      `json:"suggested_response,omitempty"`
}

// Unhandled reports whether the insight is an objection nobody answered.
func (i Insight) Unhandled() bool {
	return i.Type == InsightObjection && (i.HandledSuccessfully == nil || !*i.HandledSuccessfully)
}

type CompetitorMention struct {
	CompetitorName    string    `json:"competitor_name"`
	Context           string    `json:"context"`
	SegmentIndex      int       `json:"segment_index"`
	Sentiment         Sentiment `json:"sentiment"`
	FeaturesMentioned []string  `json:"features_mentioned"`
	PriceComparison   bool      `json:"price_comparison"`
	SwitchingIntent   bool      `json:"switching_intent"`
}

type PersonalityType string

const (
	PersonalityAnalytical PersonalityType = "Analytical"
	PersonalityDriver     PersonalityType = "Driver"
	PersonalityExpressive PersonalityType = "Expressive"
	PersonalityAmiable    PersonalityType = "Amiable"
)

type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

type PsychologicalProfile struct {
	PersonalityType      PersonalityType `json:"personality_type" yaml:"personality_type"`
	DecisionMakingStyle  string          `json:"decision_making_style" yaml:"decision_making_style"`
	CommunicationStyle   string          `json:"communication_style" yaml:"communication_style"`
	RiskTolerance        Level           `json:"risk_tolerance" yaml:"risk_tolerance"`
	PriceSensitivity     Level           `json:"price_sensitivity" yaml:"price_sensitivity"`
	TrustFactors         []string        `json:"trust_factors" yaml:"trust_factors"`
	MotivationalTriggers []string        `json:"motivational_triggers" yaml:"motivational_triggers"`
	Concerns             []string        `json:"concerns" yaml:"concerns"`
}

type TalkTimeRatio struct {
	Rep      int `json:"rep"`
	Prospect int `json:"prospect"`
}

type InterruptionCounts struct {
	Rep      int `json:"rep"`
	Prospect int `json:"prospect"`
}

type QuestionTechnique struct {
	Open    int `json:"open"`
	Closed  int `json:"closed"`
	Leading int `json:"leading"`
}

func (q QuestionTechnique) Total() int { return q.Open + q.Closed + q.Leading }

type SilenceMoment struct {
	AfterSegment  int     `json:"after_segment"`
	Timestamp     string  `json:"timestamp"`
	DurationSec   float64 `json:"duration_sec"`
	Effectiveness string  `json:"effectiveness"`
}

type EmotionSample struct {
	SegmentIndex int     `json:"segment_index"`
	Timestamp    string  `json:"timestamp"`
	Role         Role    `json:"role"`
	Emotion      string  `json:"emotion"`
	Intensity    float64 `json:"intensity"`
}

type ConversationDynamics struct {
	TalkTimeRatio      TalkTimeRatio      `json:"talk_time_ratio"`
	InterruptionCounts InterruptionCounts `json:"interruption_counts"`
	QuestionTechnique  QuestionTechnique  `json:"question_technique"`
	SilenceMoments     []SilenceMoment    `json:"silence_moments"`
	EmotionalFlow      []EmotionSample    `json:"emotional_flow"`
	// EmotionalFlowDropped counts segments past the sampling cap.
	EmotionalFlowDropped int `json:"emotional_flow_dropped"`
}

type PowerDynamic string

const (
	DynamicRepDominant      PowerDynamic = "RepDominant"
	DynamicProspectDominant PowerDynamic = "ProspectDominant"
	DynamicBalanced         PowerDynamic = "Balanced"
)

const (
	ShiftToRep      = "to_rep"
	ShiftToProspect = "to_prospect"
)

type ControlMoment struct {
	SegmentIndex int    `json:"segment_index"`
	Timestamp    string `json:"timestamp"`
	Direction    string `json:"direction"`
	Trigger      string `json:"trigger"`
	Impact       Level  `json:"impact"`
}

type InfluenceScores struct {
	Reciprocity float64 `json:"reciprocity"`
	Commitment  float64 `json:"commitment"`
	SocialProof float64 `json:"social_proof"`
	Authority   float64 `json:"authority"`
	Liking      float64 `json:"liking"`
	Scarcity    float64 `json:"scarcity"`
}

func (s InfluenceScores) Mean() float64 {
	return (s.Reciprocity + s.Commitment + s.SocialProof + s.Authority + s.Liking + s.Scarcity) / 6
}

type PowerAnalysis struct {
	OverallDynamic          PowerDynamic    `json:"overall_dynamic"`
	ControlMoments          []ControlMoment `json:"control_moments"`
	InfluenceScores         InfluenceScores `json:"influence_scores"`
	PersuasionEffectiveness int             `json:"persuasion_effectiveness"`
}

type CallStage string

const (
	StageIntroduction      CallStage = "Introduction"
	StageDiscovery         CallStage = "Discovery"
	StagePresentation      CallStage = "Presentation"
	StageObjectionHandling CallStage = "ObjectionHandling"
	StageClosing           CallStage = "Closing"
)

type FollowUp struct {
	Timing    string   `json:"timing"`
	Approach  string   `json:"approach"`
	KeyPoints []string `json:"key_points"`
}

type SalesInsights struct {
	CallStage           CallStage           `json:"call_stage"`
	BuyingSignals       []Insight           `json:"buying_signals"`
	Objections          []Insight           `json:"objections"`
	CompetitorMentions  []CompetitorMention `json:"competitor_mentions"`
	NextBestActions     []string            `json:"next_best_actions"`
	WinProbability      int                 `json:"win_probability"`
	RecommendedFollowUp FollowUp            `json:"recommended_follow_up"`
}

type QualityScore struct {
	Rapport           float64  `json:"rapport"`
	Discovery         float64  `json:"discovery"`
	Presentation      float64  `json:"presentation"`
	ObjectionHandling float64  `json:"objection_handling"`
	Closing           float64  `json:"closing"`
	Overall           float64  `json:"overall"`
	Strengths         []string `json:"strengths"`
	ImprovementAreas  []string `json:"improvement_areas"`
}

type Significance string

const (
	SignificanceCritical  Significance = "critical"
	SignificanceImportant Significance = "important"
	SignificanceNotable   Significance = "notable"
)

type KeyMoment struct {
	SegmentIndex   int          `json:"segment_index"`
	Timestamp      string       `json:"timestamp"`
	Moment         string       `json:"moment"`
	Significance   Significance `json:"significance"`
	Recommendation string       `json:"recommendation"`
	Impact         int          `json:"impact"`
}

type CoachingOpportunity struct {
	Area         string  `json:"area"`
	CurrentLevel float64 `json:"current_level"`
	Improvement  string  `json:"improvement"`
	Priority     Level   `json:"priority"`
}

// CallAnalysis is the aggregate produced once per call. It holds no wall-clock
// values so identical input serializes identically.
type CallAnalysis struct {
	ID                    string                `json:"id"`
	CallID                string                `json:"call_id"`
	Transcript            []TranscriptSegment   `json:"transcript"`
	OverallSentiment      Sentiment             `json:"overall_sentiment"`
	ConfidenceScore       float64               `json:"confidence_score"`
	Insights              []Insight             `json:"insights"`
	Profile               PsychologicalProfile  `json:"psychological_profile"`
	Dynamics              ConversationDynamics  `json:"conversation_dynamics"`
	Power                 PowerAnalysis         `json:"power_analysis"`
	Sales                 SalesInsights         `json:"sales_insights"`
	Quality               QualityScore          `json:"quality_score"`
	KeyMoments            []KeyMoment           `json:"key_moments"`
	CoachingOpportunities []CoachingOpportunity `json:"coaching_opportunities"`
}
