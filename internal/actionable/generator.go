package actionable

import (
	"fmt"

	"call-intel-go/internal/types"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

var painActions = map[string]string{
	"explicit_pain":   "Dig into the stated problem and quantify what it costs today",
	"efficiency_pain": "Show time saved versus the current manual process",
	"business_pain":   "Tie the proposal to customer retention numbers",
}

var stageActions = map[types.CallStage]ActionCard{
	types.StageIntroduction: {
		Insight: "Call ended before discovery",
		Action:  "Schedule a discovery call with the prospect",
		Impact:  "Moves the deal out of first contact",
	},
	types.StageDiscovery: {
		Insight: "Needs were explored but no solution shown",
		Action:  "Summarize discovered needs and propose a tailored demo",
		Impact:  "Turns discovery into a concrete evaluation",
	},
	types.StagePresentation: {
		Insight: "Solution was presented",
		Action:  "Confirm fit with the decision maker and propose next steps",
		Impact:  "Keeps momentum after the demo",
	},
	types.StageObjectionHandling: {
		Insight: "Call ended on open concerns",
		Action:  "Resolve open objections before asking for commitment",
		Impact:  "Removes the main blocker to close",
	},
	types.StageClosing: {
		Insight: "Prospect is ready to commit",
		Action:  "Send the agreement and confirm a start date",
		Impact:  "Shortens time to signature",
	},
}

// Generate builds next-best-action cards from the call stage and the
// extracted insights. Unanswered objections come first, the stage card last.
func Generate(stage types.CallStage, insights []types.Insight, competitors []types.CompetitorMention) []ActionCard {
	var cards []ActionCard
	var buying int
	for _, in := range insights {
		switch {
		case in.Unhandled():
			cards = append(cards, ActionCard{
				Insight: fmt.Sprintf("Unanswered %s objection", in.Category),
				Action:  in.SuggestedResponse,
				Impact:  "Prevents the objection from stalling the deal",
			})
		case in.Type == types.InsightPainPoint:
			if action, ok := painActions[in.Category]; ok {
				cards = append(cards, ActionCard{
					Insight: fmt.Sprintf("Prospect raised %s", in.Category),
					Action:  action,
					Impact:  "Builds urgency around a real problem",
				})
			}
		case in.Type == types.InsightBuyingSignal:
			buying++
		}
	}
	if buying > 0 {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("%d buying signal(s) detected", buying),
			Action:  "Send a concrete proposal with pricing and timeline",
			Impact:  "Capitalizes on expressed interest",
		})
	}
	if len(competitors) > 0 {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("Competitor mentioned: %s", competitors[0].CompetitorName),
			Action:  "Prepare competitive differentiation talking points",
			Impact:  "Protects the deal against an incumbent",
		})
	}
	if card, ok := stageActions[stage]; ok {
		cards = append(cards, card)
	}
	return cards
}

// Actions flattens cards to their action text, dropping blanks and repeats.
func Actions(cards []ActionCard) []string {
	out := []string{}
	for _, c := range cards {
		if c.Action != "" {
			out = append(out, c.Action)
		}
	}
	return dedupe(out)
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
