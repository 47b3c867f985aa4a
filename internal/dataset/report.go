package dataset

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"call-intel-go/internal/types"
)

const (
	callsSheet    = "Calls"
	insightsSheet = "Insights"
)

var callsHeader = []interface{}{
	"Call ID", "Stage", "Win Probability", "Sentiment", "Confidence",
	"Rapport", "Discovery", "Presentation", "Objection Handling", "Closing", "Overall",
	"Insights", "Next Best Actions",
}

var insightsHeader = []interface{}{"Call ID", "Timestamp", "Type", "Category", "Speaker", "Impact", "Handled", "Text"}

// WriteReport writes one row per analysis to the Calls sheet and one row per
// insight to the Insights sheet.
func WriteReport(path string, analyses []types.CallAnalysis) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", callsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(insightsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := f.SetSheetRow(callsSheet, "A1", &callsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetSheetRow(insightsSheet, "A1", &insightsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	insightRow := 2
	for i, a := range analyses {
		q := a.Quality
		row := []interface{}{
			a.CallID, string(a.Sales.CallStage), a.Sales.WinProbability, string(a.OverallSentiment), a.ConfidenceScore,
			q.Rapport, q.Discovery, q.Presentation, q.ObjectionHandling, q.Closing, q.Overall,
			len(a.Insights), strings.Join(a.Sales.NextBestActions, "; "),
		}
		if err := f.SetSheetRow(callsSheet, cellName(1, i+2), &row); err != nil {
			return fmt.Errorf("write call %s: %w", a.CallID, err)
		}
		for _, in := range a.Insights {
			handled := ""
			if in.HandledSuccessfully != nil {
				handled = fmt.Sprint(*in.HandledSuccessfully)
			}
			irow := []interface{}{a.CallID, in.Timestamp, string(in.Type), in.Category, string(in.Speaker), in.ImpactScore, handled, in.Text}
			if err := f.SetSheetRow(insightsSheet, cellName(1, insightRow), &irow); err != nil {
				return fmt.Errorf("write insight for %s: %w", a.CallID, err)
			}
			insightRow++
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
