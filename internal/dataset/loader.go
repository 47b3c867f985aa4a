package dataset

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"call-intel-go/internal/logger"
	"call-intel-go/internal/types"
)

type columns struct {
	callID, rep, audio, transcript int
}

// detect finds the columns by header heuristics. Unknown columns are -1.
func detect(header []string) columns {
	c := columns{callID: -1, rep: -1, audio: -1, transcript: -1}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "transcript") || l == "text":
			if c.transcript == -1 {
				c.transcript = i
			}
		case strings.Contains(l, "audio") || strings.Contains(l, "recording") || strings.Contains(l, "url") || strings.Contains(l, "link"):
			if c.audio == -1 {
				c.audio = i
			}
		case strings.Contains(l, "rep") || strings.Contains(l, "agent") || strings.Contains(l, "user"):
			if c.rep == -1 {
				c.rep = i
			}
		case strings.Contains(l, "call id") || strings.Contains(l, "call_id") || strings.Contains(l, "callid") || strings.Contains(l, "sid") || l == "id":
			if c.callID == -1 {
				c.callID = i
			}
		}
	}
	if c.callID == -1 && len(header) > 0 {
		c.callID = 0
	}
	return c
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[idx])
}

// Load reads call records from the first sheet of an xlsx workbook. Rows
// without a call id, or with neither a transcript nor an http(s) audio
// link, are skipped.
func Load(path string, log *logger.Logger) ([]types.CallRecord, error) {
	if log == nil {
		log = logger.New()
	}
	l := log.Component("dataset").WithField("path", path)

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}
	cols := detect(rows[0])
	l.WithFields(map[string]interface{}{
		"call_id_col":    cols.callID,
		"rep_col":        cols.rep,
		"audio_col":      cols.audio,
		"transcript_col": cols.transcript,
	}).Info("detected dataset columns")

	out := []types.CallRecord{}
	skipped := 0
	for _, r := range rows[1:] {
		rec := types.CallRecord{
			CallID:     cell(r, cols.callID),
			RepID:      cell(r, cols.rep),
			AudioURL:   cell(r, cols.audio),
			Transcript: cell(r, cols.transcript),
		}
		lower := strings.ToLower(rec.AudioURL)
		if rec.AudioURL != "" && !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			rec.AudioURL = ""
		}
		if rec.CallID == "" || (rec.Transcript == "" && rec.AudioURL == "") {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	l.WithField("records", len(out)).WithField("skipped", skipped).Info("dataset loaded")
	return out, nil
}
