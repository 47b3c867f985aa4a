package processor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"call-intel-go/internal/apperrors"
	"call-intel-go/internal/types"
)

// ProcessBatch runs records through the workflow on a bounded worker pool.
// Records that carry a transcript skip transcription. A failing record is
// reported in its Result and does not stop the others. Results keep input
// order.
func (p *Processor) ProcessBatch(ctx context.Context, records []types.CallRecord) ([]Result, error) {
	results := make([]Result, len(records))
	g := new(errgroup.Group)
	g.SetLimit(p.workers)

	for i, r := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i], _ = p.processRecord(ctx, r)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (p *Processor) processRecord(ctx context.Context, r types.CallRecord) (Result, error) {
	start := time.Now()
	res := Result{CallID: r.CallID}
	if r.CallID == "" {
		return p.finish(res, start, apperrors.New(apperrors.ErrValidation, "processor.batch", "call id is required"))
	}
	if r.Transcript == "" && r.AudioURL == "" {
		return p.finish(res, start, apperrors.New(apperrors.ErrValidation, "processor.batch", "call %s has neither transcript nor audio", r.CallID))
	}
	log := p.log.WithCall(r.CallID)

	rec, _, err := p.store.CreateRecording(ctx, types.CallRecording{
		CallID:   r.CallID,
		MediaURI: r.AudioURL,
		Status:   types.StatusPendingDownload,
	})
	if err != nil {
		return p.finish(res, start, err)
	}
	if rec.Status == types.StatusFailed {
		res.Skipped = "recording previously failed"
		p.metrics.CallProcessed(OutcomeSkipped)
		return res, nil
	}

	cc := p.lookupContext(ctx, log, r.CallID)
	if cc.UserID == "" && r.RepID != "" {
		cc.UserID = r.RepID
		if err := p.store.SaveContext(ctx, cc); err != nil {
			log.WithField("error", err.Error()).Warn("could not save rep from dataset")
		}
	}

	text := r.Transcript
	if text == "" {
		if err := p.advance(ctx, rec, types.StatusDownloaded); err != nil {
			return p.finish(res, start, err)
		}
		if text, err = p.transcribe(ctx, rec); err != nil {
			return p.fail(ctx, log, res, start, err)
		}
	} else if err := p.advance(ctx, rec, types.StatusTranscribing); err != nil {
		return p.finish(res, start, err)
	}
	return p.analyze(ctx, log, res, start, text, cc)
}
