package orchestrate

import (
	"context"
	"sync"

	"github.com/visionkit/describe-client/pkg/batch"
	"github.com/visionkit/describe-client/pkg/vision"
)

// submission is the settled result of one (field, chunk) describe call.
// Either outcome carries the classified response, or err carries a
// transport-level failure.
type submission struct {
	field   vision.Field
	chunk   batch.Chunk
	outcome vision.SubmitOutcome
	err     error
}

// submitAll issues one describe call per (field, chunk) pair, all
// concurrently. Failures are captured in place, never propagated: one
// chunk or field failing does not cancel or corrupt its siblings. The
// returned slice is ordered by (field, chunk) and complete.
func (r *Runner) submitAll(ctx context.Context, chunks []batch.Chunk) []submission {
	results := make([]submission, len(r.cfg.Fields)*len(chunks))

	var wg sync.WaitGroup
	slot := 0
	for _, field := range r.cfg.Fields {
		for _, chunk := range chunks {
			wg.Add(1)
			go func(slot int, field vision.Field, chunk batch.Chunk) {
				defer wg.Done()

				req := vision.SubmitRequest{
					Items:    vision.EncodePayloads(chunk.Payloads),
					Names:    chunk.IDs,
					Role:     field.Role(),
					Model:    r.cfg.Model,
					Language: r.cfg.Language,
					Prompt:   r.cfg.Prompt,
				}

				outcome, err := r.svc.Submit(ctx, req)
				results[slot] = submission{field: field, chunk: chunk, outcome: outcome, err: err}

				submissionsTotal.WithLabelValues(string(field), submissionOutcomeLabel(outcome, err)).Inc()
			}(slot, field, chunk)
			slot++
		}
	}
	wg.Wait()

	return results
}

// submissionOutcomeLabel maps a settled submission to its metric label.
func submissionOutcomeLabel(outcome vision.SubmitOutcome, err error) string {
	if err != nil {
		return "transport_error"
	}
	switch outcome.Kind {
	case vision.SubmitSync:
		return "sync"
	case vision.SubmitPolling:
		return "polling"
	case vision.SubmitRemoteError:
		return "remote_error"
	default:
		return "unknown_shape"
	}
}
