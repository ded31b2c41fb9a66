package orchestrate

// Phase identifies which stage of a run a progress event belongs to.
type Phase string

const (
	// PhaseSubmitting covers the initial fan-out of describe calls.
	PhaseSubmitting Phase = "submitting"

	// PhasePolling covers the async job polling stage.
	PhasePolling Phase = "polling"
)

// ProgressEvent is an observational notification about run progress.
// Units are items, not calls, so a receiver can show image-level
// progress. Events never gate control flow and receivers must not
// block for long; they are invoked from the run's worker goroutines.
type ProgressEvent struct {
	Phase     Phase
	Completed int
	Total     int
}

// emitProgress delivers a progress event to the configured callback,
// if any.
func (r *Runner) emitProgress(phase Phase, completed, total int) {
	if r.cfg.Progress == nil {
		return
	}
	r.cfg.Progress(ProgressEvent{Phase: phase, Completed: completed, Total: total})
}
