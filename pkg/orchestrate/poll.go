package orchestrate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/visionkit/describe-client/pkg/vision"
)

// pollJob is one async job awaiting resolution.
type pollJob struct {
	field      vision.Field
	chunkIndex int
	chunkSize  int
	jobHandle  string
}

// pollResult is the terminal outcome of one poll job. A job resolves
// exactly once: with assets, with a captured error, or by exhausting
// its attempt budget.
type pollResult struct {
	field      vision.Field
	chunkIndex int
	assets     []vision.AssetResult
	errors     []string
	err        error
}

// pollAll runs every poll job concurrently and waits for all of them
// to settle. A slow or failing job never delays or cancels its
// siblings; each failure is captured in the job's own slot. Progress
// is reported in item units by distinct chunk, so a chunk polled for
// several fields counts once.
func (r *Runner) pollAll(ctx context.Context, jobs []pollJob, totalItems int) []pollResult {
	results := make([]pollResult, len(jobs))

	var wg sync.WaitGroup
	var mu sync.Mutex
	settledChunks := make(map[int]bool)
	completedItems := 0

	for i, job := range jobs {
		wg.Add(1)
		go func(slot int, job pollJob) {
			defer wg.Done()

			results[slot] = r.pollOne(ctx, job)

			mu.Lock()
			if !settledChunks[job.chunkIndex] {
				settledChunks[job.chunkIndex] = true
				completedItems += job.chunkSize
			}
			completed := completedItems
			mu.Unlock()

			r.emitProgress(PhasePolling, completed, totalItems)
		}(i, job)
	}
	wg.Wait()

	return results
}

// pollOne drives a single job through its state machine: query the job
// status, resolve on assets, fail on a terminal error set, keep waiting
// on a queued/processing signal, and time out when the attempt budget
// is exhausted.
func (r *Runner) pollOne(ctx context.Context, job pollJob) pollResult {
	result := pollResult{field: job.field, chunkIndex: job.chunkIndex}

	logger := r.logger.With().
		Str("field", string(job.field)).
		Int("chunk", job.chunkIndex).
		Str("job", job.jobHandle).
		Logger()

	for attempt := 1; attempt <= r.cfg.MaxPollAttempts; attempt++ {
		pollAttemptsTotal.Inc()

		outcome, err := r.svc.Poll(ctx, job.jobHandle)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("Poll call failed")
			pollJobsTotal.WithLabelValues("failed").Inc()
			result.err = fmt.Errorf("poll job: %w", err)
			return result
		}

		switch outcome.Kind {
		case vision.PollDone:
			logger.Debug().Int("attempt", attempt).Int("assets", len(outcome.Assets)).Msg("Job resolved")
			pollJobsTotal.WithLabelValues("resolved").Inc()
			result.assets = outcome.Assets
			result.errors = outcome.Errors
			return result

		case vision.PollFailed:
			logger.Warn().Int("attempt", attempt).Strs("errors", outcome.Errors).Msg("Job failed")
			pollJobsTotal.WithLabelValues("failed").Inc()
			result.err = fmt.Errorf("job failed: %s", strings.Join(outcome.Errors, "; "))
			return result

		case vision.PollUnknownShape:
			logger.Warn().
				Int("attempt", attempt).
				RawJSON("response", outcome.Raw).
				Msg("Unrecognized poll response")
			pollJobsTotal.WithLabelValues("failed").Inc()
			result.err = fmt.Errorf("unexpected poll response for job %s", job.jobHandle)
			return result
		}

		// Still queued or processing. Wait out the interval unless this
		// was the final attempt.
		if attempt >= r.cfg.MaxPollAttempts {
			break
		}

		select {
		case <-ctx.Done():
			pollJobsTotal.WithLabelValues("failed").Inc()
			result.err = fmt.Errorf("poll job: %w", ctx.Err())
			return result
		case <-time.After(r.cfg.PollInterval):
		}
	}

	logger.Warn().Int("max_attempts", r.cfg.MaxPollAttempts).Msg("Job timed out")
	pollJobsTotal.WithLabelValues("timeout").Inc()
	result.err = fmt.Errorf("job %s did not complete after %d attempts", job.jobHandle, r.cfg.MaxPollAttempts)
	return result
}
