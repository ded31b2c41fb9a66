// Package orchestrate runs the batch describe workflow: chunk items,
// fan out one submission per (field, chunk), poll async jobs, merge
// per-chunk results per field, and reconcile returned names back to
// the submitted item IDs.
package orchestrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/visionkit/describe-client/pkg/batch"
	"github.com/visionkit/describe-client/pkg/cache"
	"github.com/visionkit/describe-client/pkg/vision"
)

// Service is the remote describe service consumed by a run. Implemented
// by vision.Client.
type Service interface {
	Submit(ctx context.Context, req vision.SubmitRequest) (vision.SubmitOutcome, error)
	Poll(ctx context.Context, jobHandle string) (vision.PollOutcome, error)
}

// Config holds the run configuration.
type Config struct {
	// Fields are the requested output kinds. At least one is required.
	Fields []vision.Field

	// Model is the backend model identifier sent with each submission.
	Model string

	// Language is the output language code.
	Language string

	// Prompt optionally overrides the role prompt for every field.
	Prompt string

	// BatchSize is the maximum number of items per chunk.
	BatchSize int

	// PollInterval is the wait between poll attempts for one job.
	PollInterval time.Duration

	// MaxPollAttempts bounds polling per job; a job still pending after
	// the final attempt times out.
	MaxPollAttempts int

	// Cache is an optional description cache. When set, items whose
	// every requested field is already cached skip submission, and
	// freshly reconciled descriptions are written back.
	Cache *cache.Manager

	// CacheTTL is the expiry for written cache entries.
	CacheTTL time.Duration

	// Progress optionally receives observational progress events.
	Progress func(ProgressEvent)
}

// DefaultConfig returns a safe default configuration for the given fields.
func DefaultConfig(fields ...vision.Field) Config {
	return Config{
		Fields:          fields,
		Model:           "default",
		Language:        "en",
		BatchSize:       10,
		PollInterval:    2 * time.Second,
		MaxPollAttempts: 30,
		CacheTTL:        24 * time.Hour,
	}
}

// Runner orchestrates describe runs against a vision service.
type Runner struct {
	svc    Service
	cfg    Config
	logger zerolog.Logger
}

// NewRunner creates a new runner.
func NewRunner(svc Service, cfg Config) (*Runner, error) {
	if svc == nil {
		return nil, fmt.Errorf("service is required")
	}

	if len(cfg.Fields) == 0 {
		return nil, fmt.Errorf("at least one field is required")
	}

	seen := make(map[vision.Field]bool)
	for _, field := range cfg.Fields {
		if !field.Valid() {
			return nil, fmt.Errorf("unknown field %q", field)
		}
		if seen[field] {
			return nil, fmt.Errorf("duplicate field %q", field)
		}
		seen[field] = true
	}

	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive (got %d)", cfg.BatchSize)
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}

	if cfg.MaxPollAttempts <= 0 {
		return nil, fmt.Errorf("max poll attempts must be positive (got %d)", cfg.MaxPollAttempts)
	}

	if cfg.Model == "" {
		cfg.Model = "default"
	}

	if cfg.Language == "" {
		cfg.Language = "en"
	}

	return &Runner{
		svc:    svc,
		cfg:    cfg,
		logger: log.With().Str("component", "orchestrate").Logger(),
	}, nil
}

// ItemResult is the final per-item view: one entry per item that
// received at least one non-empty description, fields in requested
// order.
type ItemResult struct {
	ItemID string
	Fields []FieldText
}

// RunResult is the complete accounting of one run: per-item results,
// per-(field, chunk) errors, and field-level warnings.
type RunResult struct {
	Results     []ItemResult
	FieldErrors []FieldError
	Warnings    []Warning
}

// Run executes one orchestration over the given items. It returns a
// partial-success RunResult with a nil error whenever at least some
// descriptions were produced; failed (field, chunk) pairs are listed in
// FieldErrors. Only when every field failed across every chunk does it
// return ErrNoResults, with the RunResult still carrying the captured
// errors.
func (r *Runner) Run(ctx context.Context, items []vision.Item) (*RunResult, error) {
	if err := checkUniqueIDs(items); err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return &RunResult{}, nil
	}

	fieldLabels := make([]string, len(r.cfg.Fields))
	for i, f := range r.cfg.Fields {
		fieldLabels[i] = string(f)
	}

	r.logger.Info().
		Int("items", len(items)).
		Str("fields", strings.Join(fieldLabels, ",")).
		Msg("Starting describe run")

	// Items fully served by the cache never reach the service.
	cached, pending := r.lookupCache(ctx, items)

	result := &RunResult{}

	var reconciled reconciliation
	if len(pending) > 0 {
		chunks := batch.Split(pending, r.cfg.BatchSize)

		r.emitProgress(PhaseSubmitting, 0, len(pending))
		submissions := r.submitAll(ctx, chunks)
		r.emitProgress(PhaseSubmitting, len(pending), len(pending))

		outcomes, jobs := r.collectSubmissions(submissions, result)

		if len(jobs) > 0 {
			r.logger.Info().Int("jobs", len(jobs)).Msg("Polling async jobs")
			for _, pollRes := range r.pollAll(ctx, jobs, len(pending)) {
				if pollRes.err != nil {
					result.FieldErrors = append(result.FieldErrors, FieldError{
						Field:   pollRes.field,
						Chunk:   pollRes.chunkIndex,
						Message: pollRes.err.Error(),
					})
					continue
				}
				appendCarriedErrors(result, pollRes.field, pollRes.chunkIndex, pollRes.errors)
				outcomes = append(outcomes, chunkOutcome{
					field:      pollRes.field,
					chunkIndex: pollRes.chunkIndex,
					assets:     pollRes.assets,
					errors:     pollRes.errors,
				})
			}
		}

		aggregates := mergeOutcomes(r.cfg.Fields, outcomes)

		if len(aggregates) == 0 && len(cached) == 0 {
			r.logger.Error().
				Int("field_errors", len(result.FieldErrors)).
				Msg("Run produced no results")
			return result, ErrNoResults
		}

		reconciled = r.reconcile(pending, aggregates)
		result.Warnings = append(result.Warnings, reconciled.warnings...)

		if reconciled.dropped > 0 {
			r.logger.Warn().Int("dropped", reconciled.dropped).Msg("Dropped unattributable assets")
		}

		r.storeCache(ctx, pending, reconciled.fields)
	}

	// Compose results in original item order, merging cache hits and
	// freshly reconciled descriptions.
	for _, item := range items {
		if fields, ok := cached[item.ID]; ok {
			result.Results = append(result.Results, ItemResult{ItemID: item.ID, Fields: fields})
			continue
		}
		if fields, ok := reconciled.fields[item.ID]; ok {
			result.Results = append(result.Results, ItemResult{ItemID: item.ID, Fields: fields})
		}
	}

	r.logger.Info().
		Int("results", len(result.Results)).
		Int("field_errors", len(result.FieldErrors)).
		Int("warnings", len(result.Warnings)).
		Msg("Describe run complete")

	return result, nil
}

// collectSubmissions partitions settled submissions into successful
// chunk outcomes, jobs that need polling, and captured field errors.
func (r *Runner) collectSubmissions(submissions []submission, result *RunResult) ([]chunkOutcome, []pollJob) {
	var outcomes []chunkOutcome
	var jobs []pollJob

	for _, sub := range submissions {
		if sub.err != nil {
			result.FieldErrors = append(result.FieldErrors, FieldError{
				Field:   sub.field,
				Chunk:   sub.chunk.Index,
				Message: sub.err.Error(),
			})
			continue
		}

		switch sub.outcome.Kind {
		case vision.SubmitSync:
			appendCarriedErrors(result, sub.field, sub.chunk.Index, sub.outcome.Errors)
			outcomes = append(outcomes, chunkOutcome{
				field:      sub.field,
				chunkIndex: sub.chunk.Index,
				assets:     sub.outcome.Assets,
				errors:     sub.outcome.Errors,
			})

		case vision.SubmitPolling:
			jobs = append(jobs, pollJob{
				field:      sub.field,
				chunkIndex: sub.chunk.Index,
				chunkSize:  sub.chunk.Size(),
				jobHandle:  sub.outcome.JobHandle,
			})

		case vision.SubmitRemoteError:
			result.FieldErrors = append(result.FieldErrors, FieldError{
				Field:   sub.field,
				Chunk:   sub.chunk.Index,
				Message: sub.outcome.Message,
			})

		default:
			r.logger.Warn().
				Str("field", string(sub.field)).
				Int("chunk", sub.chunk.Index).
				RawJSON("response", sub.outcome.Raw).
				Msg("Unrecognized submit response")
			result.FieldErrors = append(result.FieldErrors, FieldError{
				Field:   sub.field,
				Chunk:   sub.chunk.Index,
				Message: "unexpected response from service",
			})
		}
	}

	return outcomes, jobs
}

// appendCarriedErrors surfaces per-item error strings a successful
// chunk carried alongside its assets. They are reported against the
// chunk but do not fail it.
func appendCarriedErrors(result *RunResult, field vision.Field, chunkIndex int, errs []string) {
	for _, msg := range errs {
		result.FieldErrors = append(result.FieldErrors, FieldError{
			Field:   field,
			Chunk:   chunkIndex,
			Message: msg,
		})
	}
}

// lookupCache splits items into those fully served by the cache and
// those that must be submitted. An item counts as cached only when
// every requested field is present, keeping the chunking uniform
// across fields for the remainder.
func (r *Runner) lookupCache(ctx context.Context, items []vision.Item) (map[string][]FieldText, []vision.Item) {
	if r.cfg.Cache == nil {
		return nil, items
	}

	cached := make(map[string][]FieldText)
	var pending []vision.Item

	for _, item := range items {
		fields := make([]FieldText, 0, len(r.cfg.Fields))
		for _, field := range r.cfg.Fields {
			key := cache.NewKey(item.Payload, field.Role(), r.cfg.Model, r.cfg.Language, r.cfg.Prompt)
			entry, err := r.cfg.Cache.Get(ctx, key)
			if err != nil {
				break
			}
			fields = append(fields, FieldText{Field: field, Text: entry.Text, Backend: entry.Backend})
		}

		if len(fields) == len(r.cfg.Fields) {
			cached[item.ID] = fields
		} else {
			pending = append(pending, item)
		}
	}

	if len(cached) > 0 {
		r.logger.Info().
			Int("cached", len(cached)).
			Int("pending", len(pending)).
			Msg("Served items from description cache")
	}

	return cached, pending
}

// storeCache writes freshly reconciled descriptions back to the cache.
// Write failures are logged and ignored; the run result is unaffected.
func (r *Runner) storeCache(ctx context.Context, items []vision.Item, fields map[string][]FieldText) {
	if r.cfg.Cache == nil {
		return
	}

	payloads := make(map[string][]byte, len(items))
	for _, item := range items {
		payloads[item.ID] = item.Payload
	}

	now := time.Now()
	for itemID, texts := range fields {
		payload, ok := payloads[itemID]
		if !ok {
			continue
		}
		for _, ft := range texts {
			key := cache.NewKey(payload, ft.Field.Role(), r.cfg.Model, r.cfg.Language, r.cfg.Prompt)
			entry := &cache.Entry{Text: ft.Text, Backend: ft.Backend, CachedAt: now}
			if err := r.cfg.Cache.Set(ctx, key, entry, r.cfg.CacheTTL); err != nil {
				r.logger.Warn().Err(err).Str("item", itemID).Msg("Failed to cache description")
			}
		}
	}
}

// checkUniqueIDs enforces the caller contract that item IDs are unique
// within one run.
func checkUniqueIDs(items []vision.Item) error {
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.ID == "" {
			return fmt.Errorf("item ID cannot be empty")
		}
		if seen[item.ID] {
			return fmt.Errorf("duplicate item ID %q", item.ID)
		}
		seen[item.ID] = true
	}
	return nil
}
