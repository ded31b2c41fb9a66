package orchestrate

import (
	"sort"

	"github.com/visionkit/describe-client/pkg/vision"
)

// FieldAggregate is the merged result for one field across all of its
// chunks: assets and carried error strings concatenated in chunk-index
// order.
type FieldAggregate struct {
	Field  vision.Field
	Assets []vision.AssetResult
	Errors []string
}

// chunkOutcome is one chunk's successful contribution to a field,
// either from a synchronous submission or a resolved poll job.
type chunkOutcome struct {
	field      vision.Field
	chunkIndex int
	assets     []vision.AssetResult
	errors     []string
}

// mergeOutcomes combines chunk outcomes into one FieldAggregate per
// field that has at least one contribution. Output order follows the
// given field order, and within a field the chunk-index order, so
// repeated runs over the same outcomes produce identical aggregates
// regardless of the order chunks settled in.
func mergeOutcomes(fields []vision.Field, outcomes []chunkOutcome) []FieldAggregate {
	byField := make(map[vision.Field][]chunkOutcome)
	for _, outcome := range outcomes {
		byField[outcome.field] = append(byField[outcome.field], outcome)
	}

	aggregates := make([]FieldAggregate, 0, len(byField))
	for _, field := range fields {
		contributions := byField[field]
		if len(contributions) == 0 {
			continue
		}

		sort.Slice(contributions, func(i, j int) bool {
			return contributions[i].chunkIndex < contributions[j].chunkIndex
		})

		agg := FieldAggregate{Field: field}
		for _, c := range contributions {
			agg.Assets = append(agg.Assets, c.assets...)
			agg.Errors = append(agg.Errors, c.errors...)
		}
		aggregates = append(aggregates, agg)
	}

	return aggregates
}
