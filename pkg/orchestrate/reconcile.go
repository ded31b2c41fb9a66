package orchestrate

import (
	"strings"

	"github.com/visionkit/describe-client/pkg/vision"
)

// separatorPlaceholder is what the service substitutes for characters
// with special meaning to its filesystem when it relocates an item ID
// into a storage path. The only observed substitution is ":" → "_".
const separatorPlaceholder = "_"

// FieldText is one field's reconciled text for an item.
type FieldText struct {
	Field   vision.Field
	Text    string
	Backend string
}

// reconciliation is the output of matching returned assets back to the
// submitted items.
type reconciliation struct {
	// fields holds, per item ID, the reconciled texts in field order.
	fields map[string][]FieldText

	// warnings flags fields whose aggregate had assets but yielded no
	// usable text for any item.
	warnings []Warning

	// dropped counts assets no item ID could be matched for.
	dropped int
}

// matchName maps a returned asset name to a submitted item ID. The
// service may return the original ID unchanged, or relocated into a
// path with separator characters substituted. Matching is a fixed
// two-step strategy: exact match first, then the final path segment
// with the substitution reversed. Anything beyond that is guesswork
// against an undocumented naming scheme, so no further rules apply.
func matchName(known map[string]bool, name string) (string, bool) {
	if known[name] {
		return name, true
	}

	base := name
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if known[base] {
		return base, true
	}

	restored := strings.ReplaceAll(base, separatorPlaceholder, ":")
	if known[restored] {
		return restored, true
	}

	return "", false
}

// reconcile attributes every aggregate asset back to an original item.
// Unattributable assets are dropped and counted, never raised: the
// service's naming scheme is not contractual and a best-effort policy
// keeps one odd name from failing a run. Only the first description of
// an asset is used; empty text contributes nothing.
func (r *Runner) reconcile(items []vision.Item, aggregates []FieldAggregate) reconciliation {
	known := make(map[string]bool, len(items))
	for _, item := range items {
		known[item.ID] = true
	}

	out := reconciliation{fields: make(map[string][]FieldText)}

	for _, agg := range aggregates {
		attributed := 0

		for _, asset := range agg.Assets {
			itemID, ok := matchName(known, asset.Name)
			if !ok {
				r.logger.Debug().
					Str("field", string(agg.Field)).
					Str("name", asset.Name).
					Msg("Dropping unattributable asset")
				unattributedAssetsTotal.Inc()
				out.dropped++
				continue
			}

			if len(asset.Descriptions) == 0 || asset.Descriptions[0].Text == "" {
				continue
			}

			first := asset.Descriptions[0]
			out.fields[itemID] = append(out.fields[itemID], FieldText{
				Field:   agg.Field,
				Text:    first.Text,
				Backend: first.Backend,
			})
			attributed++
		}

		// The calls for this field technically succeeded, but nothing
		// usable came back. That is a warning, not a hard error.
		if len(agg.Assets) > 0 && attributed == 0 {
			out.warnings = append(out.warnings, Warning{
				Field:   agg.Field,
				Message: "no descriptions returned",
			})
		}
	}

	return out
}
