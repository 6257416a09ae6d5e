package aggregate

import (
	"sort"

	"github.com/google/uuid"

	"github.com/phenotype/phenotype/internal/domain/mention"
)

// Selection is the outcome of one field's aggregation for one patient.
type Selection struct {
	Value      string
	MentionID  uuid.UUID
	Confidence float64
}

// Aggregator applies the field-selection policy: clean evidence wins under
// the resolver's precedence; when no clean evidence exists anywhere, the
// fallback is the first non-empty value in ingestion order, intentionally
// ignoring note-type rank and recency.
type Aggregator struct {
	resolver *Resolver
}

func NewAggregator(cfg Config) *Aggregator {
	return &Aggregator{resolver: NewResolver(cfg)}
}

// Select resolves the winning value for one (patient, field) pair. The
// second return is false when no candidates exist; the field stays absent
// from the record, which is not an error.
func (a *Aggregator) Select(field mention.Field, patientMentions []*mention.Mention) (Selection, bool) {
	var clean, all []*mention.Mention
	for _, m := range patientMentions {
		if m.Field != field || !m.Aggregatable() || m.Value == "" {
			continue
		}
		all = append(all, m)
		if m.Clean() {
			clean = append(clean, m)
		}
	}

	if len(clean) > 0 {
		best := a.resolver.Best(clean)
		return Selection{Value: best.Value, MentionID: best.ID, Confidence: best.Confidence}, true
	}

	if len(all) > 0 {
		sort.SliceStable(all, func(i, j int) bool { return all[i].Sequence < all[j].Sequence })
		first := all[0]
		return Selection{Value: first.Value, MentionID: first.ID, Confidence: first.Confidence}, true
	}

	return Selection{}, false
}
