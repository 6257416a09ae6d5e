package aggregate

// Config carries the per-run selection policy. It is passed explicitly into
// the resolver and aggregator so tests can inject non-default rankings; a
// run never consults mutable global state.
type Config struct {
	// NoteTypeRanks is the fixed, total note-type precedence for the run.
	// Higher is better. Note types absent from the map rank 0.
	NoteTypeRanks map[string]int

	// HighConfidence and MediumConfidence are the bucket thresholds applied
	// to the winning mention's confidence score.
	HighConfidence   float64
	MediumConfidence float64

	// Workers bounds per-patient parallelism in the builder. Zero or
	// negative means sequential.
	Workers int
}

// DefaultConfig returns the production selection policy: pathology and its
// addenda dominate tumor biology fields, imaging ranks lowest.
func DefaultConfig() Config {
	return Config{
		NoteTypeRanks: map[string]int{
			"Pathology":         100,
			"SurgicalPathology": 100,
			"PathologyAddendum": 100,
			"Addendum":          100,
			"OncologyConsult":   70,
			"Radiology":         40,
			"ProgressNote":      30,
			"Unknown":           0,
		},
		HighConfidence:   0.8,
		MediumConfidence: 0.5,
		Workers:          4,
	}
}

// Rank returns the precedence rank for a note type.
func (c Config) Rank(noteType string) int {
	return c.NoteTypeRanks[noteType]
}

// Confidence buckets for display.
const (
	BucketHigh   = "High"
	BucketMedium = "Medium"
	BucketLow    = "Low"
)

// Bucket discretizes a confidence score using the configured thresholds.
func (c Config) Bucket(confidence float64) string {
	switch {
	case confidence >= c.HighConfidence:
		return BucketHigh
	case confidence >= c.MediumConfidence:
		return BucketMedium
	default:
		return BucketLow
	}
}
