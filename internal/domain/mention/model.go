package mention

import (
	"time"

	"github.com/google/uuid"
)

// Field identifies one tracked phenotype field.
type Field string

const (
	FieldERStatus  Field = "er_status"
	FieldERPercent Field = "er_percent"
	FieldPRStatus  Field = "pr_status"
	FieldPRPercent Field = "pr_percent"
	FieldHER2IHC   Field = "her2_ihc"
	FieldHER2FISH  Field = "her2_fish"
	FieldHER2Final Field = "her2_final"
	FieldKi67      Field = "ki67_percent"
	FieldHistology Field = "histology"
	FieldGrade     Field = "grade"
	FieldStageClin Field = "stage_clinical"
	FieldStagePath Field = "stage_path"
	FieldUnknown   Field = ""
)

// fieldHints maps upstream extractor hints onto the closed field enum.
// Legacy aliases emitted by older extractor versions are accepted.
var fieldHints = map[string]Field{
	"er_status":        FieldERStatus,
	"er_percent":       FieldERPercent,
	"pr_status":        FieldPRStatus,
	"pr_percent":       FieldPRPercent,
	"her2_ihc":         FieldHER2IHC,
	"her2_ihc_score":   FieldHER2IHC,
	"her2_fish":        FieldHER2FISH,
	"her2_final":       FieldHER2Final,
	"her2_status":      FieldHER2Final,
	"ki67":             FieldKi67,
	"ki67_percent":     FieldKi67,
	"histology":        FieldHistology,
	"grade":            FieldGrade,
	"stage_clinical":   FieldStageClin,
	"stage_clin":       FieldStageClin,
	"stage_path":       FieldStagePath,
	"stage_pathologic": FieldStagePath,
}

// ParseField maps an upstream field hint onto the field enum. Unrecognized
// hints are an error, never silently dropped; callers retain the mention
// flagged uncurated.
func ParseField(hint string) (Field, error) {
	if f, ok := fieldHints[hint]; ok {
		return f, nil
	}
	return FieldUnknown, &UnknownFieldError{Hint: hint}
}

// TrackedFields returns the fields a patient record carries, in stable
// column order.
func TrackedFields() []Field {
	return []Field{
		FieldERStatus, FieldERPercent,
		FieldPRStatus, FieldPRPercent,
		FieldHER2IHC, FieldHER2FISH, FieldHER2Final,
		FieldKi67,
		FieldHistology, FieldGrade,
		FieldStageClin, FieldStagePath,
	}
}

// Mention is one observation of a phenotype field in one note. Mentions are
// immutable once created and are always retained on the path to the evidence
// table, even when they lose a field selection.
type Mention struct {
	ID         uuid.UUID  `json:"id"`
	Field      Field      `json:"field"`
	RawText    string     `json:"raw_text"`
	Value      string     `json:"value"`
	NoteID     string     `json:"note_id"`
	PatientID  string     `json:"patient_id"`
	NoteType   string     `json:"note_type"`
	NoteDate   *time.Time `json:"note_date,omitempty"`
	Negated    bool       `json:"negated"`
	Uncertain  bool       `json:"uncertain"`
	Confidence float64    `json:"confidence"`

	// Sequence is a strictly increasing ingestion-order counter, the final
	// deterministic tie-break in precedence ordering.
	Sequence int64 `json:"sequence"`

	// Invalid marks a mention whose raw text failed normalization. It stays
	// visible in evidence but never enters aggregation.
	Invalid bool `json:"invalid"`

	// Uncurated marks a value that did not map onto the controlled
	// vocabulary (free-text histology, unknown field hints).
	Uncurated bool `json:"uncurated"`

	// Reconciled marks a synthetic mention produced by HER2 reconciliation.
	// DerivedFrom lists the IHC/FISH mentions it was derived from.
	Reconciled  bool        `json:"reconciled"`
	DerivedFrom []uuid.UUID `json:"derived_from,omitempty"`

	// WonField is set on the evidence copy when this mention was selected
	// as the winning value for a field.
	WonField Field `json:"won_field,omitempty"`
}

// Clean reports whether the mention counts as clean evidence: neither
// negated nor uncertain, and normalization succeeded.
func (m *Mention) Clean() bool {
	return !m.Negated && !m.Uncertain && !m.Invalid
}

// Aggregatable reports whether the mention may enter field aggregation at
// all. Invalid and unknown-field mentions are evidence-only.
func (m *Mention) Aggregatable() bool {
	return !m.Invalid && m.Field != FieldUnknown
}
