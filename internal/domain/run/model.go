package run

import (
	"time"

	"github.com/google/uuid"

	"github.com/phenotype/phenotype/internal/domain/aggregate"
	"github.com/phenotype/phenotype/internal/domain/mention"
)

// Run maps to the phenotype_run table. A run is write-once: re-executing
// the same input produces a new run rather than patching an old one.
type Run struct {
	ID           uuid.UUID `db:"id" json:"id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	PatientCount int       `db:"patient_count" json:"patient_count"`
	MentionCount int       `db:"mention_count" json:"mention_count"`
	WarningCount int       `db:"warning_count" json:"warning_count"`
}

// RawMention is the input contract from the NER/context-assertion
// collaborator: one typed mention record per extracted observation.
type RawMention struct {
	FieldHint  string  `json:"field_hint"`
	RawText    string  `json:"raw_text"`
	NoteID     string  `json:"note_id"`
	Negated    bool    `json:"negated"`
	Uncertain  bool    `json:"uncertain"`
	Confidence float64 `json:"confidence"`
}

// NoteInfo is the input contract from the identity/metadata resolver:
// resolved metadata for one note. NoteDate accepts "2006-01-02" or RFC 3339.
type NoteInfo struct {
	NoteID    string `json:"note_id"`
	PatientID string `json:"patient_id"`
	NoteType  string `json:"note_type"`
	NoteDate  string `json:"note_date,omitempty"`
}

// Input is the full mention set for one aggregation run. Patients lists ids
// known to the mapping that may have zero mentions; they still produce a
// record with all fields absent.
type Input struct {
	Mentions []RawMention `json:"mentions"`
	Notes    []NoteInfo   `json:"notes"`
	Patients []string     `json:"patients,omitempty"`
}

// Result is the output contract to the presentation layer: one record per
// patient plus the complete evidence table, with run-level warnings for
// diagnosability.
type Result struct {
	Run      *Run                      `json:"run"`
	Records  []aggregate.PatientRecord `json:"records"`
	Evidence []*mention.Mention        `json:"evidence"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// noteDateLayouts are the accepted note_date formats, tried in order.
var noteDateLayouts = []string{"2006-01-02", time.RFC3339}

// ParseNoteDate parses a resolver-supplied date. Unparseable dates are
// treated as absent, which sorts after all dated mentions.
func ParseNoteDate(s string) *time.Time {
	for _, layout := range noteDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
