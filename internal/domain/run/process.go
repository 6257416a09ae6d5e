package run

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phenotype/phenotype/internal/domain/aggregate"
	"github.com/phenotype/phenotype/internal/domain/mention"
)

// Process executes one aggregation run in memory: field mapping,
// normalization, identity resolution, HER2 reconciliation, and field
// aggregation. It is a pure function of its input and configuration, used
// by both the API service and the offline batch command.
//
// Per-record failures (unknown hints, unparseable values, unresolvable
// notes) are isolated: the offending mention is retained in evidence with
// the appropriate flag and the run continues.
func Process(cfg aggregate.Config, norm *mention.Normalizer, in *Input) *Result {
	notes := make(map[string]NoteInfo, len(in.Notes))
	for _, n := range in.Notes {
		if n.NoteID != "" {
			notes[n.NoteID] = n
		}
	}

	var (
		mentions []*mention.Mention
		warnings []string
		seq      int64
	)

	for i, raw := range in.Mentions {
		if raw.NoteID == "" {
			// Structural failure for this record only; the run continues.
			warnings = append(warnings, fmt.Sprintf("mention %d (%s): missing note_id, record skipped", i, raw.FieldHint))
			continue
		}

		seq++
		m := &mention.Mention{
			ID:         uuid.New(),
			RawText:    raw.RawText,
			NoteID:     raw.NoteID,
			Negated:    raw.Negated,
			Uncertain:  raw.Uncertain,
			Confidence: clamp01(raw.Confidence),
			Sequence:   seq,
		}

		field, err := mention.ParseField(raw.FieldHint)
		var unknownField *mention.UnknownFieldError
		if errors.As(err, &unknownField) {
			m.Uncurated = true
			m.Value = raw.RawText
			warnings = append(warnings, fmt.Sprintf("mention %d: %s, retained as uncurated", i, err))
		} else {
			m.Field = field
			res, nerr := norm.Normalize(field, raw.RawText)
			if nerr != nil {
				m.Invalid = true
			} else {
				m.Value = res.Value
				m.Uncurated = res.Uncurated
			}
		}

		note, ok := notes[raw.NoteID]
		if !ok || note.PatientID == "" {
			idErr := &mention.MissingIdentityError{NoteID: raw.NoteID}
			warnings = append(warnings, fmt.Sprintf("mention %d: %s, excluded from aggregation", i, idErr))
		} else {
			m.PatientID = note.PatientID
			m.NoteType = note.NoteType
			if note.NoteDate != "" {
				m.NoteDate = ParseNoteDate(note.NoteDate)
			}
		}

		mentions = append(mentions, m)
	}

	known := make([]string, 0, len(in.Notes)+len(in.Patients))
	for _, n := range in.Notes {
		known = append(known, n.PatientID)
	}
	known = append(known, in.Patients...)

	out := aggregate.NewBuilder(cfg).Build(mentions, known)

	return &Result{
		Run: &Run{
			ID:           uuid.New(),
			CreatedAt:    time.Now().UTC(),
			PatientCount: len(out.Records),
			MentionCount: len(mentions),
			WarningCount: len(warnings),
		},
		Records:  out.Records,
		Evidence: out.Evidence,
		Warnings: warnings,
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
