package aggregate

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/phenotype/phenotype/internal/domain/mention"
)

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func m(field mention.Field, value, noteType string, noteDate *time.Time, seq int64) *mention.Mention {
	return &mention.Mention{
		ID:       uuid.New(),
		Field:    field,
		Value:    value,
		NoteType: noteType,
		NoteDate: noteDate,
		Sequence: seq,
	}
}

func TestResolver_CleanBeatsRank(t *testing.T) {
	r := NewResolver(DefaultConfig())

	dirty := m(mention.FieldERStatus, "Positive", "Pathology", date("2024-03-01"), 1)
	dirty.Negated = true
	clean := m(mention.FieldERStatus, "Negative", "ProgressNote", date("2023-01-01"), 2)

	if !r.Less(clean, dirty) {
		t.Error("clean progress note must beat negated pathology")
	}
}

func TestResolver_RankBeatsRecency(t *testing.T) {
	r := NewResolver(DefaultConfig())

	path := m(mention.FieldERStatus, "Positive", "Pathology", date("2023-01-01"), 1)
	radNewer := m(mention.FieldERStatus, "Negative", "Radiology", date("2024-06-01"), 2)

	if !r.Less(path, radNewer) {
		t.Error("older pathology must beat newer radiology")
	}
}

func TestResolver_RecencyWithinRank(t *testing.T) {
	r := NewResolver(DefaultConfig())

	older := m(mention.FieldERStatus, "Negative", "Pathology", date("2023-01-01"), 1)
	newer := m(mention.FieldERStatus, "Positive", "Pathology", date("2024-01-01"), 2)

	if !r.Less(newer, older) {
		t.Error("newer note must beat older note at equal rank")
	}
}

func TestResolver_UndatedSortsLast(t *testing.T) {
	r := NewResolver(DefaultConfig())

	dated := m(mention.FieldERStatus, "Positive", "Pathology", date("2020-01-01"), 2)
	undated := m(mention.FieldERStatus, "Negative", "Pathology", nil, 1)

	if !r.Less(dated, undated) {
		t.Error("dated mention must beat undated mention at equal rank")
	}
}

func TestResolver_SequenceBreaksTies(t *testing.T) {
	r := NewResolver(DefaultConfig())

	first := m(mention.FieldERStatus, "Positive", "Pathology", date("2024-01-01"), 1)
	second := m(mention.FieldERStatus, "Negative", "Pathology", date("2024-01-01"), 2)

	if !r.Less(first, second) {
		t.Error("earlier ingestion must win a full tie")
	}
	if r.Less(second, first) {
		t.Error("order must be strict: second never sorts before first")
	}
}

func TestResolver_UnknownNoteTypeRanksZero(t *testing.T) {
	r := NewResolver(DefaultConfig())

	progress := m(mention.FieldERStatus, "Positive", "ProgressNote", nil, 2)
	unknown := m(mention.FieldERStatus, "Negative", "DischargeSummary", nil, 1)

	if !r.Less(progress, unknown) {
		t.Error("unmapped note type must rank below ProgressNote")
	}
}

func TestResolver_OrderDoesNotMutateInput(t *testing.T) {
	r := NewResolver(DefaultConfig())

	a := m(mention.FieldERStatus, "A", "Radiology", nil, 1)
	b := m(mention.FieldERStatus, "B", "Pathology", nil, 2)
	in := []*mention.Mention{a, b}

	out := r.Order(in)
	if out[0] != b {
		t.Error("expected pathology first in ordered output")
	}
	if in[0] != a || in[1] != b {
		t.Error("input slice must not be reordered")
	}
}
