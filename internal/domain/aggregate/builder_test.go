package aggregate

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/phenotype/phenotype/internal/domain/mention"
)

func pm(patientID string, field mention.Field, value, noteType string, seq int64) *mention.Mention {
	mm := m(field, value, noteType, nil, seq)
	mm.PatientID = patientID
	mm.NoteID = "note-" + patientID
	return mm
}

func TestBuilder_EvidenceCompleteness(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	ms := []*mention.Mention{
		pm("p1", mention.FieldERStatus, mention.StatusPositive, "Pathology", 1),
		pm("p1", mention.FieldHER2IHC, mention.IHC3Plus, "Pathology", 2),
		pm("p2", mention.FieldGrade, "2", "Pathology", 3),
	}
	bad := pm("p1", mention.FieldKi67, "", "Pathology", 4)
	bad.Invalid = true
	ms = append(ms, bad)

	out := b.Build(ms, nil)

	// Every input mention plus one HER2 synthetic for p1.
	if len(out.Evidence) != 5 {
		t.Fatalf("expected 5 evidence rows, got %d", len(out.Evidence))
	}
	seen := map[string]bool{}
	for _, e := range out.Evidence {
		seen[e.ID.String()] = true
	}
	for _, in := range ms {
		if !seen[in.ID.String()] {
			t.Errorf("input mention %s missing from evidence", in.ID)
		}
	}
}

func TestBuilder_WinnersTagged(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	win := pm("p1", mention.FieldERStatus, mention.StatusPositive, "Pathology", 1)
	lose := pm("p1", mention.FieldERStatus, mention.StatusNegative, "Radiology", 2)

	out := b.Build([]*mention.Mention{win, lose}, nil)

	if len(out.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out.Records))
	}
	fr, ok := out.Records[0].Fields[mention.FieldERStatus]
	if !ok {
		t.Fatal("expected er_status selected")
	}
	if fr.EvidenceID != win.ID {
		t.Error("record must point at the winning evidence row")
	}

	var tagged, untagged *mention.Mention
	for _, e := range out.Evidence {
		switch e.ID {
		case win.ID:
			tagged = e
		case lose.ID:
			untagged = e
		}
	}
	if tagged == nil || tagged.WonField != mention.FieldERStatus {
		t.Error("winner must carry won_field")
	}
	if untagged == nil || untagged.WonField != mention.FieldUnknown {
		t.Error("loser must stay untagged")
	}
}

func TestBuilder_KnownPatientWithoutMentions(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	out := b.Build(nil, []string{"p9"})

	if len(out.Records) != 1 {
		t.Fatalf("expected 1 record for the known patient, got %d", len(out.Records))
	}
	if out.Records[0].PatientID != "p9" {
		t.Errorf("expected p9, got %s", out.Records[0].PatientID)
	}
	if len(out.Records[0].Fields) != 0 {
		t.Errorf("expected all fields absent, got %d", len(out.Records[0].Fields))
	}
}

func TestBuilder_UnresolvedPatientEvidenceOnly(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	orphan := pm("", mention.FieldERStatus, mention.StatusPositive, "Pathology", 1)
	out := b.Build([]*mention.Mention{orphan}, nil)

	if len(out.Records) != 0 {
		t.Errorf("unresolved mention must not create a record, got %d", len(out.Records))
	}
	if len(out.Evidence) != 1 {
		t.Errorf("unresolved mention must stay in evidence, got %d rows", len(out.Evidence))
	}
}

func TestBuilder_DeterministicAcrossPermutations(t *testing.T) {
	build := func(ms []*mention.Mention) Output {
		// Fresh mention copies per build: WonField is set on evidence rows.
		copies := make([]*mention.Mention, len(ms))
		for i, src := range ms {
			c := *src
			copies[i] = &c
		}
		return NewBuilder(DefaultConfig()).Build(copies, []string{"p1", "p2", "p3"})
	}

	base := []*mention.Mention{
		pm("p1", mention.FieldERStatus, mention.StatusPositive, "Pathology", 1),
		pm("p1", mention.FieldERStatus, mention.StatusNegative, "Radiology", 2),
		pm("p1", mention.FieldHER2IHC, mention.IHC2Plus, "Pathology", 3),
		pm("p1", mention.FieldHER2FISH, mention.FISHAmplified, "Pathology", 4),
		pm("p2", mention.FieldGrade, "3", "Pathology", 5),
		pm("p2", mention.FieldHistology, mention.HistologyILC, "OncologyConsult", 6),
		pm("p3", mention.FieldKi67, "22", "Pathology", 7),
	}

	want := build(base)

	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([]*mention.Mention, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got := build(shuffled)
		if !recordsEqual(want.Records, got.Records) {
			t.Fatalf("trial %d: records differ under input permutation", trial)
		}
		if len(want.Evidence) != len(got.Evidence) {
			t.Fatalf("trial %d: evidence count differs", trial)
		}
		for i := range want.Evidence {
			if want.Evidence[i].Sequence != got.Evidence[i].Sequence {
				t.Fatalf("trial %d: evidence order differs at %d", trial, i)
			}
		}
	}
}

func TestBuilder_ParallelMatchesSequential(t *testing.T) {
	base := []*mention.Mention{
		pm("p1", mention.FieldERStatus, mention.StatusPositive, "Pathology", 1),
		pm("p2", mention.FieldPRStatus, mention.StatusNegative, "Pathology", 2),
		pm("p3", mention.FieldHER2IHC, mention.IHC3Plus, "Pathology", 3),
		pm("p4", mention.FieldGrade, "1", "Pathology", 4),
	}

	build := func(workers int) Output {
		copies := make([]*mention.Mention, len(base))
		for i, src := range base {
			c := *src
			copies[i] = &c
		}
		cfg := DefaultConfig()
		cfg.Workers = workers
		return NewBuilder(cfg).Build(copies, nil)
	}

	seq := build(0)
	par := build(8)
	if !recordsEqual(seq.Records, par.Records) {
		t.Error("parallel build must produce the sequential result")
	}
}

func TestBuilder_SyntheticCompetesForHer2Final(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	ihc := pm("p1", mention.FieldHER2IHC, mention.IHC2Plus, "Pathology", 1)
	fish := pm("p1", mention.FieldHER2FISH, mention.FISHAmplified, "Pathology", 2)

	out := b.Build([]*mention.Mention{ihc, fish}, nil)

	fr, ok := out.Records[0].Fields[mention.FieldHER2Final]
	if !ok {
		t.Fatal("expected her2_final selected from the synthetic")
	}
	if fr.Value != mention.StatusPositive {
		t.Errorf("expected Positive from amplified FISH, got %s", fr.Value)
	}
}

// recordsEqual compares record sets ignoring evidence ids, which are
// regenerated per build.
func recordsEqual(a, b []PatientRecord) bool {
	if len(a) != len(b) {
		return false
	}
	type fieldsOnly map[mention.Field]string
	strip := func(recs []PatientRecord) map[string]fieldsOnly {
		out := make(map[string]fieldsOnly, len(recs))
		for _, r := range recs {
			f := make(fieldsOnly, len(r.Fields))
			for k, v := range r.Fields {
				f[k] = v.Value + "|" + v.ConfidenceBucket
			}
			out[r.PatientID] = f
		}
		return out
	}
	return reflect.DeepEqual(strip(a), strip(b))
}
