package mention

import (
	"errors"
	"testing"
)

func TestParseField_Canonical(t *testing.T) {
	f, err := ParseField("her2_ihc")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if f != FieldHER2IHC {
		t.Errorf("expected her2_ihc, got %s", f)
	}
}

func TestParseField_LegacyAliases(t *testing.T) {
	cases := map[string]Field{
		"her2_ihc_score":   FieldHER2IHC,
		"her2_status":      FieldHER2Final,
		"ki67":             FieldKi67,
		"stage_clin":       FieldStageClin,
		"stage_pathologic": FieldStagePath,
	}
	for hint, want := range cases {
		f, err := ParseField(hint)
		if err != nil {
			t.Fatalf("%q: expected success, got %v", hint, err)
		}
		if f != want {
			t.Errorf("%q: expected %s, got %s", hint, want, f)
		}
	}
}

func TestParseField_Unknown(t *testing.T) {
	_, err := ParseField("tumor_size")
	if err == nil {
		t.Fatal("expected error for unknown hint")
	}
	var uerr *UnknownFieldError
	if !errors.As(err, &uerr) {
		t.Errorf("expected UnknownFieldError, got %T", err)
	}
}

func TestMention_Clean(t *testing.T) {
	m := &Mention{}
	if !m.Clean() {
		t.Error("unflagged mention should be clean")
	}

	for _, m := range []*Mention{
		{Negated: true},
		{Uncertain: true},
		{Invalid: true},
	} {
		if m.Clean() {
			t.Errorf("flagged mention %+v should not be clean", m)
		}
	}
}

func TestMention_Aggregatable(t *testing.T) {
	m := &Mention{Field: FieldERStatus, Negated: true}
	if !m.Aggregatable() {
		t.Error("negated mentions stay aggregatable, only invalid ones are excluded")
	}

	if (&Mention{Field: FieldERStatus, Invalid: true}).Aggregatable() {
		t.Error("invalid mention must not be aggregatable")
	}
	if (&Mention{Field: FieldUnknown}).Aggregatable() {
		t.Error("unknown-field mention must not be aggregatable")
	}
}

func TestTrackedFields_StableOrder(t *testing.T) {
	a, b := TrackedFields(), TrackedFields()
	if len(a) != 12 {
		t.Fatalf("expected 12 tracked fields, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("order differs at %d: %s vs %s", i, a[i], b[i])
		}
	}
}
