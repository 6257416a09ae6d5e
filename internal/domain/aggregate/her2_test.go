package aggregate

import (
	"testing"

	"github.com/phenotype/phenotype/internal/domain/mention"
)

func TestReconciler_FISHOverridesIHC(t *testing.T) {
	r := NewReconciler(DefaultConfig())

	ihc := m(mention.FieldHER2IHC, mention.IHC2Plus, "Pathology", date("2024-02-01"), 1)
	fish := m(mention.FieldHER2FISH, mention.FISHAmplified, "Pathology", date("2024-01-01"), 2)

	syn := r.Reconcile([]*mention.Mention{ihc, fish}, 3)
	if syn == nil {
		t.Fatal("expected a reconciled mention")
	}
	if syn.Value != mention.StatusPositive {
		t.Errorf("clean amplified FISH must yield Positive, got %s", syn.Value)
	}
	if r.State() != StateReconciled {
		t.Errorf("expected reconciled state, got %s", r.State())
	}
}

func TestReconciler_IHCOnlyMapping(t *testing.T) {
	cases := map[string]string{
		mention.IHC3Plus:         mention.StatusPositive,
		mention.IHC2Plus:         mention.StatusEquivocal,
		mention.IHC1Plus:         mention.StatusNegative,
		mention.IHC0:             mention.StatusNegative,
		mention.IHCIndeterminate: mention.StatusIndeterminate,
	}
	for score, want := range cases {
		r := NewReconciler(DefaultConfig())
		ihc := m(mention.FieldHER2IHC, score, "Pathology", nil, 1)

		syn := r.Reconcile([]*mention.Mention{ihc}, 2)
		if syn == nil {
			t.Fatalf("IHC %s: expected a reconciled mention", score)
		}
		if syn.Value != want {
			t.Errorf("IHC %s: expected %s, got %s", score, want, syn.Value)
		}
	}
}

func TestReconciler_FISHMapping(t *testing.T) {
	cases := map[string]string{
		mention.FISHAmplified:    mention.StatusPositive,
		mention.FISHNotAmplified: mention.StatusNegative,
		mention.FISHEquivocal:    mention.StatusEquivocal,
	}
	for result, want := range cases {
		r := NewReconciler(DefaultConfig())
		fish := m(mention.FieldHER2FISH, result, "Pathology", nil, 1)

		syn := r.Reconcile([]*mention.Mention{fish}, 2)
		if syn == nil {
			t.Fatalf("FISH %s: expected a reconciled mention", result)
		}
		if syn.Value != want {
			t.Errorf("FISH %s: expected %s, got %s", result, want, syn.Value)
		}
	}
}

func TestReconciler_IndeterminateFISHFallsThroughToIHC(t *testing.T) {
	r := NewReconciler(DefaultConfig())

	fish := m(mention.FieldHER2FISH, mention.FISHIndeterminate, "Pathology", nil, 1)
	ihc := m(mention.FieldHER2IHC, mention.IHC3Plus, "Pathology", nil, 2)

	syn := r.Reconcile([]*mention.Mention{fish, ihc}, 3)
	if syn == nil {
		t.Fatal("expected a reconciled mention from IHC")
	}
	if syn.Value != mention.StatusPositive {
		t.Errorf("expected IHC 3+ to yield Positive, got %s", syn.Value)
	}
}

func TestReconciler_NoData(t *testing.T) {
	r := NewReconciler(DefaultConfig())

	er := m(mention.FieldERStatus, mention.StatusPositive, "Pathology", nil, 1)
	if syn := r.Reconcile([]*mention.Mention{er}, 2); syn != nil {
		t.Errorf("expected nil synthetic without HER2 evidence, got %+v", syn)
	}
	if r.State() != StateNoData {
		t.Errorf("expected no-data state, got %s", r.State())
	}
}

func TestReconciler_PrefersCleanFISH(t *testing.T) {
	r := NewReconciler(DefaultConfig())

	negatedFish := m(mention.FieldHER2FISH, mention.FISHAmplified, "Pathology", date("2024-06-01"), 1)
	negatedFish.Negated = true
	cleanFish := m(mention.FieldHER2FISH, mention.FISHNotAmplified, "Pathology", date("2023-01-01"), 2)

	syn := r.Reconcile([]*mention.Mention{negatedFish, cleanFish}, 3)
	if syn == nil {
		t.Fatal("expected a reconciled mention")
	}
	if syn.Value != mention.StatusNegative {
		t.Errorf("clean FISH must beat negated FISH, got %s", syn.Value)
	}
}

func TestReconciler_LineageAndSequence(t *testing.T) {
	r := NewReconciler(DefaultConfig())

	ihc := m(mention.FieldHER2IHC, mention.IHC2Plus, "Pathology", nil, 1)
	fish := m(mention.FieldHER2FISH, mention.FISHAmplified, "Pathology", nil, 2)

	syn := r.Reconcile([]*mention.Mention{ihc, fish}, 3)
	if syn == nil {
		t.Fatal("expected a reconciled mention")
	}
	if !syn.Reconciled {
		t.Error("synthetic must carry the reconciled flag")
	}
	if syn.Sequence != 3 {
		t.Errorf("expected sequence 3, got %d", syn.Sequence)
	}
	if len(syn.DerivedFrom) != 2 {
		t.Fatalf("expected lineage over both sub-results, got %d", len(syn.DerivedFrom))
	}
	found := map[string]bool{}
	for _, id := range syn.DerivedFrom {
		found[id.String()] = true
	}
	if !found[ihc.ID.String()] || !found[fish.ID.String()] {
		t.Error("lineage must include both the IHC and FISH mention ids")
	}
}

func TestReconciler_InvalidMentionsIgnored(t *testing.T) {
	r := NewReconciler(DefaultConfig())

	bad := m(mention.FieldHER2FISH, "", "Pathology", nil, 1)
	bad.Invalid = true
	ihc := m(mention.FieldHER2IHC, mention.IHC0, "Pathology", nil, 2)

	syn := r.Reconcile([]*mention.Mention{bad, ihc}, 3)
	if syn == nil {
		t.Fatal("expected a reconciled mention")
	}
	if syn.Value != mention.StatusNegative {
		t.Errorf("expected IHC 0 to yield Negative, got %s", syn.Value)
	}
	if len(syn.DerivedFrom) != 1 {
		t.Errorf("invalid mention must not enter lineage, got %d ids", len(syn.DerivedFrom))
	}
}
