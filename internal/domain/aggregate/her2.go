package aggregate

import (
	"github.com/google/uuid"

	"github.com/phenotype/phenotype/internal/domain/mention"
)

// ReconcilerState tracks the HER2 state machine for one patient.
type ReconcilerState int

const (
	StateNoData ReconcilerState = iota
	StateIHCOnly
	StateFISHAvailable
	StateReconciled
)

func (s ReconcilerState) String() string {
	switch s {
	case StateIHCOnly:
		return "ihc-only"
	case StateFISHAvailable:
		return "fish-available"
	case StateReconciled:
		return "reconciled"
	default:
		return "no-data"
	}
}

// fishStatus maps a usable FISH sub-result onto a final status. An
// Indeterminate FISH result is not usable and falls through to IHC.
var fishStatus = map[string]string{
	mention.FISHAmplified:    mention.StatusPositive,
	mention.FISHNotAmplified: mention.StatusNegative,
	mention.FISHEquivocal:    mention.StatusEquivocal,
}

// ihcStatus maps an IHC score onto a final status.
var ihcStatus = map[string]string{
	mention.IHC3Plus:         mention.StatusPositive,
	mention.IHC2Plus:         mention.StatusEquivocal,
	mention.IHC1Plus:         mention.StatusNegative,
	mention.IHC0:             mention.StatusNegative,
	mention.IHCIndeterminate: mention.StatusIndeterminate,
}

// Reconciler combines a patient's IHC and FISH mentions into a single
// synthetic her2_final mention. FISH overrides IHC unconditionally: this is
// the documented precedence, not a tie needing further breaking.
type Reconciler struct {
	resolver *Resolver
	state    ReconcilerState
}

func NewReconciler(cfg Config) *Reconciler {
	return &Reconciler{resolver: NewResolver(cfg)}
}

// State returns the state reached by the last Reconcile call.
func (r *Reconciler) State() ReconcilerState {
	return r.state
}

// Reconcile evaluates one patient's post-normalization mentions and returns
// the synthetic her2_final mention, or nil when neither sub-result exists.
// seq is the sequence assigned to the synthetic mention; it must be greater
// than every input sequence so the synthetic sorts last on ingestion-order
// ties.
func (r *Reconciler) Reconcile(patientMentions []*mention.Mention, seq int64) *mention.Mention {
	var ihc, fish []*mention.Mention
	var lineage []uuid.UUID
	for _, m := range patientMentions {
		if !m.Aggregatable() {
			continue
		}
		switch m.Field {
		case mention.FieldHER2IHC:
			ihc = append(ihc, m)
			lineage = append(lineage, m.ID)
		case mention.FieldHER2FISH:
			fish = append(fish, m)
			lineage = append(lineage, m.ID)
		}
	}

	r.state = StateNoData
	if len(ihc) > 0 {
		r.state = StateIHCOnly
	}
	if len(fish) > 0 {
		r.state = StateFISHAvailable
	}

	// Rule 1: any usable FISH result wins, preferring clean evidence.
	if src := r.bestUsable(fish, fishStatus); src != nil {
		r.state = StateReconciled
		return synthetic(src, fishStatus[src.Value], lineage, seq)
	}

	// Rule 2: best IHC mention determines status.
	if src := r.bestUsable(ihc, ihcStatus); src != nil {
		r.state = StateReconciled
		return synthetic(src, ihcStatus[src.Value], lineage, seq)
	}

	// Rule 3: neither exists; her2_final stays absent.
	return nil
}

// bestUsable picks the best mention whose value maps through vocab,
// preferring clean mentions and falling back to any usable one. The
// resolver supplies the order in both passes.
func (r *Reconciler) bestUsable(candidates []*mention.Mention, vocab map[string]string) *mention.Mention {
	var clean, any []*mention.Mention
	for _, m := range candidates {
		if _, ok := vocab[m.Value]; !ok {
			continue
		}
		if m.Field == mention.FieldHER2FISH && m.Value == mention.FISHIndeterminate {
			continue
		}
		any = append(any, m)
		if m.Clean() {
			clean = append(clean, m)
		}
	}
	if len(clean) > 0 {
		return r.resolver.Best(clean)
	}
	return r.resolver.Best(any)
}

// synthetic builds the reconciled mention. It inherits the precedence
// attributes of its primary source so it competes naturally in her2_final
// aggregation, and carries the union of its inputs as lineage.
func synthetic(src *mention.Mention, status string, lineage []uuid.UUID, seq int64) *mention.Mention {
	return &mention.Mention{
		ID:          uuid.New(),
		Field:       mention.FieldHER2Final,
		RawText:     src.RawText,
		Value:       status,
		NoteID:      src.NoteID,
		PatientID:   src.PatientID,
		NoteType:    src.NoteType,
		NoteDate:    src.NoteDate,
		Negated:     src.Negated,
		Uncertain:   src.Uncertain,
		Confidence:  src.Confidence,
		Sequence:    seq,
		Reconciled:  true,
		DerivedFrom: lineage,
	}
}
