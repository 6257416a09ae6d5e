package mention

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Canonical status values shared by ER/PR status and the HER2 final status.
const (
	StatusPositive  = "Positive"
	StatusNegative  = "Negative"
	StatusEquivocal = "Equivocal"
	StatusUnknown   = "Unknown"

	// StatusIndeterminate is the final HER2 status when the only evidence
	// is an indeterminate IHC sub-result.
	StatusIndeterminate = "Indeterminate"
)

// Canonical HER2 IHC sub-results.
const (
	IHC0             = "0"
	IHC1Plus         = "1+"
	IHC2Plus         = "2+"
	IHC3Plus         = "3+"
	IHCIndeterminate = "Indeterminate"
)

// Canonical HER2 FISH sub-results.
const (
	FISHAmplified     = "Amplified"
	FISHNotAmplified  = "NotAmplified"
	FISHEquivocal     = "Equivocal"
	FISHIndeterminate = "Indeterminate"
)

// Canonical histology values.
const (
	HistologyIDC   = "IDC"
	HistologyILC   = "ILC"
	HistologyDCIS  = "DCIS"
	HistologyMixed = "Mixed"
)

// RangeBound selects which bound a percent range collapses to.
type RangeBound string

const (
	RangeUpper RangeBound = "upper"
	RangeLower RangeBound = "lower"
)

// NormalizerConfig holds the normalization policy knobs that are asserted
// from common practice rather than fixed by the clinical vocabulary.
type NormalizerConfig struct {
	// PercentRangeBound controls how "80-90%" collapses. Upper keeps 90.
	PercentRangeBound RangeBound
}

// DefaultNormalizerConfig returns the policy used in production runs.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{PercentRangeBound: RangeUpper}
}

// Normalizer canonicalizes raw field text. It is a pure function of its
// input plus the fixed config; it keeps no cross-mention state.
type Normalizer struct {
	cfg NormalizerConfig
}

func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	if cfg.PercentRangeBound == "" {
		cfg.PercentRangeBound = RangeUpper
	}
	return &Normalizer{cfg: cfg}
}

// Result is the outcome of a successful normalization. Uncurated marks a
// value that passed through without mapping onto the controlled vocabulary.
type Result struct {
	Value     string
	Uncurated bool
}

// Normalize canonicalizes raw according to the field's vocabulary. A failed
// parse returns *NormalizationError; callers flag the mention invalid and
// keep it in evidence.
func (n *Normalizer) Normalize(field Field, raw string) (Result, error) {
	switch field {
	case FieldERPercent, FieldPRPercent, FieldKi67:
		v, err := n.normalizePercent(field, raw)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: strconv.Itoa(v)}, nil
	case FieldHER2IHC:
		return Result{Value: normalizeIHC(raw)}, nil
	case FieldHER2FISH:
		return Result{Value: normalizeFISH(raw)}, nil
	case FieldERStatus, FieldPRStatus, FieldHER2Final:
		return normalizeStatus(field, raw)
	case FieldHistology:
		return normalizeHistology(raw), nil
	case FieldGrade:
		return normalizeGrade(raw)
	case FieldStageClin, FieldStagePath:
		return normalizeStage(field, raw)
	default:
		return Result{}, &NormalizationError{Field: field, Raw: raw, Reason: "no normalizer for field"}
	}
}

var (
	rePercentLess  = regexp.MustCompile(`^<\s*(\d{1,3})\s*%?$`)
	rePercentRange = regexp.MustCompile(`^(\d{1,3})\s*(?:-|–|to)\s*(\d{1,3})\s*%?$`)
	rePercentBare  = regexp.MustCompile(`(\d{1,3})\s*%?`)
)

// normalizePercent parses percent literals into a bounded integer.
// "<1%" collapses to 0, ranges collapse to the configured bound, and
// out-of-range values are rejected rather than clamped.
func (n *Normalizer) normalizePercent(field Field, raw string) (int, error) {
	t := strings.TrimSpace(strings.ToLower(raw))
	if t == "" {
		return 0, &NormalizationError{Field: field, Raw: raw, Reason: "empty value"}
	}

	if m := rePercentLess.FindStringSubmatch(t); m != nil {
		v, _ := strconv.Atoi(m[1])
		if v > 100 {
			return 0, &NormalizationError{Field: field, Raw: raw, Reason: "percent out of range"}
		}
		if v > 0 {
			v--
		}
		return v, nil
	}

	if m := rePercentRange.FindStringSubmatch(t); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		if hi > 100 {
			return 0, &NormalizationError{Field: field, Raw: raw, Reason: "percent out of range"}
		}
		if n.cfg.PercentRangeBound == RangeLower {
			return lo, nil
		}
		return hi, nil
	}

	m := rePercentBare.FindStringSubmatch(t)
	if m == nil {
		return 0, &NormalizationError{Field: field, Raw: raw, Reason: "no numeric literal"}
	}
	v, _ := strconv.Atoi(m[1])
	if v > 100 {
		return 0, &NormalizationError{Field: field, Raw: raw, Reason: "percent out of range"}
	}
	return v, nil
}

// ihcScores maps compacted score expressions onto the closed IHC set.
var ihcScores = map[string]string{
	"0": IHC0, "0+": IHC0,
	"1": IHC1Plus, "1+": IHC1Plus,
	"0/1+": IHC1Plus, "0-1+": IHC1Plus, "0-1": IHC1Plus,
	"2": IHC2Plus, "2+": IHC2Plus,
	"3": IHC3Plus, "3+": IHC3Plus,
}

// normalizeIHC maps free-text IHC score expressions to {0,1+,2+,3+};
// anything else is Indeterminate, never an error.
func normalizeIHC(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "score")
	s = strings.TrimPrefix(s, "ihc")
	// "3 +" -> "3+"
	s = strings.Join(strings.Fields(s), "")
	if v, ok := ihcScores[s]; ok {
		return v
	}
	return IHCIndeterminate
}

func normalizeFISH(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return FISHIndeterminate
	case strings.Contains(s, "not ampl"), strings.Contains(s, "nonampl"),
		strings.Contains(s, "non-ampl"), strings.Contains(s, "no ampl"):
		return FISHNotAmplified
	case strings.Contains(s, "ampl"):
		return FISHAmplified
	case strings.Contains(s, "equivocal"), strings.Contains(s, "borderline"):
		return FISHEquivocal
	case strings.Contains(s, "neg"):
		return FISHNotAmplified
	case strings.Contains(s, "pos"):
		return FISHAmplified
	default:
		return FISHIndeterminate
	}
}

// statusSynonyms is the curated table for status-like values.
var statusSynonyms = map[string]string{
	"positive": StatusPositive, "pos": StatusPositive, "+": StatusPositive,
	"yes": StatusPositive, "detected": StatusPositive,
	"negative": StatusNegative, "neg": StatusNegative, "-": StatusNegative,
	"no": StatusNegative, "not detected": StatusNegative,
	"equivocal": StatusEquivocal, "borderline": StatusEquivocal,
	"indeterminate": StatusEquivocal,
	"unknown":       StatusUnknown, "pending": StatusUnknown,
	"n/a": StatusUnknown, "na": StatusUnknown,
}

func normalizeStatus(field Field, raw string) (Result, error) {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" {
		return Result{}, &NormalizationError{Field: field, Raw: raw, Reason: "empty value"}
	}
	if v, ok := statusSynonyms[t]; ok {
		return Result{Value: v}, nil
	}
	// tokens like "er+" or "pr-"
	if strings.HasSuffix(t, "+") {
		return Result{Value: StatusPositive}, nil
	}
	if strings.HasSuffix(t, "-") {
		return Result{Value: StatusNegative}, nil
	}
	return Result{}, &NormalizationError{Field: field, Raw: raw, Reason: "not a recognized status"}
}

// normalizeHistology maps through the curated synonym table. Unmapped text
// passes through unchanged but is flagged uncurated so downstream consumers
// can distinguish controlled from free-text values.
func normalizeHistology(raw string) Result {
	t := strings.ToLower(raw)

	hasIDC := strings.Contains(t, "invasive ductal") || strings.Contains(t, "idc")
	hasILC := strings.Contains(t, "invasive lobular") || strings.Contains(t, "ilc")

	switch {
	case hasIDC && hasILC:
		return Result{Value: HistologyMixed}
	case strings.Contains(t, "dcis"), strings.Contains(t, "ductal carcinoma in situ"):
		return Result{Value: HistologyDCIS}
	case hasIDC:
		return Result{Value: HistologyIDC}
	case hasILC:
		return Result{Value: HistologyILC}
	}
	return Result{Value: strings.TrimSpace(raw), Uncurated: true}
}

var reGrade = regexp.MustCompile(`\bgrade\s*[:\-]?\s*([1-3])\b`)

func normalizeGrade(raw string) (Result, error) {
	t := strings.ToLower(strings.TrimSpace(raw))
	if m := reGrade.FindStringSubmatch(t); m != nil {
		return Result{Value: m[1]}, nil
	}
	if t == "1" || t == "2" || t == "3" {
		return Result{Value: t}, nil
	}
	return Result{}, &NormalizationError{Field: FieldGrade, Raw: raw, Reason: "not a histologic grade"}
}

var reStage = regexp.MustCompile(`\b(?:stage\s*)?([ivx]+)\s*([abc])?\b`)

var validRomanStages = map[string]bool{"I": true, "II": true, "III": true, "IV": true}

func normalizeStage(field Field, raw string) (Result, error) {
	t := strings.ToLower(strings.TrimSpace(raw))
	m := reStage.FindStringSubmatch(t)
	if m == nil {
		return Result{}, &NormalizationError{Field: field, Raw: raw, Reason: "no stage group"}
	}
	roman := strings.ToUpper(m[1])
	if !validRomanStages[roman] {
		return Result{}, &NormalizationError{Field: field, Raw: raw, Reason: fmt.Sprintf("invalid stage group %q", roman)}
	}
	return Result{Value: roman + strings.ToUpper(m[2])}, nil
}
