package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Dimension is one of the nine data-quality dimensions.
type Dimension string

const (
	DimCompleteness     Dimension = "completeness"
	DimAccuracy         Dimension = "accuracy"
	DimCoherence        Dimension = "coherence"
	DimConsistency      Dimension = "consistency"
	DimInterpretability Dimension = "interpretability"
	DimRelevance        Dimension = "relevance"
	DimReliability      Dimension = "reliability"
	DimTimeliness       Dimension = "timeliness"
	DimAccess           Dimension = "access"
)

// Dimensions lists all nine dimensions in canonical order.
var Dimensions = []Dimension{
	DimCompleteness, DimAccuracy, DimCoherence, DimConsistency,
	DimInterpretability, DimRelevance, DimReliability, DimTimeliness,
	DimAccess,
}

// WeightSet holds the fixed per-dimension weights used by the aggregator.
// The set is immutable at runtime: it is built once at process start and
// passed explicitly so tests can inject alternatives.
type WeightSet map[Dimension]float64

// DefaultWeights returns the GC-aligned weight table. Values sum to 1.
func DefaultWeights() WeightSet {
	return WeightSet{
		DimCompleteness:     0.15,
		DimAccuracy:         0.15,
		DimCoherence:        0.15,
		DimConsistency:      0.10,
		DimInterpretability: 0.10,
		DimRelevance:        0.05,
		DimReliability:      0.10,
		DimTimeliness:       0.10,
		DimAccess:           0.10,
	}
}

// Validate checks the weight set covers all nine dimensions and sums to 1.
func (w WeightSet) Validate() error {
	var sum float64
	for _, d := range Dimensions {
		v, ok := w[d]
		if !ok {
			return ErrValidation("weight set missing dimension %q", d)
		}
		if v < 0 {
			return ErrValidation("weight for %q is negative", d)
		}
		sum += v
	}
	if sum < 0.999 || sum > 1.001 {
		return ErrValidation("weights sum to %.4f, want 1", sum)
	}
	return nil
}

// === Check results ===

// CheckResult is one diagnostic finding attached to a DimensionScore.
// The set of variants is closed: each dimension produces a known shape.
type CheckResult interface {
	Kind() string
	checkResult()
}

// NullRateCheck reports the null rate of one required column.
type NullRateCheck struct {
	Column    string  `json:"column"`
	NullCount int64   `json:"null_count"`
	Rate      float64 `json:"rate"`
}

// RuleCheck reports how many values passed a column validation rule.
type RuleCheck struct {
	Column       string `json:"column"`
	RuleKind     string `json:"rule_kind"` // "pattern", "enum", "range"
	CheckedCount int64  `json:"checked_count"`
	ValidCount   int64  `json:"valid_count"`
}

// ForeignKeyCheck reports orphaned references for one foreign key.
type ForeignKeyCheck struct {
	SourceColumn string         `json:"source_column"`
	TargetTable  string         `json:"target_table"`
	Mode         ValidationMode `json:"mode"`
	OrphanCount  int64          `json:"orphan_count"`
	OrphanRate   float64        `json:"orphan_rate"`
}

// DuplicateKeyCheck reports duplicate rows on a declared business key.
type DuplicateKeyCheck struct {
	Key            []string `json:"key"`
	DuplicateCount int64    `json:"duplicate_count"`
	Rate           float64  `json:"rate"`
}

// FreshnessCheck reports table age against its refresh SLA.
type FreshnessCheck struct {
	AgeDays      float64 `json:"age_days"`
	IntervalDays int     `json:"interval_days"`
}

// CoverageCheck reports a described/attributed count over a total.
type CoverageCheck struct {
	Name    string `json:"name"` // e.g. "described_columns", "source_attribution"
	Covered int64  `json:"covered"`
	Total   int64  `json:"total"`
}

// PresenceCheck reports a binary presence/absence finding.
type PresenceCheck struct {
	Name    string `json:"name"` // e.g. "business_purpose", "registered"
	Present bool   `json:"present"`
}

// NoteCheck carries a free-form diagnostic note (e.g. why a table could
// not be read).
type NoteCheck struct {
	Note string `json:"note"`
}

func (NullRateCheck) Kind() string     { return "null_rate" }
func (RuleCheck) Kind() string         { return "rule" }
func (ForeignKeyCheck) Kind() string   { return "foreign_key" }
func (DuplicateKeyCheck) Kind() string { return "duplicate_key" }
func (FreshnessCheck) Kind() string    { return "freshness" }
func (CoverageCheck) Kind() string     { return "coverage" }
func (PresenceCheck) Kind() string     { return "presence" }
func (NoteCheck) Kind() string         { return "note" }

func (NullRateCheck) checkResult()     {}
func (RuleCheck) checkResult()         {}
func (ForeignKeyCheck) checkResult()   {}
func (DuplicateKeyCheck) checkResult() {}
func (FreshnessCheck) checkResult()    {}
func (CoverageCheck) checkResult()     {}
func (PresenceCheck) checkResult()     {}
func (NoteCheck) checkResult()         {}

// CheckResults is a serializable list of check results. JSON encoding uses
// a {kind, data} envelope so the closed variant set survives persistence.
type CheckResults []CheckResult

type checkEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON encodes each result with its kind tag.
func (c CheckResults) MarshalJSON() ([]byte, error) {
	envs := make([]checkEnvelope, len(c))
	for i, r := range c {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		envs[i] = checkEnvelope{Kind: r.Kind(), Data: data}
	}
	return json.Marshal(envs)
}

// UnmarshalJSON decodes the kind-tagged envelopes back into variants.
func (c *CheckResults) UnmarshalJSON(b []byte) error {
	var envs []checkEnvelope
	if err := json.Unmarshal(b, &envs); err != nil {
		return err
	}
	out := make(CheckResults, 0, len(envs))
	for _, env := range envs {
		var r CheckResult
		switch env.Kind {
		case "null_rate":
			r = &NullRateCheck{}
		case "rule":
			r = &RuleCheck{}
		case "foreign_key":
			r = &ForeignKeyCheck{}
		case "duplicate_key":
			r = &DuplicateKeyCheck{}
		case "freshness":
			r = &FreshnessCheck{}
		case "coverage":
			r = &CoverageCheck{}
		case "presence":
			r = &PresenceCheck{}
		case "note":
			r = &NoteCheck{}
		default:
			return fmt.Errorf("unknown check result kind %q", env.Kind)
		}
		if err := json.Unmarshal(env.Data, r); err != nil {
			return err
		}
		out = append(out, deref(r))
	}
	*c = out
	return nil
}

func deref(r CheckResult) CheckResult {
	switch v := r.(type) {
	case *NullRateCheck:
		return *v
	case *RuleCheck:
		return *v
	case *ForeignKeyCheck:
		return *v
	case *DuplicateKeyCheck:
		return *v
	case *FreshnessCheck:
		return *v
	case *CoverageCheck:
		return *v
	case *PresenceCheck:
		return *v
	case *NoteCheck:
		return *v
	default:
		return r
	}
}

// === Scores ===

// DimensionScore is one dimension's measurement for one table. Immutable
// once written: a re-measurement creates a new record.
//
// Score is nil when the dimension had zero applicable checks (SampleSize 0).
// The aggregator excludes nil dimensions from the composite rather than
// treating them as zero.
type DimensionScore struct {
	TableName  string       `json:"table_name"`
	Dimension  Dimension    `json:"dimension"`
	Score      *float64     `json:"score"` // in [0,100], nil when not computable
	SampleSize int64        `json:"sample_size"`
	MeasuredAt time.Time    `json:"measured_at"`
	Detail     CheckResults `json:"detail,omitempty"`
}

// QualitySnapshot is the composite quality record for one table at one
// point in time. Append-only: a table accumulates snapshots ordered by
// MeasuredAt and prior snapshots are never mutated.
type QualitySnapshot struct {
	ID               string           `json:"id"`
	TableName        string           `json:"table_name"`
	CompositeScore   *float64         `json:"composite_score"` // nil when insufficient data
	InsufficientData bool             `json:"insufficient_data"`
	Note             string           `json:"note,omitempty"`
	DimensionScores  []DimensionScore `json:"dimension_scores"`
	MeasuredAt       time.Time        `json:"measured_at"`
}

// DimensionScoreFor returns the snapshot's score for one dimension, or nil.
func (s *QualitySnapshot) DimensionScoreFor(d Dimension) *DimensionScore {
	for i := range s.DimensionScores {
		if s.DimensionScores[i].Dimension == d {
			return &s.DimensionScores[i]
		}
	}
	return nil
}

// === Degradation ===

// DegradationTrigger identifies which detector fired.
type DegradationTrigger string

const (
	TriggerThreshold DegradationTrigger = "threshold"
	TriggerTrend     DegradationTrigger = "trend"
	TriggerBoth      DegradationTrigger = "both"
)

// DegradationSignal is a read-side finding that a table's quality is
// declining. It never mutates history.
type DegradationSignal struct {
	TableName    string             `json:"table_name"`
	Trigger      DegradationTrigger `json:"trigger"`
	CurrentScore float64            `json:"current_score"`
	PriorScore   *float64           `json:"prior_score,omitempty"` // threshold trigger
	Slope        *float64           `json:"slope,omitempty"`       // trend trigger, points per snapshot
	DetectedAt   time.Time          `json:"detected_at"`
}
