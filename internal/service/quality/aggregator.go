package quality

import (
	"github.com/google/uuid"

	"workgov/internal/domain"
)

// Aggregator combines per-dimension scores into a composite snapshot using
// a fixed weight table. Weights are injected once at construction; they are
// not runtime-configurable at the product level.
type Aggregator struct {
	weights domain.WeightSet
	clock   domain.Clock
}

// NewAggregator creates an Aggregator. The weight set must cover all nine
// dimensions and sum to 1.
func NewAggregator(weights domain.WeightSet, clock domain.Clock) (*Aggregator, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Aggregator{weights: weights, clock: clock}, nil
}

// Aggregate builds one QualitySnapshot from a table's dimension scores.
//
// Null dimensions are excluded and their weight is redistributed
// proportionally over the scoreable subset, so the effective weights
// always sum to 1. When every dimension is null the composite is null and
// the snapshot is flagged insufficient_data.
func (a *Aggregator) Aggregate(tableName string, scores []domain.DimensionScore) *domain.QualitySnapshot {
	snapshot := &domain.QualitySnapshot{
		ID:              uuid.NewString(),
		TableName:       tableName,
		DimensionScores: scores,
		MeasuredAt:      a.clock.Now(),
	}

	var weightSum, weighted float64
	for _, s := range scores {
		if s.Score == nil {
			continue
		}
		w := a.weights[s.Dimension]
		weightSum += w
		weighted += w * *s.Score
	}

	if weightSum == 0 {
		snapshot.InsufficientData = true
		return snapshot
	}

	composite := weighted / weightSum
	snapshot.CompositeScore = &composite
	return snapshot
}
