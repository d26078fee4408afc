package quality

import (
	"context"

	"workgov/internal/domain"
)

// Thresholds fixes the degradation policy. The values are supplied at
// process start (domain stakeholders own them); they are not runtime knobs.
type Thresholds struct {
	Floor       float64 // composite score floor for the threshold trigger
	TrendWindow int     // trailing snapshots examined by the trend trigger
	MinSlope    float64 // minimum decline magnitude, points per snapshot
}

// DefaultThresholds returns the shipped degradation policy.
func DefaultThresholds() Thresholds {
	return Thresholds{Floor: 70, TrendWindow: 7, MinSlope: 0.5}
}

// minTrendPoints guards the regression against firing off one or two
// snapshots of noise.
const minTrendPoints = 3

// Detector evaluates degradation signals from quality history. Detection
// is a pure read: it never mutates the history store.
type Detector struct {
	history    domain.HistoryRepository
	thresholds Thresholds
	clock      domain.Clock
}

// NewDetector creates a Detector.
func NewDetector(history domain.HistoryRepository, thresholds Thresholds, clock domain.Clock) *Detector {
	if thresholds.TrendWindow <= 0 {
		thresholds.TrendWindow = DefaultThresholds().TrendWindow
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Detector{history: history, thresholds: thresholds, clock: clock}
}

// Detect checks both degradation triggers for a table. Either trigger
// firing raises a signal; both firing is reported as "both". Returns
// (nil, nil) when the table is healthy or has insufficient history.
func (d *Detector) Detect(ctx context.Context, tableName string) (*domain.DegradationSignal, error) {
	snaps, err := d.history.GetTrend(ctx, tableName, d.thresholds.TrendWindow)
	if err != nil {
		return nil, err
	}

	// Only non-null composites participate; null snapshots carry no score.
	var scores []float64
	for _, s := range snaps {
		if s.CompositeScore != nil {
			scores = append(scores, *s.CompositeScore)
		}
	}
	if len(scores) == 0 {
		return nil, nil
	}

	current := scores[len(scores)-1]

	var thresholdHit bool
	var prior *float64
	if len(scores) >= 2 {
		p := scores[len(scores)-2]
		if current < d.thresholds.Floor && p >= d.thresholds.Floor {
			thresholdHit = true
			prior = &p
		}
	}

	var trendHit bool
	var slope *float64
	if len(scores) >= minTrendPoints {
		m := olsSlope(scores)
		if m <= -d.thresholds.MinSlope {
			trendHit = true
			slope = &m
		}
	}

	if !thresholdHit && !trendHit {
		return nil, nil
	}

	trigger := domain.TriggerThreshold
	switch {
	case thresholdHit && trendHit:
		trigger = domain.TriggerBoth
	case trendHit:
		trigger = domain.TriggerTrend
	}

	return &domain.DegradationSignal{
		TableName:    tableName,
		Trigger:      trigger,
		CurrentScore: current,
		PriorScore:   prior,
		Slope:        slope,
		DetectedAt:   d.clock.Now(),
	}, nil
}

// olsSlope fits an ordinary least-squares line over scores indexed
// 0..n-1 and returns its slope in points per snapshot.
func olsSlope(scores []float64) float64 {
	n := float64(len(scores))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range scores {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
