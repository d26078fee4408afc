// Package quality implements the nine-dimension data quality scoring engine.
package quality

import (
	"context"
	"fmt"

	"workgov/internal/domain"
)

// timelinessDecayFactor fixes where the Timeliness score reaches zero:
// a table is worth 100 inside its expected refresh interval, then decays
// linearly and hits 0 at decayFactor times the interval.
const timelinessDecayFactor = 3

// AttributionResolver reports whether a table traces upstream to a source
// node in the lineage graph, and whether that source carries a resolvable
// URL. Used by the Reliability calculator.
type AttributionResolver interface {
	SourceAttributed(tableName string) (hasSource, hasURL bool)
}

// Calculator computes one DimensionScore at a time from a table descriptor
// and the metrics engine. Calculators are pure with respect to history:
// identical table state yields identical scores.
type Calculator struct {
	metrics     domain.TableMetrics
	attribution AttributionResolver // nil disables lineage-backed checks
	clock       domain.Clock
}

// NewCalculator creates a Calculator.
func NewCalculator(metrics domain.TableMetrics, attribution AttributionResolver, clock domain.Clock) *Calculator {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Calculator{metrics: metrics, attribution: attribution, clock: clock}
}

// Compute measures one dimension for one table.
//
// A dimension with zero applicable checks reports a nil score and
// SampleSize 0; the aggregator excludes it from the composite. An
// unreadable table returns a DataUnavailableError, which the runner turns
// into a null snapshot without stopping the batch.
func (c *Calculator) Compute(ctx context.Context, dim domain.Dimension, desc *domain.TableDescriptor) (domain.DimensionScore, error) {
	score := domain.DimensionScore{
		TableName:  desc.TableName,
		Dimension:  dim,
		MeasuredAt: c.clock.Now(),
	}

	var err error
	switch dim {
	case domain.DimCompleteness:
		err = c.completeness(ctx, desc, &score)
	case domain.DimAccuracy:
		err = c.accuracy(ctx, desc, &score)
	case domain.DimCoherence:
		err = c.coherence(ctx, desc, &score)
	case domain.DimConsistency:
		err = c.consistency(ctx, desc, &score)
	case domain.DimTimeliness:
		c.timeliness(desc, &score)
	case domain.DimInterpretability:
		c.interpretability(desc, &score)
	case domain.DimRelevance:
		c.relevance(desc, &score)
	case domain.DimReliability:
		c.reliability(desc, &score)
	case domain.DimAccess:
		err = c.access(ctx, desc, &score)
	default:
		return score, domain.ErrValidation("unknown dimension %q", dim)
	}
	if err != nil {
		return score, err
	}
	return score, nil
}

// completeness scores the null rate of required columns. Optional columns
// are Interpretability's concern, not Completeness'; scoring them here
// would double-penalize optional fields.
func (c *Calculator) completeness(ctx context.Context, desc *domain.TableDescriptor, out *domain.DimensionScore) error {
	required := desc.RequiredColumns()
	if len(required) == 0 {
		return nil // nothing required: dimension not applicable
	}

	total, err := c.metrics.RowCount(ctx, desc.TableName)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	var sum float64
	for _, col := range required {
		nulls, err := c.metrics.NullCount(ctx, desc.TableName, col.Name)
		if err != nil {
			return err
		}
		rate := float64(nulls) / float64(total)
		sum += 100 * (1 - rate)
		out.Detail = append(out.Detail, domain.NullRateCheck{
			Column: col.Name, NullCount: nulls, Rate: rate,
		})
	}

	mean := sum / float64(len(required))
	out.Score = &mean
	out.SampleSize = total
	return nil
}

// accuracy scores validation-rule pass rates. Columns without a rule are
// excluded from the denominator entirely: defaulting them to 100 would
// manufacture false confidence.
func (c *Calculator) accuracy(ctx context.Context, desc *domain.TableDescriptor, out *domain.DimensionScore) error {
	var checkedTotal, validTotal int64
	for _, col := range desc.Columns {
		if !col.Rule.Defined() {
			continue
		}
		checked, valid, err := c.metrics.RuleCounts(ctx, desc.TableName, col.Name, col.Rule)
		if err != nil {
			return err
		}
		out.Detail = append(out.Detail, domain.RuleCheck{
			Column:       col.Name,
			RuleKind:     ruleKind(col.Rule),
			CheckedCount: checked,
			ValidCount:   valid,
		})
		checkedTotal += checked
		validTotal += valid
	}
	if checkedTotal == 0 {
		return nil // no rules defined, or no non-null values to check
	}

	s := 100 * float64(validTotal) / float64(checkedTotal)
	out.Score = &s
	out.SampleSize = checkedTotal
	return nil
}

// coherence scores foreign-key resolution. Orphan rates are measured over
// distinct referencing values. Soft FK orphans count fully: surfacing
// them is this dimension's entire purpose even though they never block
// ingestion.
func (c *Calculator) coherence(ctx context.Context, desc *domain.TableDescriptor, out *domain.DimensionScore) error {
	if len(desc.ForeignKeys) == 0 {
		return nil
	}

	var rateSum float64
	var applicable int
	for _, fk := range desc.ForeignKeys {
		distinct, err := c.metrics.DistinctCount(ctx, fk.SourceTable, fk.SourceColumn)
		if err != nil {
			return err
		}
		orphans, err := c.metrics.OrphanCount(ctx, fk)
		if err != nil {
			return err
		}

		var rate float64
		if distinct > 0 {
			rate = float64(orphans) / float64(distinct)
		}
		rateSum += rate
		applicable++
		out.SampleSize += distinct
		out.Detail = append(out.Detail, domain.ForeignKeyCheck{
			SourceColumn: fk.SourceColumn,
			TargetTable:  fk.TargetTable,
			Mode:         fk.ValidationMode,
			OrphanCount:  orphans,
			OrphanRate:   rate,
		})
	}

	s := 100 * (1 - rateSum/float64(applicable))
	out.Score = &s
	return nil
}

// consistency scores duplicate rows on declared business keys.
func (c *Calculator) consistency(ctx context.Context, desc *domain.TableDescriptor, out *domain.DimensionScore) error {
	if len(desc.UniqueKeys) == 0 {
		return nil
	}

	total, err := c.metrics.RowCount(ctx, desc.TableName)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	var rateSum float64
	for _, key := range desc.UniqueKeys {
		dups, err := c.metrics.DuplicateCount(ctx, desc.TableName, key)
		if err != nil {
			return err
		}
		rate := float64(dups) / float64(total)
		rateSum += rate
		out.Detail = append(out.Detail, domain.DuplicateKeyCheck{
			Key: key, DuplicateCount: dups, Rate: rate,
		})
	}

	s := 100 * (1 - rateSum/float64(len(desc.UniqueKeys)))
	out.Score = &s
	out.SampleSize = total
	return nil
}

// timeliness scores table age against the expected refresh interval:
// 100 inside the interval, linear decay to 0 at 3x the interval.
func (c *Calculator) timeliness(desc *domain.TableDescriptor, out *domain.DimensionScore) {
	interval := desc.Governance.RefreshIntervalDays
	if interval <= 0 || desc.LastRefreshedAt.IsZero() {
		return // no SLA declared: dimension not applicable
	}

	ageDays := c.clock.Now().Sub(desc.LastRefreshedAt).Hours() / 24
	out.Detail = append(out.Detail, domain.FreshnessCheck{
		AgeDays: ageDays, IntervalDays: interval,
	})
	out.SampleSize = 1

	var s float64
	limit := float64(interval)
	switch {
	case ageDays <= limit:
		s = 100
	case ageDays >= timelinessDecayFactor*limit:
		s = 0
	default:
		s = 100 * (timelinessDecayFactor*limit - ageDays) / ((timelinessDecayFactor - 1) * limit)
	}
	out.Score = &s
}

// interpretability scores the fraction of columns carrying a description.
func (c *Calculator) interpretability(desc *domain.TableDescriptor, out *domain.DimensionScore) {
	total := int64(len(desc.Columns))
	if total == 0 {
		return
	}

	var described int64
	for _, col := range desc.Columns {
		if col.Description != "" {
			described++
		}
	}

	s := 100 * float64(described) / float64(total)
	out.Score = &s
	out.SampleSize = total
	out.Detail = append(out.Detail, domain.CoverageCheck{
		Name: "described_columns", Covered: described, Total: total,
	})
}

// relevance is a binary presence signal: a business purpose and at least
// one business question.
func (c *Calculator) relevance(desc *domain.TableDescriptor, out *domain.DimensionScore) {
	hasPurpose := desc.BusinessPurpose != ""
	hasQuestion := len(desc.Governance.BusinessQuestions) > 0

	var s float64
	if hasPurpose && hasQuestion {
		s = 100
	}
	out.Score = &s
	out.SampleSize = 2
	out.Detail = append(out.Detail,
		domain.PresenceCheck{Name: "business_purpose", Present: hasPurpose},
		domain.PresenceCheck{Name: "business_question", Present: hasQuestion},
	)
}

// reliability scores source attribution: governance metadata naming the
// source, plus a lineage trace reaching a source node with a resolvable
// URL. Without an attribution resolver only the metadata half is scored.
func (c *Calculator) reliability(desc *domain.TableDescriptor, out *domain.DimensionScore) {
	var covered, total int64

	total++
	hasMeta := desc.Governance.SourceAttribution != ""
	if hasMeta {
		covered++
	}
	out.Detail = append(out.Detail, domain.PresenceCheck{
		Name: "source_attribution", Present: hasMeta,
	})

	if c.attribution != nil {
		hasSource, hasURL := c.attribution.SourceAttributed(desc.TableName)
		total += 2
		if hasSource {
			covered++
		}
		if hasURL {
			covered++
		}
		out.Detail = append(out.Detail,
			domain.PresenceCheck{Name: "lineage_source", Present: hasSource},
			domain.PresenceCheck{Name: "lineage_source_url", Present: hasURL},
		)
	}

	s := 100 * float64(covered) / float64(total)
	out.Score = &s
	out.SampleSize = total
}

// access is a structural check: the table is registered in the catalog
// and its data is actually queryable.
func (c *Calculator) access(ctx context.Context, desc *domain.TableDescriptor, out *domain.DimensionScore) error {
	queryable := true
	if _, err := c.metrics.RowCount(ctx, desc.TableName); err != nil {
		queryable = false
	}

	var s float64
	if desc.Registered && queryable {
		s = 100
	}
	out.Score = &s
	out.SampleSize = 2
	out.Detail = append(out.Detail,
		domain.PresenceCheck{Name: "registered", Present: desc.Registered},
		domain.PresenceCheck{Name: "queryable", Present: queryable},
	)
	return nil
}

func ruleKind(rule *domain.ValidationRule) string {
	switch {
	case rule == nil:
		return ""
	case rule.Pattern != "":
		return "pattern"
	case len(rule.AllowedValues) > 0:
		return "enum"
	default:
		return "range"
	}
}

// ComputeAll measures all nine dimensions for a table in canonical order.
func (c *Calculator) ComputeAll(ctx context.Context, desc *domain.TableDescriptor) ([]domain.DimensionScore, error) {
	scores := make([]domain.DimensionScore, 0, len(domain.Dimensions))
	for _, dim := range domain.Dimensions {
		s, err := c.Compute(ctx, dim, desc)
		if err != nil {
			return nil, fmt.Errorf("compute %s for %s: %w", dim, desc.TableName, err)
		}
		scores = append(scores, s)
	}
	return scores, nil
}
