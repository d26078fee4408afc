// Package compliance generates governance audit reports. Audits are
// informational and never gate a pipeline: every run produces a complete
// entry set even under partial data.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"workgov/internal/domain"
)

// defaultScoreFloor is the composite score a table must hold to pass the
// DQMF delegation check. Matches the degradation floor.
const defaultScoreFloor = 70

// damaKnowledgeAreas maps the eleven DMBOK knowledge areas to audit check
// names, in report order.
var damaKnowledgeAreas = []string{
	"data_governance",
	"data_architecture",
	"data_modeling_design",
	"data_storage_operations",
	"data_security",
	"data_integration_interoperability",
	"documents_content",
	"reference_master_data",
	"data_warehousing_bi",
	"metadata",
	"data_quality",
}

// LineageInspector is the slice of the lineage service an audit needs.
type LineageInspector interface {
	SourceAttributed(tableName string) (hasSource, hasURL bool)
	TableNodeID(tableName string) (id string, ok bool)
}

// Auditor runs framework checklists against the catalog, quality history,
// and lineage graph, and appends the results to the audit log.
type Auditor struct {
	catalog    domain.CatalogReader
	history    domain.HistoryRepository
	lineage    LineageInspector
	repo       domain.ComplianceRepository
	clock      domain.Clock
	logger     *slog.Logger
	scoreFloor float64
}

// NewAuditor creates an Auditor. scoreFloor at or below 0 selects the
// default DQMF floor.
func NewAuditor(catalog domain.CatalogReader, history domain.HistoryRepository,
	lineage LineageInspector, repo domain.ComplianceRepository,
	clock domain.Clock, logger *slog.Logger, scoreFloor float64) *Auditor {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if scoreFloor <= 0 {
		scoreFloor = defaultScoreFloor
	}
	return &Auditor{
		catalog: catalog, history: history, lineage: lineage, repo: repo,
		clock: clock, logger: logger, scoreFloor: scoreFloor,
	}
}

// RunAudit executes one framework's checklist over the full catalog and
// persists the entries under a fresh run ID. Checks that cannot evaluate
// record not_applicable with a note; only structural failures (catalog or
// store unreachable) return an error.
func (a *Auditor) RunAudit(ctx context.Context, framework domain.Framework) ([]domain.ComplianceEntry, error) {
	if !domain.ValidFramework(framework) {
		return nil, domain.ErrValidation("unknown audit framework %q", framework)
	}

	descs, err := a.catalog.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog for audit: %w", err)
	}

	runID := uuid.NewString()
	var entries []domain.ComplianceEntry
	switch framework {
	case domain.FrameworkDAMA:
		entries = a.auditDAMA(runID, descs)
	case domain.FrameworkDADM:
		entries = a.auditDADM(runID, descs)
	case domain.FrameworkDQMF:
		entries = a.auditDQMF(ctx, runID, descs)
	case domain.FrameworkClassification:
		entries = a.auditClassification(runID, descs)
	}

	if err := a.repo.InsertEntries(ctx, entries); err != nil {
		return nil, fmt.Errorf("persist audit run %s: %w", runID, err)
	}
	a.logger.Info("audit complete",
		"framework", framework, "run_id", runID, "checks", len(entries))
	return entries, nil
}

// List reads the audit log.
func (a *Auditor) List(ctx context.Context, filter domain.ComplianceFilter) ([]domain.ComplianceEntry, int64, error) {
	if filter.Framework != nil && !domain.ValidFramework(*filter.Framework) {
		return nil, 0, domain.ErrValidation("unknown audit framework %q", *filter.Framework)
	}
	return a.repo.List(ctx, filter)
}

func (a *Auditor) entry(runID string, framework domain.Framework, check, artifact string) domain.ComplianceEntry {
	return domain.ComplianceEntry{
		ID:         uuid.NewString(),
		RunID:      runID,
		Framework:  framework,
		CheckName:  check,
		ArtifactID: artifact,
		CheckedAt:  a.clock.Now(),
	}
}

// evidenceRefs resolves table names to their lineage node IDs so entries
// point at graph artifacts. A table the pipeline never announced falls
// back to its name.
func (a *Auditor) evidenceRefs(tables []string) []string {
	out := make([]string, len(tables))
	for i, table := range tables {
		out[i] = table
		if a.lineage == nil {
			continue
		}
		if id, ok := a.lineage.TableNodeID(table); ok {
			out[i] = id
		}
	}
	return out
}

// auditDAMA runs the eleven knowledge-area checks catalog-wide: one entry
// per area, non-compliant entries listing the offending tables.
func (a *Auditor) auditDAMA(runID string, descs []domain.TableDescriptor) []domain.ComplianceEntry {
	out := make([]domain.ComplianceEntry, 0, len(damaKnowledgeAreas))
	for _, area := range damaKnowledgeAreas {
		e := a.entry(runID, domain.FrameworkDAMA, area, "catalog")
		if len(descs) == 0 {
			e.Status = domain.StatusNotApplicable
			e.Note = "catalog is empty"
			out = append(out, e)
			continue
		}

		var offenders []string
		for i := range descs {
			if !a.damaTableCompliant(area, &descs[i]) {
				offenders = append(offenders, descs[i].TableName)
			}
		}
		if len(offenders) == 0 {
			e.Status = domain.StatusCompliant
		} else {
			e.Status = domain.StatusNonCompliant
			e.Note = "failing tables: " + strings.Join(offenders, ", ")
			e.EvidenceRefs = a.evidenceRefs(offenders)
		}
		out = append(out, e)
	}
	return out
}

func (a *Auditor) damaTableCompliant(area string, d *domain.TableDescriptor) bool {
	switch area {
	case "data_governance":
		return d.Governance.Steward != ""
	case "data_architecture":
		return d.Registered
	case "data_modeling_design":
		if len(d.Columns) == 0 {
			return false
		}
		for _, c := range d.Columns {
			if c.SemanticType == "" {
				return false
			}
		}
		return true
	case "data_storage_operations":
		return !d.LastRefreshedAt.IsZero()
	case "data_security":
		return d.Governance.Classification != ""
	case "data_integration_interoperability":
		for _, fk := range d.ForeignKeys {
			if fk.TargetTable == "" || fk.ValidationMode == "" {
				return false
			}
		}
		return true
	case "documents_content":
		return d.BusinessPurpose != ""
	case "reference_master_data":
		for _, c := range d.Columns {
			if c.SemanticType == domain.SemanticReferenceCode && !c.Rule.Defined() {
				return false
			}
		}
		return true
	case "data_warehousing_bi":
		return len(d.Governance.BusinessQuestions) > 0
	case "metadata":
		for _, c := range d.Columns {
			if c.Description == "" {
				return false
			}
		}
		return len(d.Columns) > 0
	case "data_quality":
		return d.Governance.RefreshIntervalDays > 0
	default:
		return false
	}
}

// auditDADM runs the Directive on Automated Decision-Making checks. A
// table declaring policy references is treated as in ADM scope; in-scope
// tables must carry an Algorithmic Impact Assessment.
func (a *Auditor) auditDADM(runID string, descs []domain.TableDescriptor) []domain.ComplianceEntry {
	scopeEntry := a.entry(runID, domain.FrameworkDADM, "scope_applicability", "catalog")
	aiaEntry := a.entry(runID, domain.FrameworkDADM, "aia_documentation", "catalog")

	if len(descs) == 0 {
		scopeEntry.Status = domain.StatusNotApplicable
		scopeEntry.Note = "catalog is empty"
		aiaEntry.Status = domain.StatusNotApplicable
		aiaEntry.Note = "catalog is empty"
		return []domain.ComplianceEntry{scopeEntry, aiaEntry}
	}

	var inScope []string
	for i := range descs {
		if len(descs[i].Governance.PolicyReferences) > 0 {
			inScope = append(inScope, descs[i].TableName)
		}
	}
	sort.Strings(inScope)

	scopeEntry.Status = domain.StatusCompliant
	if len(inScope) == 0 {
		scopeEntry.Note = "no tables declare automated decision-making scope"
	} else {
		scopeEntry.Note = "in-scope tables: " + strings.Join(inScope, ", ")
		scopeEntry.EvidenceRefs = a.evidenceRefs(inScope)
	}

	if len(inScope) == 0 {
		aiaEntry.Status = domain.StatusNotApplicable
		aiaEntry.Note = "no tables in ADM scope"
		return []domain.ComplianceEntry{scopeEntry, aiaEntry}
	}

	var missing []string
	for i := range descs {
		d := &descs[i]
		if len(d.Governance.PolicyReferences) > 0 && !d.Governance.AIADocumented {
			missing = append(missing, d.TableName)
		}
	}
	if len(missing) == 0 {
		aiaEntry.Status = domain.StatusCompliant
		aiaEntry.EvidenceRefs = a.evidenceRefs(inScope)
	} else {
		sort.Strings(missing)
		aiaEntry.Status = domain.StatusNonCompliant
		aiaEntry.Note = "tables missing AIA documentation: " + strings.Join(missing, ", ")
		aiaEntry.EvidenceRefs = a.evidenceRefs(missing)
	}
	return []domain.ComplianceEntry{scopeEntry, aiaEntry}
}

// auditDQMF delegates to the latest quality snapshots: one entry per
// table, compliant when the latest composite holds the floor.
func (a *Auditor) auditDQMF(ctx context.Context, runID string, descs []domain.TableDescriptor) []domain.ComplianceEntry {
	out := make([]domain.ComplianceEntry, 0, len(descs))
	for i := range descs {
		table := descs[i].TableName
		e := a.entry(runID, domain.FrameworkDQMF, "composite_score_floor", table)

		snap, err := a.history.Latest(ctx, table)
		switch {
		case err != nil:
			var notFound *domain.NotFoundError
			if !errors.As(err, &notFound) {
				a.logger.Warn("dqmf check could not read history", "table", table, "error", err)
			}
			e.Status = domain.StatusNotApplicable
			e.Note = "no quality snapshot recorded"
		case snap.CompositeScore == nil:
			e.Status = domain.StatusNotApplicable
			e.Note = "latest snapshot has insufficient data: " + snap.Note
			e.EvidenceRefs = []string{snap.ID}
		case *snap.CompositeScore >= a.scoreFloor:
			e.Status = domain.StatusCompliant
			e.Note = fmt.Sprintf("composite %.1f >= floor %.0f", *snap.CompositeScore, a.scoreFloor)
			e.EvidenceRefs = []string{snap.ID}
		default:
			e.Status = domain.StatusNonCompliant
			e.Note = fmt.Sprintf("composite %.1f below floor %.0f", *snap.CompositeScore, a.scoreFloor)
			e.EvidenceRefs = []string{snap.ID}
		}
		out = append(out, e)
	}
	return out
}

// auditClassification checks security classification tagging and source
// attribution per table.
func (a *Auditor) auditClassification(runID string, descs []domain.TableDescriptor) []domain.ComplianceEntry {
	out := make([]domain.ComplianceEntry, 0, 2*len(descs))
	for i := range descs {
		d := &descs[i]

		tag := a.entry(runID, domain.FrameworkClassification, "classification_tag", d.TableName)
		if d.Governance.Classification != "" {
			tag.Status = domain.StatusCompliant
			tag.Note = "classified as " + d.Governance.Classification
		} else {
			tag.Status = domain.StatusNonCompliant
			tag.Note = "no security classification tag"
		}
		out = append(out, tag)

		attr := a.entry(runID, domain.FrameworkClassification, "source_attribution", d.TableName)
		switch {
		case a.lineage == nil:
			attr.Status = domain.StatusNotApplicable
			attr.Note = "lineage graph unavailable"
		default:
			hasSource, _ := a.lineage.SourceAttributed(d.TableName)
			if hasSource || d.Governance.SourceAttribution != "" {
				attr.Status = domain.StatusCompliant
				if id, ok := a.lineage.TableNodeID(d.TableName); ok && hasSource {
					attr.EvidenceRefs = []string{id}
				}
			} else {
				attr.Status = domain.StatusNonCompliant
				attr.Note = "table has no source attribution in metadata or lineage"
			}
		}
		out = append(out, attr)
	}
	return out
}
