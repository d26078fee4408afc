package domain

import "time"

// Framework identifies a governance framework an audit runs against.
type Framework string

const (
	// FrameworkDAMA covers the eleven DAMA DMBOK knowledge areas.
	FrameworkDAMA Framework = "DAMA"
	// FrameworkDADM covers the Directive on Automated Decision-Making:
	// scope applicability plus AIA documentation presence.
	FrameworkDADM Framework = "DADM"
	// FrameworkDQMF delegates to the latest quality snapshots.
	FrameworkDQMF Framework = "DQMF"
	// FrameworkClassification checks security classification tagging.
	FrameworkClassification Framework = "classification"
)

// Frameworks lists the supported audit frameworks.
var Frameworks = []Framework{
	FrameworkDAMA, FrameworkDADM, FrameworkDQMF, FrameworkClassification,
}

// ValidFramework reports whether f is a supported framework.
func ValidFramework(f Framework) bool {
	for _, known := range Frameworks {
		if f == known {
			return true
		}
	}
	return false
}

// ComplianceStatus is the outcome of one audit check.
type ComplianceStatus string

const (
	StatusCompliant    ComplianceStatus = "compliant"
	StatusNonCompliant ComplianceStatus = "non_compliant"
	// StatusNotApplicable records a check that could not be evaluated.
	// Inconclusive checks are reported, never raised as errors.
	StatusNotApplicable ComplianceStatus = "not_applicable"
)

// ComplianceEntry is one check result from an audit run. Entries are
// superseded by later runs, never mutated, so audit history remains
// reconstructable.
type ComplianceEntry struct {
	ID           string           `json:"id"`
	RunID        string           `json:"run_id"`
	Framework    Framework        `json:"framework"`
	CheckName    string           `json:"check_name"`
	ArtifactID   string           `json:"artifact_id"`
	Status       ComplianceStatus `json:"status"`
	Note         string           `json:"note,omitempty"`
	EvidenceRefs []string         `json:"evidence_refs,omitempty"` // lineage node or snapshot IDs
	CheckedAt    time.Time        `json:"checked_at"`
}

// ComplianceFilter narrows audit log listings.
type ComplianceFilter struct {
	Framework *Framework
	Status    *ComplianceStatus
	RunID     *string
	Page      PageRequest
}
