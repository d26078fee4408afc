package domain

import "time"

// SemanticType classifies what a column means, independent of its storage type.
type SemanticType string

const (
	SemanticReferenceCode        SemanticType = "reference_code"
	SemanticDescriptiveText      SemanticType = "descriptive_text"
	SemanticNumericAttribute     SemanticType = "numeric_attribute"
	SemanticCategoricalAttribute SemanticType = "categorical_attribute"
	SemanticTemporal             SemanticType = "temporal"
	SemanticIdentifier           SemanticType = "identifier"
	SemanticBooleanFlag          SemanticType = "boolean_flag"
	SemanticDataAttribute        SemanticType = "data_attribute"
)

// ValidationMode controls how a foreign-key violation is handled.
// Modeled as a string enum rather than a boolean so further modes
// (e.g. warn-once) can be added without a schema change.
type ValidationMode string

const (
	// ValidationHard means an unresolved reference fails the ingestion
	// that produced it. Still scoreable as a Coherence defect.
	ValidationHard ValidationMode = "hard"
	// ValidationSoft means an unresolved reference is logged and the row
	// is preserved. Soft orphans count toward the Coherence score.
	ValidationSoft ValidationMode = "soft"
)

// ValidationRule is an optional per-column accuracy rule from the catalog.
// Exactly one of Pattern, AllowedValues, or the Min/Max pair is set.
type ValidationRule struct {
	Pattern       string   `json:"pattern,omitempty"`        // regular expression the value must match
	AllowedValues []string `json:"allowed_values,omitempty"` // enumerated value set
	Min           *float64 `json:"min,omitempty"`            // numeric range lower bound
	Max           *float64 `json:"max,omitempty"`            // numeric range upper bound
}

// Defined reports whether the rule actually constrains anything.
func (r *ValidationRule) Defined() bool {
	if r == nil {
		return false
	}
	return r.Pattern != "" || len(r.AllowedValues) > 0 || r.Min != nil || r.Max != nil
}

// ColumnDescriptor describes one column of a gold table. Owned exclusively
// by its TableDescriptor.
type ColumnDescriptor struct {
	Name         string          `json:"name"`
	SemanticType SemanticType    `json:"semantic_type"`
	Nullable     bool            `json:"nullable"`
	Required     bool            `json:"required"` // non-nullable by intent; scored by Completeness
	Description  string          `json:"description,omitempty"`
	DMBOKElement string          `json:"dmbok_element,omitempty"` // DMBOK element type tag
	Rule         *ValidationRule `json:"rule,omitempty"`
}

// ForeignKeyRef declares a reference from one table's column to another's.
type ForeignKeyRef struct {
	SourceTable    string         `json:"source_table"`
	SourceColumn   string         `json:"source_column"`
	TargetTable    string         `json:"target_table"`
	TargetColumn   string         `json:"target_column"`
	ValidationMode ValidationMode `json:"validation_mode"`
}

// GovernanceMetadata carries the policy-facing fields of a table descriptor.
type GovernanceMetadata struct {
	Classification      string   `json:"classification,omitempty"` // e.g. "unclassified", "protected_a"
	Steward             string   `json:"steward,omitempty"`
	BusinessQuestions   []string `json:"business_questions,omitempty"`
	PolicyReferences    []string `json:"policy_references,omitempty"` // policy clause node IDs
	AIADocumented       bool     `json:"aia_documented"`              // Algorithmic Impact Assessment on file
	SourceAttribution   string   `json:"source_attribution,omitempty"`
	RefreshIntervalDays int      `json:"refresh_interval_days,omitempty"` // expected refresh SLA
}

// TableDescriptor is the catalog's description of one gold table. The
// scoring engine reads these; it never writes them. A new pipeline run
// supersedes a descriptor (new LastRefreshedAt), it is never deleted.
type TableDescriptor struct {
	TableName       string             `json:"table_name"`
	Columns         []ColumnDescriptor `json:"columns"`
	ForeignKeys     []ForeignKeyRef    `json:"foreign_keys,omitempty"`
	UniqueKeys      [][]string         `json:"unique_keys,omitempty"` // declared business keys
	RowCount        int64              `json:"row_count"`
	LastRefreshedAt time.Time          `json:"last_refreshed_at"`
	BusinessPurpose string             `json:"business_purpose,omitempty"`
	Registered      bool               `json:"registered"` // queryable via the API/catalog
	Governance      GovernanceMetadata `json:"governance"`
}

// Column returns the descriptor for the named column, or nil.
func (t *TableDescriptor) Column(name string) *ColumnDescriptor {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// RequiredColumns returns the columns that are non-nullable by intent.
func (t *TableDescriptor) RequiredColumns() []ColumnDescriptor {
	var out []ColumnDescriptor
	for _, c := range t.Columns {
		if c.Required {
			out = append(out, c)
		}
	}
	return out
}
