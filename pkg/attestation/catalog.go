package attestation

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"custodia-hq/custodia/pkg/evidence"
)

// Framework identifies a compliance framework.
type Framework string

const (
	FrameworkHIPAA  Framework = "HIPAA"
	FrameworkSOC2   Framework = "SOC2"
	FrameworkPCIDSS Framework = "PCI-DSS"
	FrameworkGDPR   Framework = "GDPR"
)

// Evidence types a control can require. These are the categories an
// evidence pack produces, not file names.
const (
	EvidenceAuditLog       = "audit_log"
	EvidenceExecutionLog   = "execution_log"
	EvidenceDataLineage    = "data_lineage"
	EvidenceAgentDecision  = "agent_decision"
	EvidenceScreenshot     = "screenshot"
	EvidenceChainOfCustody = "chain_of_custody"
	EvidenceChecksumIndex  = "checksum_index"
	EvidenceSignature      = "digital_signature"
	EvidenceRedaction      = "redaction_record"
)

// Control is one control in a compliance framework catalog.
type Control struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	// RequiredEvidence lists the evidence types that must be present
	// for the control to be satisfied. Empty means the control is not
	// applicable to automated evidence collection.
	RequiredEvidence []string `json:"requiredEvidence" yaml:"requiredEvidence"`
}

// Catalog maps a framework to its controls.
type Catalog struct {
	Framework Framework `json:"framework" yaml:"framework"`
	Name      string    `json:"name" yaml:"name"`
	Controls  []Control `json:"controls" yaml:"controls"`
}

// builtinCatalogs are the control catalogs shipped with the library.
// Custom YAML catalogs can override or extend them via the Registry.
var builtinCatalogs = []*Catalog{
	{
		Framework: FrameworkHIPAA,
		Name:      "HIPAA Security Rule",
		Controls: []Control{
			{
				ID:               "164.312(a)(1)",
				Name:             "Access Control",
				Description:      "Technical policies limiting access to ePHI to authorized persons and programs.",
				RequiredEvidence: []string{EvidenceChainOfCustody},
			},
			{
				ID:               "164.312(b)",
				Name:             "Audit Controls",
				Description:      "Mechanisms that record and examine activity in systems containing ePHI.",
				RequiredEvidence: []string{EvidenceAuditLog, EvidenceExecutionLog},
			},
			{
				ID:               "164.312(c)(1)",
				Name:             "Integrity",
				Description:      "Protection of ePHI from improper alteration or destruction.",
				RequiredEvidence: []string{EvidenceChecksumIndex, EvidenceSignature},
			},
			{
				ID:               "164.308(a)(1)(ii)(D)",
				Name:             "Information System Activity Review",
				Description:      "Regular review of records of information system activity.",
				RequiredEvidence: []string{EvidenceAuditLog, EvidenceAgentDecision},
			},
			{
				ID:               "164.530(j)(2)",
				Name:             "Documentation Retention",
				Description:      "Retention of required documentation for six years.",
				RequiredEvidence: []string{EvidenceChainOfCustody, EvidenceChecksumIndex},
			},
		},
	},
	{
		Framework: FrameworkSOC2,
		Name:      "SOC 2 Trust Services Criteria",
		Controls: []Control{
			{
				ID:               "CC4.1",
				Name:             "Monitoring Activities",
				Description:      "Ongoing evaluations of internal control components.",
				RequiredEvidence: []string{EvidenceAuditLog},
			},
			{
				ID:               "CC6.1",
				Name:             "Logical Access Security",
				Description:      "Logical access security software, infrastructure, and architectures.",
				RequiredEvidence: []string{EvidenceChainOfCustody},
			},
			{
				ID:               "CC7.2",
				Name:             "Anomaly Monitoring",
				Description:      "Monitoring for anomalies indicative of malicious acts or errors.",
				RequiredEvidence: []string{EvidenceExecutionLog, EvidenceAgentDecision},
			},
			{
				ID:               "CC7.3",
				Name:             "Incident Evaluation",
				Description:      "Evaluation of security events to determine incident response.",
				RequiredEvidence: []string{EvidenceAuditLog, EvidenceDataLineage},
			},
		},
	},
	{
		Framework: FrameworkPCIDSS,
		Name:      "PCI DSS v4.0",
		Controls: []Control{
			{
				ID:               "3.4",
				Name:             "Render PAN Unreadable",
				Description:      "Primary account numbers are unreadable wherever stored.",
				RequiredEvidence: []string{EvidenceRedaction},
			},
			{
				ID:               "10.2",
				Name:             "Audit Trails",
				Description:      "Audit logs capture all access to system components and cardholder data.",
				RequiredEvidence: []string{EvidenceAuditLog},
			},
			{
				ID:               "10.3",
				Name:             "Audit Trail Detail",
				Description:      "Audit entries record user, event type, date, time, and outcome.",
				RequiredEvidence: []string{EvidenceExecutionLog},
			},
			{
				ID:               "10.5",
				Name:             "Secure Audit Trails",
				Description:      "Audit trails are protected from alteration.",
				RequiredEvidence: []string{EvidenceChecksumIndex, EvidenceSignature},
			},
		},
	},
	{
		Framework: FrameworkGDPR,
		Name:      "GDPR",
		Controls: []Control{
			{
				ID:               "Art.5(1)(f)",
				Name:             "Integrity and Confidentiality",
				Description:      "Processing with appropriate security, including protection against unauthorised processing.",
				RequiredEvidence: []string{EvidenceSignature, EvidenceRedaction},
			},
			{
				ID:               "Art.25",
				Name:             "Data Protection by Design",
				Description:      "Technical measures implementing data-protection principles at processing time.",
				RequiredEvidence: []string{EvidenceRedaction},
			},
			{
				ID:               "Art.30",
				Name:             "Records of Processing Activities",
				Description:      "Records of processing activities under the controller's responsibility.",
				RequiredEvidence: []string{EvidenceDataLineage, EvidenceAuditLog},
			},
			{
				ID:               "Art.32",
				Name:             "Security of Processing",
				Description:      "Ability to ensure ongoing integrity of processing systems.",
				RequiredEvidence: []string{EvidenceChecksumIndex, EvidenceChainOfCustody},
			},
		},
	},
}

// Registry holds control catalogs by framework. It starts with the
// built-in catalogs; custom catalogs loaded from YAML replace the
// entry for their framework.
type Registry struct {
	mu       sync.RWMutex
	catalogs map[Framework]*Catalog
}

// NewRegistry creates a registry seeded with the built-in catalogs.
func NewRegistry() *Registry {
	r := &Registry{catalogs: make(map[Framework]*Catalog, len(builtinCatalogs))}
	for _, c := range builtinCatalogs {
		r.catalogs[c.Framework] = c
	}
	return r
}

// Catalog returns the catalog for a framework.
func (r *Registry) Catalog(framework Framework) (*Catalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.catalogs[framework]
	if !ok {
		return nil, evidence.NewNotFoundError("catalog", string(framework))
	}
	return c, nil
}

// Frameworks returns the registered framework names, sorted.
func (r *Registry) Frameworks() []Framework {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Framework, 0, len(r.catalogs))
	for f := range r.catalogs {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Register installs or replaces a catalog.
func (r *Registry) Register(c *Catalog) error {
	if err := validateCatalog(c); err != nil {
		return err
	}
	r.mu.Lock()
	r.catalogs[c.Framework] = c
	r.mu.Unlock()
	return nil
}

// LoadCatalogFile parses a custom catalog from YAML.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if err := validateCatalog(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func validateCatalog(c *Catalog) error {
	if c == nil || c.Framework == "" {
		return evidence.NewValidationError("framework", "catalog framework is required")
	}
	if len(c.Controls) == 0 {
		return evidence.NewValidationError("controls", "catalog has no controls")
	}
	seen := make(map[string]bool, len(c.Controls))
	for _, ctrl := range c.Controls {
		if ctrl.ID == "" {
			return evidence.NewValidationError("controls", "control id is required")
		}
		if seen[ctrl.ID] {
			return evidence.NewValidationError("controls", fmt.Sprintf("duplicate control id %s", ctrl.ID))
		}
		seen[ctrl.ID] = true
	}
	return nil
}
