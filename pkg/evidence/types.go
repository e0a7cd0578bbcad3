package evidence

import (
	"time"
)

// FormatVersion is the evidence pack format version written into every
// manifest. Verifiers reject packs with a newer major version.
const FormatVersion = "1.0"

// ChecksumAlgorithm is the hash algorithm used for all pack integrity
// checksums.
const ChecksumAlgorithm = "sha256"

// ComplianceStatus is the outcome of a single compliance check or
// control evaluation.
type ComplianceStatus string

const (
	StatusPassed         ComplianceStatus = "passed"
	StatusFailed         ComplianceStatus = "failed"
	StatusPartiallyMet   ComplianceStatus = "partially_met"
	StatusRequiresReview ComplianceStatus = "requires_review"
	StatusNotApplicable  ComplianceStatus = "not_applicable"
)

// LogLevel classifies execution log entries.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// DataLineageEntry records a single data movement during an execution:
// where data came from, where it went, and how it is classified. Field
// values are classification labels, never the data itself.
type DataLineageEntry struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	NodeID         string    `json:"nodeId,omitempty"`
	Source         string    `json:"source"`
	Destination    string    `json:"destination"`
	Operation      string    `json:"operation"`
	DataType       string    `json:"dataType,omitempty"`
	Classification []string  `json:"classification,omitempty"`
	RecordCount    int       `json:"recordCount,omitempty"`
	FieldNames     []string  `json:"fieldNames,omitempty"`
}

// AgentDecision records an autonomous decision made during an
// execution. InputSummary and Reasoning are redacted before storage.
type AgentDecision struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	NodeID       string    `json:"nodeId,omitempty"`
	DecisionType string    `json:"decisionType"`
	InputSummary string    `json:"inputSummary,omitempty"`
	Outcome      string    `json:"outcome"`
	Confidence   float64   `json:"confidence,omitempty"`
	Reasoning    string    `json:"reasoning,omitempty"`
	Model        string    `json:"model,omitempty"`
}

// ComplianceResult records the outcome of one compliance check against
// a named framework control.
type ComplianceResult struct {
	ID           string           `json:"id"`
	Timestamp    time.Time        `json:"timestamp"`
	Framework    string           `json:"framework"`
	ControlID    string           `json:"controlId"`
	ControlName  string           `json:"controlName,omitempty"`
	Status       ComplianceStatus `json:"status"`
	Details      string           `json:"details,omitempty"`
	EvidenceRefs []string         `json:"evidenceRefs,omitempty"`
}

// ScreenshotEntry describes one redacted screenshot stored in the pack.
// The hash covers the redacted bytes as written to disk.
type ScreenshotEntry struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	NodeID           string    `json:"nodeId,omitempty"`
	Filename         string    `json:"filename"`
	SHA256           string    `json:"sha256"`
	Description      string    `json:"description,omitempty"`
	RedactionApplied bool      `json:"redactionApplied"`
	RedactedRegions  int       `json:"redactedRegions"`
	RedactedTypes    []string  `json:"redactedTypes,omitempty"`
}

// LogEntry is a single execution log line, redacted at write time.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	NodeID    string    `json:"nodeId,omitempty"`
	Message   string    `json:"message"`
}

// CustodyEvent is one entry in the pack's chain of custody. Events are
// appended in order and never mutated; each one embeds the hash of its
// predecessor, making the log tamper-evident (see AppendCustody and
// VerifyCustodyChain).
type CustodyEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Actor     string    `json:"actor"`
	Details   string    `json:"details,omitempty"`

	// PrevHash is the CustodyEventHash of the preceding event, empty
	// for the first event in the chain.
	PrevHash string `json:"prevHash,omitempty"`
}

// Environment describes the host that produced the pack.
type Environment struct {
	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	RunnerVersion string `json:"runnerVersion,omitempty"`
}

// Statistics holds the entry counters computed at finalize time.
type Statistics struct {
	LineageEntries   int `json:"lineageEntries"`
	Decisions        int `json:"decisions"`
	ComplianceChecks int `json:"complianceChecks"`
	Screenshots      int `json:"screenshots"`
	LogEntries       int `json:"logEntries"`
	NodesExecuted    int `json:"nodesExecuted"`
	NodesSucceeded   int `json:"nodesSucceeded"`
	NodesFailed      int `json:"nodesFailed"`
}

// SignatureInfo is the manifest-embedded view of a pack signature. The
// full signature metadata lives under signatures/ in the pack.
type SignatureInfo struct {
	Algorithm       string    `json:"algorithm"`
	SignedAt        time.Time `json:"signedAt"`
	CertThumbprint  string    `json:"certThumbprint,omitempty"`
	TimestampSource string    `json:"timestampSource,omitempty"`
}

// Integrity holds the pack's root-of-trust fields. ManifestChecksum is
// the hash of all non-manifest pack content and is written last.
type Integrity struct {
	ChecksumAlgorithm string         `json:"checksumAlgorithm"`
	ManifestChecksum  string         `json:"manifestChecksum"`
	Signature         *SignatureInfo `json:"signature,omitempty"`
}

// Manifest is the root document of an evidence pack.
type Manifest struct {
	FormatVersion  string         `json:"formatVersion"`
	PackID         string         `json:"packId"`
	ExecutionID    string         `json:"executionId"`
	BotID          string         `json:"botId"`
	BotVersion     string         `json:"botVersion,omitempty"`
	TenantID       string         `json:"tenantId"`
	Environment    Environment    `json:"environment"`
	StartedAt      time.Time      `json:"startedAt"`
	FinishedAt     time.Time      `json:"finishedAt"`
	Statistics     Statistics     `json:"statistics"`
	Classification []string       `json:"classification"`
	Integrity      Integrity      `json:"integrity"`
	ChainOfCustody []CustodyEvent `json:"chainOfCustody"`
}

// Screenshot pairs a screenshot entry with its redacted image bytes
// until the pack is persisted.
type Screenshot struct {
	Entry ScreenshotEntry
	Data  []byte
}

// Pack is a finalized, immutable evidence pack. After Finalize no
// field may change; Persist writes this structure to disk.
type Pack struct {
	Manifest    Manifest
	Lineage     []DataLineageEntry
	Decisions   []AgentDecision
	Compliance  []ComplianceResult
	Screenshots []Screenshot
	Logs        []LogEntry

	// Checksums maps pack-relative file paths to hex SHA-256 digests.
	// Populated during Persist.
	Checksums map[string]string

	// Path is the directory the pack was persisted to, empty until
	// Persist succeeds.
	Path string
}

// ClassificationSet accumulates sensitive-data categories in first-seen
// order with deduplication.
type ClassificationSet struct {
	seen  map[string]struct{}
	order []string
}

// NewClassificationSet creates an empty classification set.
func NewClassificationSet() *ClassificationSet {
	return &ClassificationSet{seen: make(map[string]struct{})}
}

// Add inserts labels, ignoring duplicates and empty strings.
func (c *ClassificationSet) Add(labels ...string) {
	for _, l := range labels {
		if l == "" {
			continue
		}
		if _, ok := c.seen[l]; ok {
			continue
		}
		c.seen[l] = struct{}{}
		c.order = append(c.order, l)
	}
}

// Labels returns the labels in first-seen order.
func (c *ClassificationSet) Labels() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
