package siem

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Wire vendor/product identifiers used by the CEF and LEEF encodings.
const (
	cefVendor  = "Custodia"
	cefProduct = "Custodia"
	cefVersion = "1.0"
)

// Severity classifies an event for downstream alerting.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// cefSeverity maps a severity onto the CEF 0-10 scale.
func (s Severity) cefSeverity() int {
	switch s {
	case SeverityLow:
		return 3
	case SeverityMedium:
		return 5
	case SeverityHigh:
		return 8
	case SeverityCritical:
		return 10
	default:
		return 1
	}
}

// Event categories.
const (
	CategoryExecution  = "execution"
	CategoryEvidence   = "evidence"
	CategoryRetention  = "retention"
	CategoryCompliance = "compliance"
	CategorySecurity   = "security"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// Event is one audit event bound for a SIEM. Events carry
// classification labels and identifiers only, never payload data.
type Event struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	EventType       string    `json:"eventType"`
	Severity        Severity  `json:"severity"`
	Category        string    `json:"category"`
	Outcome         string    `json:"outcome"`
	Description     string    `json:"description"`
	TenantID        string    `json:"tenantId,omitempty"`
	ExecutionID     string    `json:"executionId,omitempty"`
	BotID           string    `json:"botId,omitempty"`
	Classifications []string  `json:"classifications,omitempty"`
}

// NewEvent builds an event and assigns its deterministic id. The id is
// derived from the timestamp, type, and execution id, so replaying the
// same event produces the same id and SIEMs can deduplicate.
func NewEvent(eventType string, severity Severity, executionID string) *Event {
	e := &Event{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		Severity:    severity,
		ExecutionID: executionID,
	}
	e.ID = e.deriveID()
	return e
}

func (e *Event) deriveID() string {
	sum := sha256.Sum256([]byte(e.Timestamp.Format(time.RFC3339Nano) + e.EventType + e.ExecutionID))
	return hex.EncodeToString(sum[:8])
}

// ToJSON renders the event as a single JSON object.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ToCEF renders the event in ArcSight Common Event Format:
//
//	CEF:0|Vendor|Product|Version|SignatureID|Name|Severity|Extension
func (e *Event) ToCEF() string {
	ext := []string{
		"rt=" + fmt.Sprintf("%d", e.Timestamp.UnixMilli()),
		"cat=" + cefEscapeExt(e.Category),
		"outcome=" + cefEscapeExt(e.Outcome),
	}
	if e.ExecutionID != "" {
		ext = append(ext, "cs1Label=executionId", "cs1="+cefEscapeExt(e.ExecutionID))
	}
	if e.TenantID != "" {
		ext = append(ext, "cs2Label=tenantId", "cs2="+cefEscapeExt(e.TenantID))
	}
	if len(e.Classifications) > 0 {
		ext = append(ext, "cs3Label=classifications", "cs3="+cefEscapeExt(strings.Join(e.Classifications, ",")))
	}
	if e.BotID != "" {
		ext = append(ext, "suser="+cefEscapeExt(e.BotID))
	}
	return fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s",
		cefEscapeHeader(cefVendor),
		cefEscapeHeader(cefProduct),
		cefVersion,
		cefEscapeHeader(e.EventType),
		cefEscapeHeader(e.Description),
		e.Severity.cefSeverity(),
		strings.Join(ext, " "))
}

// ToLEEF renders the event in IBM Log Event Extended Format 2.0 with
// tab-delimited attributes.
func (e *Event) ToLEEF() string {
	attrs := []string{
		"devTime=" + e.Timestamp.Format("2006-01-02T15:04:05.000Z"),
		"devTimeFormat=yyyy-MM-dd'T'HH:mm:ss.SSS'Z'",
		"cat=" + e.Category,
		"sev=" + fmt.Sprintf("%d", e.Severity.cefSeverity()),
		"outcome=" + e.Outcome,
		"msg=" + e.Description,
	}
	if e.ExecutionID != "" {
		attrs = append(attrs, "executionId="+e.ExecutionID)
	}
	if e.TenantID != "" {
		attrs = append(attrs, "tenantId="+e.TenantID)
	}
	if e.BotID != "" {
		attrs = append(attrs, "botId="+e.BotID)
	}
	if len(e.Classifications) > 0 {
		attrs = append(attrs, "classifications="+strings.Join(e.Classifications, ","))
	}
	return fmt.Sprintf("LEEF:2.0|%s|%s|%s|%s|\t%s",
		cefVendor, cefProduct, cefVersion, e.EventType,
		strings.Join(attrs, "\t"))
}

// cefEscapeHeader escapes CEF header fields, where pipes delimit.
func cefEscapeHeader(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "|", `\|`)
}

// cefEscapeExt escapes CEF extension values, where equals signs bind
// keys to values.
func cefEscapeExt(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "=", `\=`)
	return strings.ReplaceAll(s, "\n", `\n`)
}
