package retention

import (
	"fmt"
	"time"
)

// Policy is a named retention policy.
type Policy string

const (
	PolicyTemporary  Policy = "temporary"
	PolicyShortTerm  Policy = "short_term"
	PolicyMediumTerm Policy = "medium_term"
	PolicyStandard   Policy = "standard"
	PolicyRegulatory Policy = "regulatory"
	PolicyExtended   Policy = "extended"
	PolicyPermanent  Policy = "permanent"
	PolicyCustom     Policy = "custom"
)

// PermanentDays marks a policy with no expiry.
const PermanentDays = -1

// retentionDays maps each named policy to its window in days.
var retentionDays = map[Policy]int{
	PolicyTemporary:  7,
	PolicyShortTerm:  30,
	PolicyMediumTerm: 90,
	PolicyStandard:   365,
	PolicyRegulatory: 7 * 365,
	PolicyExtended:   10 * 365,
	PolicyPermanent:  PermanentDays,
}

// Days returns the retention window for a named policy. PolicyCustom
// has no table entry, callers supply its days explicitly.
func (p Policy) Days() (int, error) {
	days, ok := retentionDays[p]
	if !ok {
		return 0, fmt.Errorf("unknown retention policy: %s", p)
	}
	return days, nil
}

// HoldStatus is the legal-hold state of a pack.
type HoldStatus string

const (
	HoldNone     HoldStatus = "none"
	HoldActive   HoldStatus = "active"
	HoldReleased HoldStatus = "released"
)

// holdImmutability is the immutability extension applied while a legal
// hold is active. Holds have no natural expiry; a century stands in
// for indefinite.
const holdImmutability = 100 * 365 * 24 * time.Hour

// Metadata is the retention state of one pack.
type Metadata struct {
	PackID    string    `json:"packId"`
	Policy    Policy    `json:"policy"`
	Days      int       `json:"days"`
	AppliedAt time.Time `json:"appliedAt"`

	// ExpiresAt is zero for permanent retention.
	ExpiresAt time.Time `json:"expiresAt,omitempty"`

	// Immutable indicates the storage object is locked for the
	// retention window.
	Immutable bool `json:"immutable"`

	HoldStatus     HoldStatus `json:"holdStatus"`
	HoldID         string     `json:"holdId,omitempty"`
	HoldReason     string     `json:"holdReason,omitempty"`
	HoldPlacedBy   string     `json:"holdPlacedBy,omitempty"`
	HoldPlacedAt   time.Time  `json:"holdPlacedAt,omitempty"`
	HoldReleasedAt time.Time  `json:"holdReleasedAt,omitempty"`

	// PriorImmutableUntil is the backend lock that was in force when
	// the active hold was placed, restored on release. Zero when no
	// lock preceded the hold.
	PriorImmutableUntil time.Time `json:"priorImmutableUntil,omitempty"`

	// ScheduledDeletionAt is set while a deletion awaits its grace
	// period.
	ScheduledDeletionAt time.Time `json:"scheduledDeletionAt,omitempty"`
}

// Deletion audit actions.
const (
	AuditSchedule = "schedule"
	AuditCancel   = "cancel"
	AuditExecute  = "execute"
	AuditDeny     = "deny"
)

// DeletionAuditEntry records one deletion attempt, allowed or not.
// Entries are append-only.
type DeletionAuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	PackID    string    `json:"packId"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
}

// Machine-readable CanDelete denial reasons, in priority order.
const (
	ReasonLegalHold       = "legal_hold"
	ReasonImmutable       = "immutable"
	ReasonRetentionActive = "retention_active"
)
