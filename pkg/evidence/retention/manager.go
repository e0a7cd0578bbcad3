package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"custodia-hq/custodia/pkg/evidence"
	"custodia-hq/custodia/pkg/evidence/storage"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Backend is the pack store retention acts on. Required.
	Backend storage.Backend

	// Actor is the default actor for audit entries.
	Actor string

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Manager applies retention policies, legal holds, and auditable
// deletion on top of a storage backend. Operations on the same pack
// serialize; operations on distinct packs run in parallel.
type Manager struct {
	backend storage.Backend
	actor   string
	now     func() time.Time
	logger  *slog.Logger

	mu      sync.Mutex
	records map[string]*Metadata
	locks   map[string]*sync.Mutex
	audit   []DeletionAuditEntry
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Backend == nil {
		return nil, evidence.NewValidationError("backend", "storage backend is required")
	}
	actor := cfg.Actor
	if actor == "" {
		actor = "retention-manager"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		backend: cfg.Backend,
		actor:   actor,
		now:     now,
		logger:  slog.Default().With("component", "evidence.retention"),
		records: make(map[string]*Metadata),
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// packLock returns the per-pack mutex, creating it on first use.
func (m *Manager) packLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

func (m *Manager) record(id string) (*Metadata, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.records[id]
	return md, ok
}

func (m *Manager) appendAudit(entry DeletionAuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
}

// ApplyOptions carries optional ApplyRetentionPolicy parameters.
type ApplyOptions struct {
	// CustomDays is the window for PolicyCustom.
	CustomDays int

	// Immutable locks the storage object for the retention window.
	Immutable bool
}

// ApplyRetentionPolicy computes the pack's retention window and, when
// requested, locks the storage object until expiry.
func (m *Manager) ApplyRetentionPolicy(ctx context.Context, id string, policy Policy, opts ApplyOptions) (*Metadata, error) {
	lock := m.packLock(id)
	lock.Lock()
	defer lock.Unlock()

	if ok, err := m.backend.Exists(ctx, id); err != nil {
		return nil, err
	} else if !ok {
		return nil, evidence.NewNotFoundError("pack", id)
	}

	var days int
	if policy == PolicyCustom {
		if opts.CustomDays <= 0 {
			return nil, evidence.NewValidationError("customDays", "custom policy requires a positive day count")
		}
		days = opts.CustomDays
	} else {
		var err error
		days, err = policy.Days()
		if err != nil {
			return nil, evidence.NewValidationError("policy", err.Error())
		}
	}

	now := m.now().UTC()
	md := &Metadata{
		PackID:     id,
		Policy:     policy,
		Days:       days,
		AppliedAt:  now,
		Immutable:  opts.Immutable,
		HoldStatus: HoldNone,
	}
	if days != PermanentDays {
		md.ExpiresAt = now.Add(time.Duration(days) * 24 * time.Hour)
	}

	if opts.Immutable {
		until := md.ExpiresAt
		if days == PermanentDays {
			until = now.Add(holdImmutability)
		}
		if err := m.backend.SetImmutableUntil(ctx, id, until); err != nil {
			return nil, err
		}
	}

	if err := m.backend.SetMetadata(ctx, id, storage.Metadata{
		"retentionPolicy": string(policy),
		"retentionDays":   fmt.Sprintf("%d", days),
		"appliedAt":       now.Format(time.RFC3339),
	}); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.records[id] = md
	m.mu.Unlock()

	m.logger.Info("retention policy applied",
		"pack_id", id,
		"policy", policy,
		"days", days,
		"immutable", opts.Immutable)
	out := *md
	return &out, nil
}

// PlaceLegalHold marks the pack held and extends its immutability
// window indefinitely. Only the hold status and window change.
func (m *Manager) PlaceLegalHold(ctx context.Context, id, reason, placedBy string) (*Metadata, error) {
	lock := m.packLock(id)
	lock.Lock()
	defer lock.Unlock()

	md, ok := m.record(id)
	if !ok {
		return nil, evidence.NewNotFoundError("retention", id)
	}
	if md.HoldStatus == HoldActive {
		return nil, evidence.NewValidationError("hold", fmt.Sprintf("pack %s already has an active hold", id))
	}

	now := m.now().UTC()
	// The lock in force before the hold is restored on release.
	_, prior, err := m.backend.CheckImmutable(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.backend.SetImmutableUntil(ctx, id, now.Add(holdImmutability)); err != nil {
		return nil, err
	}

	m.mu.Lock()
	md.HoldStatus = HoldActive
	md.HoldID = uuid.NewString()
	md.HoldReason = reason
	md.HoldPlacedBy = placedBy
	md.HoldPlacedAt = now
	md.HoldReleasedAt = time.Time{}
	md.PriorImmutableUntil = prior
	m.mu.Unlock()

	m.logger.Warn("legal hold placed",
		"pack_id", id,
		"hold_id", md.HoldID,
		"placed_by", placedBy)
	out := *md
	return &out, nil
}

// ReleaseLegalHold releases an active hold and reinstates the backend
// immutability window that preceded it. The retention window itself
// remains in force.
func (m *Manager) ReleaseLegalHold(ctx context.Context, id, releasedBy string) (*Metadata, error) {
	lock := m.packLock(id)
	lock.Lock()
	defer lock.Unlock()

	md, ok := m.record(id)
	if !ok {
		return nil, evidence.NewNotFoundError("retention", id)
	}
	if md.HoldStatus != HoldActive {
		return nil, evidence.NewValidationError("hold", fmt.Sprintf("pack %s has no active hold", id))
	}

	if err := m.backend.RestoreImmutableUntil(ctx, id, md.PriorImmutableUntil); err != nil {
		return nil, err
	}

	m.mu.Lock()
	md.HoldStatus = HoldReleased
	md.HoldReleasedAt = m.now().UTC()
	md.PriorImmutableUntil = time.Time{}
	m.mu.Unlock()

	m.logger.Info("legal hold released",
		"pack_id", id,
		"hold_id", md.HoldID,
		"released_by", releasedBy)
	out := *md
	return &out, nil
}

// CanDelete evaluates deletion eligibility in fixed priority: active
// legal hold, then storage immutability, then the retention window.
// The reason names the highest-priority blocker.
func (m *Manager) CanDelete(ctx context.Context, id string) (bool, string, error) {
	md, err := m.Status(id)
	if err != nil {
		return false, "", err
	}

	if md.HoldStatus == HoldActive {
		return false, ReasonLegalHold, nil
	}

	// Releasing a hold restores the pre-hold lock, so the backend is
	// authoritative here.
	locked, _, err := m.backend.CheckImmutable(ctx, id)
	if err != nil {
		return false, "", err
	}
	if locked {
		return false, ReasonImmutable, nil
	}

	if md.Days == PermanentDays || m.now().UTC().Before(md.ExpiresAt) {
		return false, ReasonRetentionActive, nil
	}
	return true, "", nil
}

// ScheduleDeletion queues the pack for deletion after a grace period.
// A denial is audited and returned as a RetentionDeniedError.
func (m *Manager) ScheduleDeletion(ctx context.Context, id string, grace time.Duration, actor string) error {
	lock := m.packLock(id)
	lock.Lock()
	defer lock.Unlock()

	if actor == "" {
		actor = m.actor
	}
	now := m.now().UTC()

	allowed, reason, err := m.CanDelete(ctx, id)
	if err != nil {
		return err
	}
	if !allowed {
		m.appendAudit(DeletionAuditEntry{
			Timestamp: now, PackID: id, Action: AuditDeny, Actor: actor, Reason: reason,
		})
		return evidence.NewRetentionDeniedError(id, reason)
	}

	md, _ := m.record(id)
	m.mu.Lock()
	md.ScheduledDeletionAt = now.Add(grace)
	m.mu.Unlock()
	m.appendAudit(DeletionAuditEntry{
		Timestamp: now, PackID: id, Action: AuditSchedule, Actor: actor, Allowed: true,
		Reason: fmt.Sprintf("due %s", md.ScheduledDeletionAt.Format(time.RFC3339)),
	})
	return nil
}

// CancelDeletion clears a pending scheduled deletion.
func (m *Manager) CancelDeletion(ctx context.Context, id, actor string) error {
	lock := m.packLock(id)
	lock.Lock()
	defer lock.Unlock()

	if actor == "" {
		actor = m.actor
	}
	md, ok := m.record(id)
	if !ok {
		return evidence.NewNotFoundError("retention", id)
	}
	if md.ScheduledDeletionAt.IsZero() {
		return evidence.NewValidationError("deletion", fmt.Sprintf("pack %s has no scheduled deletion", id))
	}

	m.mu.Lock()
	md.ScheduledDeletionAt = time.Time{}
	m.mu.Unlock()
	m.appendAudit(DeletionAuditEntry{
		Timestamp: m.now().UTC(), PackID: id, Action: AuditCancel, Actor: actor, Allowed: true,
	})
	return nil
}

// ExecuteDeletion re-checks eligibility and deletes the pack. Every
// outcome is audited.
func (m *Manager) ExecuteDeletion(ctx context.Context, id, actor string) error {
	lock := m.packLock(id)
	lock.Lock()
	defer lock.Unlock()

	if actor == "" {
		actor = m.actor
	}
	now := m.now().UTC()

	allowed, reason, err := m.CanDelete(ctx, id)
	if err != nil {
		return err
	}
	if !allowed {
		m.appendAudit(DeletionAuditEntry{
			Timestamp: now, PackID: id, Action: AuditDeny, Actor: actor, Reason: reason,
		})
		return evidence.NewRetentionDeniedError(id, reason)
	}

	if err := m.backend.Delete(ctx, id); err != nil {
		m.appendAudit(DeletionAuditEntry{
			Timestamp: now, PackID: id, Action: AuditDeny, Actor: actor, Reason: err.Error(),
		})
		return err
	}

	m.mu.Lock()
	delete(m.records, id)
	m.mu.Unlock()

	m.appendAudit(DeletionAuditEntry{
		Timestamp: now, PackID: id, Action: AuditExecute, Actor: actor, Allowed: true,
	})
	m.logger.Info("evidence pack deleted", "pack_id", id, "actor", actor)
	return nil
}

// DueDeletions returns pack ids whose scheduled deletion grace period
// has elapsed.
func (m *Manager) DueDeletions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	var due []string
	for id, md := range m.records {
		if !md.ScheduledDeletionAt.IsZero() && !now.Before(md.ScheduledDeletionAt) {
			due = append(due, id)
		}
	}
	return due
}

// Sweep executes all due scheduled deletions and returns how many
// packs were removed. Denied deletions stay scheduled and audited.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	deleted := 0
	for _, id := range m.DueDeletions() {
		if err := m.ExecuteDeletion(ctx, id, m.actor); err != nil {
			m.logger.Warn("scheduled deletion failed", "pack_id", id, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Status returns a copy of the pack's retention metadata.
func (m *Manager) Status(id string) (*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.records[id]
	if !ok {
		return nil, evidence.NewNotFoundError("retention", id)
	}
	out := *md
	return &out, nil
}

// AuditLog returns a copy of the deletion audit trail.
func (m *Manager) AuditLog() []DeletionAuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DeletionAuditEntry, len(m.audit))
	copy(out, m.audit)
	return out
}
