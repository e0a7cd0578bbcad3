// Package retention enforces retention policies, legal holds, and
// auditable deletion for persisted evidence packs.
//
// A named policy maps to a retention window; applying one computes the
// expiry and optionally locks the storage object for the window. Legal
// holds override every other rule: CanDelete evaluates an active hold
// first, then storage immutability, then the retention window, and
// cites the highest-priority blocker.
//
// Every deletion attempt, including denials, appends an immutable
// DeletionAuditEntry. Scheduled deletions carry a grace period and are
// executed by a cron-driven Scheduler sweep.
package retention
