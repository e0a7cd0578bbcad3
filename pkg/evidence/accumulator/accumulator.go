package accumulator

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"custodia-hq/custodia/pkg/evidence"
	"custodia-hq/custodia/pkg/redaction"
	"custodia-hq/custodia/pkg/signing"
)

// State is the accumulator lifecycle state.
type State int32

const (
	StateCreated State = iota
	StateRecording
	StateFinalized
	StatePersisted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRecording:
		return "recording"
	case StateFinalized:
		return "finalized"
	case StatePersisted:
		return "persisted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// PackSigner signs pack content. *signing.Signer satisfies it.
type PackSigner interface {
	Sign(ctx context.Context, content []byte) (*signing.SignatureMetadata, error)
}

// registry enforces one live accumulator per execution id.
var registry = struct {
	mu     sync.Mutex
	active map[string]*Accumulator
}{active: make(map[string]*Accumulator)}

// Config configures an Accumulator.
type Config struct {
	// ExecutionID identifies the bot execution. Required and unique
	// among live accumulators.
	ExecutionID string

	// BotID identifies the bot definition. Required.
	BotID string

	// BotVersion is the bot definition version.
	BotVersion string

	// TenantID identifies the owning tenant. Required.
	TenantID string

	// Actor is recorded in custody events. Defaults to "runner".
	Actor string

	// RunnerVersion is recorded in the manifest environment.
	RunnerVersion string

	// Pipeline redacts screenshots. Without it CaptureScreenshot
	// rejects all images rather than storing them unredacted.
	Pipeline *redaction.Pipeline

	// Signer signs the persisted manifest. Optional.
	Signer PackSigner

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// ScreenshotOptions carries per-capture parameters.
type ScreenshotOptions struct {
	NodeID      string
	Description string

	// Regions are caller-known sensitive areas redacted in addition
	// to whatever OCR finds.
	Regions []image.Rectangle
}

// Accumulator gathers redacted evidence for one execution.
type Accumulator struct {
	mu    sync.Mutex
	state State

	executionID   string
	packID        string
	botID         string
	botVersion    string
	tenantID      string
	actor         string
	runnerVersion string
	startedAt     time.Time

	detector *redaction.Detector
	pipeline *redaction.Pipeline
	signer   PackSigner
	now      func() time.Time
	logger   *slog.Logger

	lineage     []evidence.DataLineageEntry
	decisions   []evidence.AgentDecision
	compliance  []evidence.ComplianceResult
	screenshots []evidence.Screenshot
	logs        []evidence.LogEntry
	custody     []evidence.CustodyEvent

	classification *evidence.ClassificationSet

	nodesExecuted  int
	nodesSucceeded int
	nodesFailed    int

	pack *evidence.Pack
}

// New creates and registers an accumulator. A second accumulator for
// the same execution id is rejected until the first is persisted or
// closed.
func New(cfg Config) (*Accumulator, error) {
	if cfg.ExecutionID == "" {
		return nil, evidence.NewValidationError("executionId", "must not be empty")
	}
	if cfg.BotID == "" {
		return nil, evidence.NewValidationError("botId", "must not be empty")
	}
	if cfg.TenantID == "" {
		return nil, evidence.NewValidationError("tenantId", "must not be empty")
	}

	actor := cfg.Actor
	if actor == "" {
		actor = "runner"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	var detector *redaction.Detector
	if cfg.Pipeline != nil {
		detector = cfg.Pipeline.Detector()
	} else {
		detector = redaction.NewDetector()
	}

	a := &Accumulator{
		state:          StateCreated,
		executionID:    cfg.ExecutionID,
		packID:         uuid.NewString(),
		botID:          cfg.BotID,
		botVersion:     cfg.BotVersion,
		tenantID:       cfg.TenantID,
		actor:          actor,
		runnerVersion:  cfg.RunnerVersion,
		startedAt:      now().UTC(),
		detector:       detector,
		pipeline:       cfg.Pipeline,
		signer:         cfg.Signer,
		now:            now,
		logger:         slog.Default().With("component", "evidence.accumulator", "execution_id", cfg.ExecutionID),
		classification: evidence.NewClassificationSet(),
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.active[cfg.ExecutionID]; exists {
		return nil, evidence.NewValidationError("executionId",
			fmt.Sprintf("an accumulator is already active for execution %s", cfg.ExecutionID))
	}
	registry.active[cfg.ExecutionID] = a

	a.custody = evidence.AppendCustody(a.custody, evidence.CustodyEvent{
		Timestamp: a.startedAt,
		Event:     "created",
		Actor:     actor,
	})
	return a, nil
}

// Close releases the registry slot without persisting. Packs already
// finalized stay finalized.
func (a *Accumulator) Close() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.active[a.executionID] == a {
		delete(registry.active, a.executionID)
	}
}

// State returns the current lifecycle state.
func (a *Accumulator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// ExecutionID returns the execution this accumulator serves.
func (a *Accumulator) ExecutionID() string {
	return a.executionID
}

// beginRecording moves created → recording and rejects recording after
// finalize. Callers hold a.mu.
func (a *Accumulator) beginRecording(op string) error {
	switch a.state {
	case StateCreated:
		a.state = StateRecording
	case StateRecording:
	default:
		return evidence.NewAlreadyFinalizedError(a.executionID, op)
	}
	return nil
}

// RecordLineage records a data movement. Free-text fields are
// redacted; any detected categories join the classification set.
func (a *Accumulator) RecordLineage(ctx context.Context, entry evidence.DataLineageEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.beginRecording("RecordLineage"); err != nil {
		return err
	}
	if entry.Source == "" || entry.Destination == "" {
		return evidence.NewValidationError("lineage", "source and destination are required")
	}

	entry.ID = uuid.NewString()
	entry.Timestamp = a.now().UTC()
	entry.Source = a.redactField(entry.Source)
	entry.Destination = a.redactField(entry.Destination)
	entry.Operation = a.redactField(entry.Operation)
	for i, f := range entry.FieldNames {
		entry.FieldNames[i] = a.redactField(f)
	}

	a.classification.Add(entry.Classification...)
	a.lineage = append(a.lineage, entry)
	entriesRecorded.WithLabelValues("lineage").Inc()
	return nil
}

// RecordDecision records an autonomous decision with redacted input
// and reasoning.
func (a *Accumulator) RecordDecision(ctx context.Context, decision evidence.AgentDecision) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.beginRecording("RecordDecision"); err != nil {
		return err
	}
	if decision.DecisionType == "" {
		return evidence.NewValidationError("decisionType", "must not be empty")
	}

	decision.ID = uuid.NewString()
	decision.Timestamp = a.now().UTC()
	decision.InputSummary = a.redactField(decision.InputSummary)
	decision.Outcome = a.redactField(decision.Outcome)
	decision.Reasoning = a.redactField(decision.Reasoning)

	a.decisions = append(a.decisions, decision)
	entriesRecorded.WithLabelValues("decision").Inc()
	return nil
}

// RecordComplianceCheck records a control check outcome.
func (a *Accumulator) RecordComplianceCheck(ctx context.Context, result evidence.ComplianceResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.beginRecording("RecordComplianceCheck"); err != nil {
		return err
	}
	if result.Framework == "" || result.ControlID == "" {
		return evidence.NewValidationError("compliance", "framework and controlId are required")
	}
	switch result.Status {
	case evidence.StatusPassed, evidence.StatusFailed, evidence.StatusPartiallyMet,
		evidence.StatusRequiresReview, evidence.StatusNotApplicable:
	default:
		return evidence.NewValidationError("status", fmt.Sprintf("unknown compliance status %q", result.Status))
	}

	result.ID = uuid.NewString()
	result.Timestamp = a.now().UTC()
	result.Details = a.redactField(result.Details)

	a.compliance = append(a.compliance, result)
	entriesRecorded.WithLabelValues("compliance").Inc()
	return nil
}

// AddLog appends an execution log line, redacted at write time.
func (a *Accumulator) AddLog(ctx context.Context, level evidence.LogLevel, nodeID, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.beginRecording("AddLog"); err != nil {
		return err
	}

	a.logs = append(a.logs, evidence.LogEntry{
		Timestamp: a.now().UTC(),
		Level:     level,
		NodeID:    nodeID,
		Message:   a.redactField(message),
	})
	entriesRecorded.WithLabelValues("log").Inc()
	return nil
}

// CaptureScreenshot redacts and records a screenshot. Without a
// redaction pipeline every capture is rejected, screenshots are never
// stored unredacted.
func (a *Accumulator) CaptureScreenshot(ctx context.Context, pngData []byte, opts ScreenshotOptions) (*evidence.ScreenshotEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.beginRecording("CaptureScreenshot"); err != nil {
		return nil, err
	}
	if a.pipeline == nil {
		return nil, evidence.NewValidationError("pipeline", "no redaction pipeline configured, refusing unredacted screenshot")
	}

	redacted, result, err := a.pipeline.RedactImage(ctx, pngData, opts.Regions...)
	if err != nil {
		return nil, err
	}

	entry := evidence.ScreenshotEntry{
		ID:               uuid.NewString(),
		Timestamp:        a.now().UTC(),
		NodeID:           opts.NodeID,
		Filename:         fmt.Sprintf("screenshot_%03d.png", len(a.screenshots)+1),
		SHA256:           evidence.HashBytes(redacted),
		Description:      a.redactField(opts.Description),
		RedactionApplied: result.RedactedRegions > 0,
		RedactedRegions:  result.RedactedRegions,
		RedactedTypes:    result.Types,
	}
	if result.FailedOpen {
		a.custody = evidence.AppendCustody(a.custody, evidence.CustodyEvent{
			Timestamp: entry.Timestamp,
			Event:     "screenshot_unredacted",
			Actor:     a.actor,
			Details:   entry.Filename,
		})
	}

	a.classification.Add(result.Types...)
	a.screenshots = append(a.screenshots, evidence.Screenshot{Entry: entry, Data: redacted})
	entriesRecorded.WithLabelValues("screenshot").Inc()
	return &entry, nil
}

// RecordNodeStart counts a node execution.
func (a *Accumulator) RecordNodeStart(ctx context.Context, nodeID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.beginRecording("RecordNodeStart"); err != nil {
		return err
	}
	a.nodesExecuted++
	return nil
}

// RecordNodeSuccess counts a successful node completion.
func (a *Accumulator) RecordNodeSuccess(ctx context.Context, nodeID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.beginRecording("RecordNodeSuccess"); err != nil {
		return err
	}
	a.nodesSucceeded++
	return nil
}

// RecordNodeFailure counts a failed node and logs the redacted reason.
func (a *Accumulator) RecordNodeFailure(ctx context.Context, nodeID, reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.beginRecording("RecordNodeFailure"); err != nil {
		return err
	}
	a.nodesFailed++
	a.logs = append(a.logs, evidence.LogEntry{
		Timestamp: a.now().UTC(),
		Level:     evidence.LogError,
		NodeID:    nodeID,
		Message:   a.redactField(reason),
	})
	return nil
}

// Finalize freezes the accumulator and builds the immutable pack. It
// is callable exactly once; a repeat call returns AlreadyFinalizedError
// and leaves the pack untouched.
func (a *Accumulator) Finalize(ctx context.Context) (*evidence.Pack, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pack != nil {
		return nil, evidence.NewAlreadyFinalizedError(a.executionID, "Finalize")
	}

	finishedAt := a.now().UTC()
	a.custody = evidence.AppendCustody(a.custody, evidence.CustodyEvent{
		Timestamp: finishedAt,
		Event:     "finalized",
		Actor:     a.actor,
	})
	a.state = StateFinalized

	hostname, _ := os.Hostname()
	manifest := evidence.Manifest{
		FormatVersion: evidence.FormatVersion,
		PackID:        a.packID,
		ExecutionID:   a.executionID,
		BotID:         a.botID,
		BotVersion:    a.botVersion,
		TenantID:      a.tenantID,
		Environment: evidence.Environment{
			Hostname:      hostname,
			OS:            runtime.GOOS,
			RunnerVersion: a.runnerVersion,
		},
		StartedAt:  a.startedAt,
		FinishedAt: finishedAt,
		Statistics: evidence.Statistics{
			LineageEntries:   len(a.lineage),
			Decisions:        len(a.decisions),
			ComplianceChecks: len(a.compliance),
			Screenshots:      len(a.screenshots),
			LogEntries:       len(a.logs),
			NodesExecuted:    a.nodesExecuted,
			NodesSucceeded:   a.nodesSucceeded,
			NodesFailed:      a.nodesFailed,
		},
		Classification: a.classification.Labels(),
		Integrity: evidence.Integrity{
			ChecksumAlgorithm: evidence.ChecksumAlgorithm,
		},
		ChainOfCustody: append([]evidence.CustodyEvent(nil), a.custody...),
	}

	a.pack = &evidence.Pack{
		Manifest:    manifest,
		Lineage:     append([]evidence.DataLineageEntry(nil), a.lineage...),
		Decisions:   append([]evidence.AgentDecision(nil), a.decisions...),
		Compliance:  append([]evidence.ComplianceResult(nil), a.compliance...),
		Screenshots: append([]evidence.Screenshot(nil), a.screenshots...),
		Logs:        append([]evidence.LogEntry(nil), a.logs...),
	}

	a.logger.Info("evidence pack finalized",
		"pack_id", a.packID,
		"lineage", len(a.lineage),
		"decisions", len(a.decisions),
		"screenshots", len(a.screenshots),
		"classification", manifest.Classification)
	return a.pack, nil
}

// redactField passes a free-text field through the detector and folds
// any findings into the classification set. Callers hold a.mu.
func (a *Accumulator) redactField(text string) string {
	if text == "" {
		return text
	}
	redacted, spans := a.detector.RedactText(text)
	for _, s := range spans {
		a.classification.Add(string(s.Type))
	}
	return redacted
}
