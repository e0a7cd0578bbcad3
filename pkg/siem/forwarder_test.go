package siem

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeBackend records delivered events and can fail a configurable
// number of leading calls, or permanently.
type fakeBackend struct {
	name      string
	mu        sync.Mutex
	events    []*Event
	calls     int
	failFirst int
	permanent error
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) SendEvent(ctx context.Context, event *Event) error {
	return b.SendBatch(ctx, []*Event{event})
}

func (b *fakeBackend) SendBatch(ctx context.Context, events []*Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.permanent != nil {
		return b.permanent
	}
	if b.calls <= b.failFirst {
		return fmt.Errorf("transient failure %d", b.calls)
	}
	b.events = append(b.events, events...)
	return nil
}

func (b *fakeBackend) HealthCheck(ctx context.Context) error { return b.permanent }

func (b *fakeBackend) delivered() []*Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Event, len(b.events))
	copy(out, b.events)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestForwarder(t *testing.T, cfg ForwarderConfig) *Forwarder {
	t.Helper()
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 20 * time.Millisecond
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 2
	}
	f, err := NewForwarder(cfg)
	if err != nil {
		t.Fatalf("NewForwarder() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		f.Stop(ctx)
	})
	return f
}

func TestForwarder_RequiresBackend(t *testing.T) {
	if _, err := NewForwarder(ForwarderConfig{}); err == nil {
		t.Error("NewForwarder() accepted zero backends")
	}
}

func TestForwarder_DeliversInOrder(t *testing.T) {
	backend := &fakeBackend{name: "fake"}
	f := newTestForwarder(t, ForwarderConfig{Backends: []Backend{backend}})

	var want []string
	for i := 0; i < 5; i++ {
		e := NewEvent(fmt.Sprintf("event.%d", i), SeverityInfo, "exec-1")
		want = append(want, e.EventType)
		f.Send(e)
	}

	waitFor(t, func() bool { return len(backend.delivered()) == 5 })
	for i, e := range backend.delivered() {
		if e.EventType != want[i] {
			t.Errorf("event %d = %s, want %s", i, e.EventType, want[i])
		}
	}
	if n := f.dead.Count(); n != 0 {
		t.Errorf("dead-letter count = %d", n)
	}
}

func TestForwarder_FansOutToAllBackends(t *testing.T) {
	a := &fakeBackend{name: "a"}
	b := &fakeBackend{name: "b"}
	f := newTestForwarder(t, ForwarderConfig{Backends: []Backend{a, b}})

	f.Send(NewEvent("event.one", SeverityInfo, "exec-1"))

	waitFor(t, func() bool { return len(a.delivered()) == 1 && len(b.delivered()) == 1 })
}

func TestForwarder_RetriesTransientFailure(t *testing.T) {
	backend := &fakeBackend{name: "flaky", failFirst: 1}
	f := newTestForwarder(t, ForwarderConfig{
		Backends:      []Backend{backend},
		RetryAttempts: 3,
	})

	f.Send(NewEvent("event.one", SeverityInfo, "exec-1"))

	waitFor(t, func() bool { return len(backend.delivered()) == 1 })
	if n := f.dead.Count(); n != 0 {
		t.Errorf("dead-letter count = %d after successful retry", n)
	}
}

func TestForwarder_DeadLettersPermanentFailure(t *testing.T) {
	backend := &fakeBackend{name: "down", permanent: errors.New("connection refused")}
	f := newTestForwarder(t, ForwarderConfig{
		Backends:      []Backend{backend},
		RetryAttempts: 2,
	})

	e := NewEvent("event.one", SeverityHigh, "exec-1")
	f.Send(e)

	waitFor(t, func() bool { return f.dead.Count() == 1 })
	dead := f.DeadLetterEvents()
	if dead[0].Event.ID != e.ID {
		t.Errorf("dead-lettered event %s, want %s", dead[0].Event.ID, e.ID)
	}
	if dead[0].Backend != "down" || dead[0].Attempts != 2 {
		t.Errorf("dead-letter entry = %+v", dead[0])
	}
	if dead[0].Reason != DeadLetterDeliveryFailed {
		t.Errorf("Reason = %q, want %q", dead[0].Reason, DeadLetterDeliveryFailed)
	}
	if dead[0].LastError == "" {
		t.Error("dead-letter entry has no error")
	}
}

func TestForwarder_PartialBackendFailure(t *testing.T) {
	healthy := &fakeBackend{name: "healthy"}
	down := &fakeBackend{name: "down", permanent: errors.New("boom")}
	f := newTestForwarder(t, ForwarderConfig{Backends: []Backend{healthy, down}})

	f.Send(NewEvent("event.one", SeverityInfo, "exec-1"))

	waitFor(t, func() bool { return len(healthy.delivered()) == 1 && f.dead.Count() == 1 })
	if f.DeadLetterEvents()[0].Backend != "down" {
		t.Errorf("dead-lettered against backend %q", f.DeadLetterEvents()[0].Backend)
	}
}

// blockingBackend parks every SendBatch until release is closed,
// keeping the flush loop busy so the intake buffer can fill.
type blockingBackend struct {
	name    string
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Name() string { return b.name }

func (b *blockingBackend) SendEvent(ctx context.Context, event *Event) error {
	return b.SendBatch(ctx, []*Event{event})
}

func (b *blockingBackend) SendBatch(ctx context.Context, events []*Event) error {
	b.entered <- struct{}{}
	<-b.release
	return nil
}

func (b *blockingBackend) HealthCheck(ctx context.Context) error { return nil }

func TestForwarder_OverflowSpillsToDeadLetter(t *testing.T) {
	backend := &blockingBackend{
		name:    "slow",
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
	f := newTestForwarder(t, ForwarderConfig{
		Backends:   []Backend{backend},
		BufferSize: 1,
		BatchSize:  1,
	})
	defer close(backend.release)

	f.Send(NewEvent("event.0", SeverityInfo, "exec-1"))
	<-backend.entered // first delivery in flight, flush loop parked

	f.Send(NewEvent("event.1", SeverityInfo, "exec-1")) // fills the buffer
	overflowed := NewEvent("event.2", SeverityInfo, "exec-1")
	f.Send(overflowed)

	dead := f.DeadLetterEvents()
	if len(dead) != 1 {
		t.Fatalf("dead-letter count = %d, want 1", len(dead))
	}
	if dead[0].Event.ID != overflowed.ID {
		t.Errorf("dead-lettered event %s, want %s", dead[0].Event.ID, overflowed.ID)
	}
	if dead[0].Reason != DeadLetterOverflow {
		t.Errorf("Reason = %q, want %q", dead[0].Reason, DeadLetterOverflow)
	}
	if dead[0].Attempts != 0 {
		t.Errorf("Attempts = %d for an event that was never attempted", dead[0].Attempts)
	}
}

func TestForwarder_StopDrainsBuffer(t *testing.T) {
	backend := &fakeBackend{name: "fake"}
	f, err := NewForwarder(ForwarderConfig{
		Backends:      []Backend{backend},
		FlushInterval: time.Hour, // only the drain can deliver
		RetryAttempts: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		f.Send(NewEvent(fmt.Sprintf("event.%d", i), SeverityInfo, "exec-1"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := len(backend.delivered()); got != 10 {
		t.Errorf("delivered %d events after Stop, want 10", got)
	}
}

func TestForwarder_SendAfterStopDeadLetters(t *testing.T) {
	backend := &fakeBackend{name: "fake"}
	f, err := NewForwarder(ForwarderConfig{Backends: []Backend{backend}})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	f.Send(NewEvent("event.late", SeverityInfo, "exec-1"))
	if f.dead.Count() != 1 {
		t.Errorf("dead-letter count = %d, want 1", f.dead.Count())
	}
	if got := f.DeadLetterEvents()[0].Reason; got != DeadLetterStopped {
		t.Errorf("Reason = %q, want %q", got, DeadLetterStopped)
	}
}

func TestForwarder_SendImmediate(t *testing.T) {
	healthy := &fakeBackend{name: "healthy"}
	f := newTestForwarder(t, ForwarderConfig{Backends: []Backend{healthy}, RetryAttempts: 1})

	if !f.SendImmediate(context.Background(), NewEvent("event.now", SeverityCritical, "exec-1")) {
		t.Error("SendImmediate() = false against a healthy backend")
	}
	if len(healthy.delivered()) != 1 {
		t.Errorf("delivered %d events", len(healthy.delivered()))
	}
}

func TestForwarder_SendImmediateFailure(t *testing.T) {
	down := &fakeBackend{name: "down", permanent: errors.New("boom")}
	f := newTestForwarder(t, ForwarderConfig{Backends: []Backend{down}, RetryAttempts: 1})

	if f.SendImmediate(context.Background(), NewEvent("event.now", SeverityCritical, "exec-1")) {
		t.Error("SendImmediate() = true against a failing backend")
	}
	if f.dead.Count() != 1 {
		t.Errorf("dead-letter count = %d, want 1", f.dead.Count())
	}
}

func TestHECBackend_SendBatch(t *testing.T) {
	var gotAuth, gotContentType string
	var envelopes []hecEnvelope

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		dec := json.NewDecoder(r.Body)
		for dec.More() {
			var env hecEnvelope
			if err := dec.Decode(&env); err != nil {
				t.Errorf("decode envelope: %v", err)
				break
			}
			envelopes = append(envelopes, env)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := NewHECBackend(HECConfig{URL: srv.URL, Token: "secret-token"})
	events := []*Event{
		NewEvent("event.one", SeverityInfo, "exec-1"),
		NewEvent("event.two", SeverityInfo, "exec-1"),
	}
	if err := b.SendBatch(context.Background(), events); err != nil {
		t.Fatalf("SendBatch() error = %v", err)
	}

	if gotAuth != "Splunk secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if len(envelopes) != 2 {
		t.Fatalf("received %d envelopes, want 2", len(envelopes))
	}
	if envelopes[0].SourceType != "custodia:audit" || envelopes[0].Event.EventType != "event.one" {
		t.Errorf("envelope = %+v", envelopes[0])
	}
}

func TestHECBackend_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusForbidden)
	}))
	defer srv.Close()

	b := NewHECBackend(HECConfig{URL: srv.URL})
	if err := b.SendEvent(context.Background(), NewEvent("event.one", SeverityInfo, "exec-1")); err == nil {
		t.Error("SendEvent() succeeded against a 403 collector")
	}
}

func TestLogsAPIBackend_SendBatch(t *testing.T) {
	var gotKey string
	var batch []*Event

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Errorf("decode batch: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b := NewLogsAPIBackend(LogsAPIConfig{URL: srv.URL, APIKey: "key-1"})
	if err := b.SendBatch(context.Background(), []*Event{NewEvent("event.one", SeverityInfo, "exec-1")}); err != nil {
		t.Fatalf("SendBatch() error = %v", err)
	}
	if gotKey != "key-1" || len(batch) != 1 {
		t.Errorf("key = %q, batch = %v", gotKey, batch)
	}
}

func TestBulkIndexBackend_SendBatch(t *testing.T) {
	var lines []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_bulk" {
			t.Errorf("path = %q", r.URL.Path)
		}
		scanner := bufio.NewScanner(r.Body)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		fmt.Fprint(w, `{"errors":false}`)
	}))
	defer srv.Close()

	b := NewBulkIndexBackend(BulkIndexConfig{URL: srv.URL, Index: "audit-2026"})
	events := []*Event{
		NewEvent("event.one", SeverityInfo, "exec-1"),
		NewEvent("event.two", SeverityInfo, "exec-1"),
	}
	if err := b.SendBatch(context.Background(), events); err != nil {
		t.Fatalf("SendBatch() error = %v", err)
	}
	if len(lines) != 4 {
		t.Fatalf("bulk body has %d lines, want 4 action/document pairs", len(lines))
	}

	var action struct {
		Index struct {
			Index string `json:"_index"`
			ID    string `json:"_id"`
		} `json:"index"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &action); err != nil {
		t.Fatal(err)
	}
	if action.Index.Index != "audit-2026" || action.Index.ID != events[0].ID {
		t.Errorf("action line = %+v", action.Index)
	}
}

func TestBulkIndexBackend_ItemErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":true}`)
	}))
	defer srv.Close()

	b := NewBulkIndexBackend(BulkIndexConfig{URL: srv.URL})
	if err := b.SendEvent(context.Background(), NewEvent("event.one", SeverityInfo, "exec-1")); err == nil {
		t.Error("SendEvent() ignored item-level bulk errors")
	}
}
