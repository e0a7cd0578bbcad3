// Package siem forwards audit events to SIEM backends with
// at-least-once delivery.
//
// # Architecture
//
// Events carry identifiers and classification labels only, never
// payload data, and serialize to JSON, CEF, and LEEF. The Forwarder
// buffers events and flushes batches to every configured Backend in
// parallel, sequentially within each backend. Each backend sits behind
// a circuit breaker; failed batches retry with exponential backoff and
// exhausted events land in a DeadLetter queue, optionally persisted to
// SQLite, retrievable via DeadLetterEvents.
//
// # Basic Usage
//
//	fwd, err := siem.NewForwarder(siem.ForwarderConfig{
//		Backends: []siem.Backend{siem.NewHECBackend(siem.HECConfig{URL: url, Token: token})},
//	})
//	if err != nil {
//		return err
//	}
//	defer fwd.Stop(ctx)
//
//	evt := siem.NewEvent("evidence.pack.persisted", siem.SeverityInfo, executionID)
//	evt.Category = siem.CategoryEvidence
//	evt.Outcome = siem.OutcomeSuccess
//	fwd.Send(evt)
package siem
