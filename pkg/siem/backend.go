package siem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Backend delivers events to one SIEM destination. SendBatch delivers
// events in order; a batch either fully succeeds or returns an error
// and the forwarder retries the whole batch.
type Backend interface {
	Name() string
	SendEvent(ctx context.Context, event *Event) error
	SendBatch(ctx context.Context, events []*Event) error
	HealthCheck(ctx context.Context) error
}

const defaultHTTPTimeout = 10 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// drainBody discards the response body so connections are reused.
func drainBody(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

// HECBackend posts events to an HTTP Event Collector endpoint, one
// JSON envelope per event, newline separated.
type HECBackend struct {
	name       string
	url        string
	token      string
	sourceType string
	client     *http.Client
}

// HECConfig configures a HECBackend.
type HECConfig struct {
	Name string
	// URL is the collector endpoint, typically .../services/collector/event.
	URL        string
	Token      string
	SourceType string
	Timeout    time.Duration
}

func NewHECBackend(cfg HECConfig) *HECBackend {
	name := cfg.Name
	if name == "" {
		name = "hec"
	}
	sourceType := cfg.SourceType
	if sourceType == "" {
		sourceType = "custodia:audit"
	}
	return &HECBackend{
		name:       name,
		url:        cfg.URL,
		token:      cfg.Token,
		sourceType: sourceType,
		client:     newHTTPClient(cfg.Timeout),
	}
}

func (b *HECBackend) Name() string { return b.name }

type hecEnvelope struct {
	Time       float64 `json:"time"`
	SourceType string  `json:"sourcetype"`
	Event      *Event  `json:"event"`
}

func (b *HECBackend) SendEvent(ctx context.Context, event *Event) error {
	return b.SendBatch(ctx, []*Event{event})
}

func (b *HECBackend) SendBatch(ctx context.Context, events []*Event) error {
	if len(events) == 0 {
		return nil
	}
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, e := range events {
		env := hecEnvelope{
			Time:       float64(e.Timestamp.UnixNano()) / float64(time.Second),
			SourceType: b.sourceType,
			Event:      e,
		}
		if err := enc.Encode(env); err != nil {
			return fmt.Errorf("failed to encode event %s: %w", e.ID, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		req.Header.Set("Authorization", "Splunk "+b.token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("collector request failed: %w", err)
	}
	defer drainBody(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}
	return nil
}

func (b *HECBackend) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return err
	}
	if b.token != "" {
		req.Header.Set("Authorization", "Splunk "+b.token)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	drainBody(resp)
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("collector unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// LogsAPIBackend posts event batches as a JSON array to a structured
// logs ingestion API authenticated with an API key header.
type LogsAPIBackend struct {
	name   string
	url    string
	apiKey string
	client *http.Client
}

// LogsAPIConfig configures a LogsAPIBackend.
type LogsAPIConfig struct {
	Name    string
	URL     string
	APIKey  string
	Timeout time.Duration
}

func NewLogsAPIBackend(cfg LogsAPIConfig) *LogsAPIBackend {
	name := cfg.Name
	if name == "" {
		name = "logs-api"
	}
	return &LogsAPIBackend{
		name:   name,
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: newHTTPClient(cfg.Timeout),
	}
}

func (b *LogsAPIBackend) Name() string { return b.name }

func (b *LogsAPIBackend) SendEvent(ctx context.Context, event *Event) error {
	return b.SendBatch(ctx, []*Event{event})
}

func (b *LogsAPIBackend) SendBatch(ctx context.Context, events []*Event) error {
	if len(events) == 0 {
		return nil
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("X-API-Key", b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("logs API request failed: %w", err)
	}
	defer drainBody(resp)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("logs API returned status %d", resp.StatusCode)
	}
	return nil
}

func (b *LogsAPIBackend) HealthCheck(ctx context.Context) error {
	return b.SendBatch(ctx, nil)
}

// BulkIndexBackend writes events to a search cluster's bulk indexing
// API using newline-delimited action/document pairs.
type BulkIndexBackend struct {
	name   string
	url    string
	index  string
	client *http.Client
}

// BulkIndexConfig configures a BulkIndexBackend.
type BulkIndexConfig struct {
	Name string
	// URL is the cluster base URL; the backend appends /_bulk.
	URL     string
	Index   string
	Timeout time.Duration
}

func NewBulkIndexBackend(cfg BulkIndexConfig) *BulkIndexBackend {
	name := cfg.Name
	if name == "" {
		name = "bulk-index"
	}
	index := cfg.Index
	if index == "" {
		index = "custodia-audit"
	}
	return &BulkIndexBackend{
		name:   name,
		url:    cfg.URL,
		index:  index,
		client: newHTTPClient(cfg.Timeout),
	}
}

func (b *BulkIndexBackend) Name() string { return b.name }

func (b *BulkIndexBackend) SendEvent(ctx context.Context, event *Event) error {
	return b.SendBatch(ctx, []*Event{event})
}

func (b *BulkIndexBackend) SendBatch(ctx context.Context, events []*Event) error {
	if len(events) == 0 {
		return nil
	}
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, e := range events {
		action := map[string]map[string]string{
			"index": {"_index": b.index, "_id": e.ID},
		}
		if err := enc.Encode(action); err != nil {
			return err
		}
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode event %s: %w", e.ID, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url+"/_bulk", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("bulk API returned status %d", resp.StatusCode)
	}

	// The bulk API reports per-item failures inside a 200 response.
	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err == nil && result.Errors {
		return fmt.Errorf("bulk response reported item-level errors")
	}
	return nil
}

func (b *BulkIndexBackend) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	drainBody(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cluster unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
