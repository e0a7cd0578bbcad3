package evidence

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestClassificationSet_OrderAndDedup(t *testing.T) {
	cs := NewClassificationSet()
	cs.Add("ssn", "email")
	cs.Add("email", "credit_card")
	cs.Add("", "ssn")

	got := cs.Labels()
	want := []string{"ssn", "email", "credit_card"}

	if len(got) != len(want) {
		t.Fatalf("Labels() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Labels()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestClassificationSet_CopyIsolation(t *testing.T) {
	cs := NewClassificationSet()
	cs.Add("ssn")

	labels := cs.Labels()
	labels[0] = "mutated"

	if cs.Labels()[0] != "ssn" {
		t.Errorf("Labels() returned a shared slice")
	}
}

func TestManifest_JSONFieldNames(t *testing.T) {
	m := Manifest{
		FormatVersion: FormatVersion,
		PackID:        "pack-1",
		ExecutionID:   "exec-1",
		BotID:         "bot-1",
		TenantID:      "tenant-1",
		StartedAt:     time.Now().UTC(),
		FinishedAt:    time.Now().UTC(),
		Integrity: Integrity{
			ChecksumAlgorithm: ChecksumAlgorithm,
			ManifestChecksum:  "abc",
		},
		ChainOfCustody: []CustodyEvent{
			{Timestamp: time.Now().UTC(), Event: "created", Actor: "runner"},
		},
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	// The wire format is camelCase and stable across releases.
	for _, field := range []string{
		"formatVersion", "packId", "executionId", "botId", "tenantId",
		"startedAt", "finishedAt", "statistics", "classification",
		"integrity", "checksumAlgorithm", "manifestChecksum", "chainOfCustody",
	} {
		if !strings.Contains(string(data), `"`+field+`"`) {
			t.Errorf("manifest JSON missing field %q: %s", field, data)
		}
	}
}

func TestHashBytes_Deterministic(t *testing.T) {
	h1 := HashBytes([]byte("evidence"))
	h2 := HashBytes([]byte("evidence"))
	if h1 != h2 {
		t.Errorf("HashBytes() not deterministic: %v, %v", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("HashBytes() length = %d, want 64", len(h1))
	}
}

func TestHashBytes_Distinct(t *testing.T) {
	if HashBytes([]byte("a")) == HashBytes([]byte("b")) {
		t.Error("HashBytes() collision on distinct inputs")
	}
}

func TestErrors_Messages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation",
			err:  NewValidationError("executionId", "must not be empty"),
			want: "field=executionId",
		},
		{
			name: "not found",
			err:  NewNotFoundError("pack", "exec-7"),
			want: "pack not found: exec-7",
		},
		{
			name: "already finalized",
			err:  NewAlreadyFinalizedError("exec-7", "RecordLineage"),
			want: "operation=RecordLineage",
		},
		{
			name: "retention denied",
			err:  NewRetentionDeniedError("exec-7", "legal_hold"),
			want: "reason=legal_hold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.err.Error(), tt.want) {
				t.Errorf("Error() = %v, want substring %v", tt.err.Error(), tt.want)
			}
		})
	}
}
