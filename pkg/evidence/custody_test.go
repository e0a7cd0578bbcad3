package evidence

import (
	"testing"
	"time"
)

func testCustodyChain(t *testing.T) []CustodyEvent {
	t.Helper()
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	var chain []CustodyEvent
	for i, event := range []string{"created", "finalized", "signed", "persisted"} {
		chain = AppendCustody(chain, CustodyEvent{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Event:     event,
			Actor:     "runner",
		})
	}
	return chain
}

func TestAppendCustody_LinksEvents(t *testing.T) {
	chain := testCustodyChain(t)

	if chain[0].PrevHash != "" {
		t.Errorf("first event PrevHash = %q, want empty", chain[0].PrevHash)
	}
	for i := 1; i < len(chain); i++ {
		if chain[i].PrevHash != CustodyEventHash(chain[i-1]) {
			t.Errorf("event %d (%s) not linked to predecessor", i, chain[i].Event)
		}
	}
	if err := VerifyCustodyChain(chain); err != nil {
		t.Errorf("VerifyCustodyChain() error = %v on a fresh chain", err)
	}
}

func TestVerifyCustodyChain_DetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(chain []CustodyEvent) []CustodyEvent
	}{
		{
			name: "rewritten event",
			mutate: func(chain []CustodyEvent) []CustodyEvent {
				chain[1].Actor = "intruder"
				return chain
			},
		},
		{
			name: "dropped event",
			mutate: func(chain []CustodyEvent) []CustodyEvent {
				return append(chain[:1], chain[2:]...)
			},
		},
		{
			name: "inserted event",
			mutate: func(chain []CustodyEvent) []CustodyEvent {
				forged := CustodyEvent{
					Timestamp: chain[1].Timestamp,
					Event:     "hold_released",
					Actor:     "intruder",
				}
				out := append([]CustodyEvent{}, chain[:2]...)
				out = append(out, forged)
				return append(out, chain[2:]...)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := tt.mutate(testCustodyChain(t))
			if err := VerifyCustodyChain(chain); err == nil {
				t.Error("VerifyCustodyChain() accepted a tampered chain")
			}
		})
	}
}

func TestVerifyCustodyChain_EmptyChain(t *testing.T) {
	if err := VerifyCustodyChain(nil); err != nil {
		t.Errorf("VerifyCustodyChain(nil) error = %v", err)
	}
}

func TestCustodyEventHash_CoversAllFields(t *testing.T) {
	base := CustodyEvent{
		Timestamp: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		Event:     "created",
		Actor:     "runner",
		Details:   "d",
		PrevHash:  "p",
	}
	h := CustodyEventHash(base)

	variants := []CustodyEvent{base, base, base, base, base}
	variants[0].Timestamp = base.Timestamp.Add(time.Nanosecond)
	variants[1].Event = "finalized"
	variants[2].Actor = "other"
	variants[3].Details = "x"
	variants[4].PrevHash = "q"
	for i, v := range variants {
		if CustodyEventHash(v) == h {
			t.Errorf("variant %d hashes identically to the base event", i)
		}
	}
}
