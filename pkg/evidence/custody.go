package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// CustodyEventHash computes the hash of one custody event over its
// timestamp, event name, actor, details, and predecessor hash.
func CustodyEventHash(e CustodyEvent) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s",
		e.Timestamp.UTC().Format(time.RFC3339Nano), e.Event, e.Actor, e.Details, e.PrevHash)
	return hex.EncodeToString(h.Sum(nil))
}

// AppendCustody links an event to the chain's current tail and appends
// it. The first event carries an empty PrevHash; every later event
// embeds the hash of its predecessor, so rewriting or dropping an
// earlier event breaks the chain.
func AppendCustody(chain []CustodyEvent, e CustodyEvent) []CustodyEvent {
	e.PrevHash = ""
	if n := len(chain); n > 0 {
		e.PrevHash = CustodyEventHash(chain[n-1])
	}
	return append(chain, e)
}

// VerifyCustodyChain checks every event's PrevHash against its
// predecessor and returns a ValidationError naming the first event
// that does not link.
func VerifyCustodyChain(chain []CustodyEvent) error {
	for i, e := range chain {
		var want string
		if i > 0 {
			want = CustodyEventHash(chain[i-1])
		}
		if e.PrevHash != want {
			return NewValidationError("chainOfCustody",
				fmt.Sprintf("event %d (%s) does not link to its predecessor", i, e.Event))
		}
	}
	return nil
}
