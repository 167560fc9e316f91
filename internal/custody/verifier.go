package custody

import (
	"fmt"
	"time"

	"github.com/animus-labs/custody/internal/platform/digest"
)

// Report is the outcome of verifying one chain.
type Report struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

// Verifier re-derives a chain of custody from scratch. It holds no mutable
// state and is safe for concurrent use.
type Verifier struct {
	cfg Config
}

func NewVerifier(cfg Config) *Verifier {
	return &Verifier{cfg: cfg}
}

// Verify walks events in the given order and reports every integrity issue
// found. It never stops at the first problem and never fails.
//
// The link to the previous event is taken from the hash this verifier
// recomputed for it, not from the stored previousEventHash, so a single
// altered, reordered, inserted or deleted event breaks every later event.
func (v *Verifier) Verify(evidenceID string, expectedContentHash string, events []Event) Report {
	issues := []string{}
	if v == nil {
		return Report{Valid: false, Issues: append(issues, "verifier not initialized")}
	}
	if err := v.cfg.Validate(); err != nil {
		return Report{Valid: false, Issues: append(issues, err.Error())}
	}

	previousHash := ""
	for i, event := range events {
		label := fmt.Sprintf("event %d (%s)", i, event.EventID)

		expectedHash, err := eventHash(v.cfg, evidenceID, event, previousHash)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: cannot recompute hash: %v", label, err))
		} else {
			if !digest.Equal(expectedHash, event.Integrity.EventHash) {
				issues = append(issues, fmt.Sprintf("%s: hash mismatch", label))
			}
			expectedSignature, err := sign(v.cfg, expectedHash)
			if err != nil {
				issues = append(issues, fmt.Sprintf("%s: cannot recompute signature: %v", label, err))
			} else if !digest.Equal(expectedSignature, event.Integrity.Signature) {
				issues = append(issues, fmt.Sprintf("%s: signature mismatch", label))
			}
		}

		if !event.Timestamp.Equal(event.Timestamp.Truncate(time.Millisecond)) {
			issues = append(issues, fmt.Sprintf("%s: timestamp carries sub-millisecond precision", label))
		}
		if event.Integrity.PreviousEventHash != previousHash {
			issues = append(issues, fmt.Sprintf("%s: previous event hash does not link to the preceding event", label))
		}
		if event.Integrity.ContentHash != expectedContentHash {
			issues = append(issues, fmt.Sprintf("%s: content hash mismatch", label))
		}
		if event.Integrity.Algorithm != "" && digest.Normalize(event.Integrity.Algorithm) != v.cfg.hashAlgorithm() {
			issues = append(issues, fmt.Sprintf("%s: algorithm %q does not match configured %q", label, event.Integrity.Algorithm, v.cfg.hashAlgorithm()))
		}

		previousHash = expectedHash
	}

	return Report{Valid: len(issues) == 0, Issues: issues}
}
