// Package custody builds and verifies the hash-chained chain of custody of
// a piece of digital evidence.
//
// Each Event binds {evidenceId, eventId, eventType, from, to, timestamp,
// contentHash, previousEventHash} through canonical JSON into an event
// hash, which is then signed with an HMAC. Events are immutable once
// built; appending them is the caller's job and must happen one at a time
// per evidence id, always at the tail.
//
// Verification:
//   - recomputes each event hash using the verifier's own running previous
//     hash, so one broken link invalidates every later event;
//   - never stops early and never returns an error; every problem is an
//     entry in Report.Issues.
package custody
