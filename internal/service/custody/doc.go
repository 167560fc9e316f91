// Package custody records and verifies the chain of custody of registered
// evidence.
//
// Appends:
//   - Record builds the next event against the current chain tail inside
//     the store's per-evidence transaction, so at most one append per
//     evidence id is in flight.
//   - The event always carries the content hash registered for the
//     evidence; a caller-supplied hash that differs is rejected.
//   - Every successful append writes exactly one custody.record audit row
//     in the same transaction.
//
// Verification:
//   - Verify re-derives the chain from the stored events and never fails
//     because the chain is broken; problems are reported as issues.
//   - Deep verification also re-hashes the stored evidence object.
//   - Every verification writes one custody.verify audit row.
package custody
