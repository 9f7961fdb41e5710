// Package ledger implements the encrypted state-transition engine: an
// encrypted-balance token ledger and an append-only per-account energy log
// sharing one sequential state machine.
//
// Overview:
//   - Balances, allowances, transfer amounts and meter readings are opaque
//     encrypted handles; the ledger never sees plaintext
//   - The only clear-text derived from encrypted state is the single boolean
//     revealed per comparison gate (positivity, balance, allowance checks)
//   - After every mutation the ledger re-grants decryption rights: the
//     contract identity itself plus every principal who semantically owns the
//     new value
//   - Grants are additive only; this ledger never revokes
//
// Concurrency:
//   - Calls apply atomically in total order under one mutex: single-writer
//     execution, no intra-call concurrency. A failed call commits nothing.
package ledger
