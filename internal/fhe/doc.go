// Package fhe implements the encrypted value backend consumed by the ledger.
//
// Overview:
//   - Encrypted 64-bit unsigned integers are referenced through opaque handles
//   - Additions and subtractions are computed homomorphically on Paillier ciphertexts
//   - Comparisons, multiplication and division are oracle-assisted: the coprocessor
//     decrypts inside its trust boundary, computes, and re-encrypts the result
//   - Every handle carries its own access-control list; grants are additive only
//
// Security Model:
//   - The Coprocessor plays the trusted decryption-oracle role: it holds the
//     Paillier secret key and never discloses more than a caller's grant permits
//   - Client inputs are admitted only with a MiMC binding digest tying the
//     ciphertexts to the submitting account and the target contract identity
//   - Handles are Keccak-256 digests of the ciphertext, so handle identity is
//     content identity
//   - All randomness is generated using crypto/rand
//
// Usage:
//   - Construct a Coprocessor with the contract identity it serves
//   - Admit client ciphertexts with VerifyInput/VerifyInputs
//   - Combine handles with Add, Sub, Mul, Div, Eq, Gte
//   - Gate control flow on RevealBool; decrypt for principals with Decrypt64
package fhe
