// Package crypto exposes the byte-level primitives used by mutse.
//
// Contents
//
//   - The exdf obfuscation cipher: per-byte bit reversal followed by XOR 0xAA
//     (Decrypt, Encrypt, NewDecryptReader, Sniff)
//   - BLAKE2b-256 content digests for manifests and verification (Digest,
//     DigestBytes, DigestFile)
//   - Short digest fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// The exdf transform is not encryption in any cryptographic sense; it has no
// key and every byte maps independently. It is kept here because it shares
// the package's byte-slice conventions: inputs are never modified and each
// call returns a freshly allocated slice.
package crypto
