// Package integrity checks downloaded plugin artifacts against their
// published SHA-256 digests.
//
// The catalog publishes each digest as base64 of the raw 32 bytes. Verify
// decodes it, hex-encodes the result and compares it with the hex digest of
// the artifact, ignoring case. A mismatch or an undecodable digest is
// reported as false, never as an error; callers decide what a mismatch means.
package integrity
