// Package signature implements the shared-secret request signing used by
// test machines. The digest is computed over the lexicographically sorted
// field names and their wire-form string values, so the result does not
// depend on the order the payload was constructed in. Values must be fed
// in the exact string form they were transmitted in; any reformatting on
// either side legitimately breaks verification.
package signature

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sort"
)

// Field is the payload field carrying the signature itself. It is always
// excluded from the digest.
const Field = "signature"

// Digest computes the canonical keyed digest of the payload fields:
// sha256(secret, then name ":" value ";" for every field in sorted order).
func Digest(fields map[string]string, secret string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		if name == Field {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	h.Write([]byte(secret))
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte(":"))
		h.Write([]byte(fields[name]))
		h.Write([]byte(";"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Sign returns a copy of fields with the signature field set. Used by the
// client side (and tests) to produce a payload Verify accepts.
func Sign(fields map[string]string, secret string) map[string]string {
	signed := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		signed[k] = v
	}
	signed[Field] = Digest(fields, secret)
	return signed
}

// Verify recomputes the digest and compares it against the payload's
// signature field. Any mismatch, including a missing signature or an empty
// secret, reports false; callers surface all of these as the same
// authentication failure.
func Verify(fields map[string]string, secret string) bool {
	sig, ok := fields[Field]
	if !ok || sig == "" {
		return false
	}
	want := Digest(fields, secret)
	return subtle.ConstantTimeCompare([]byte(want), []byte(sig)) == 1
}
