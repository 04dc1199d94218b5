// ABOUTME: Prefix-tagged random identifiers for newly created models
// ABOUTME: Produces 10-character alphanumeric suffixes like "rq_a8Zk20PqLm"

package idgen

import (
	"math/rand/v2"
	"strings"
)

// SuffixLength is the number of random characters in every generated id.
const SuffixLength = 10

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Generate returns a new identifier. With a non-empty prefix the result is
// "{prefix}_{suffix}", otherwise the bare suffix.
//
// No uniqueness check is made against storage; callers treat a repeated id as
// an update of the existing row.
func Generate(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + 1 + SuffixLength)
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte('_')
	}
	for range SuffixLength {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return b.String()
}
