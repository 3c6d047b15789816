// Package identity derives the salted real-world voter hash. The hash, not
// the internal account id, keys strong-identity ballots and containers so a
// person re-authenticating under a different account supersedes rather than
// duplicates their ballot.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const hashIterations = 4096

type Hasher struct {
	salt []byte
}

func NewHasher(salt string) Hasher {
	return Hasher{salt: []byte(salt)}
}

func (h Hasher) Hash(personalID string) string {
	derived := pbkdf2.Key([]byte(strings.TrimSpace(personalID)), h.salt, hashIterations, 32, sha256.New)
	return hex.EncodeToString(derived)
}
