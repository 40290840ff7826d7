// Package fair implements the provably fair primitives: server seed
// generation, the pre-lock commitment, and deterministic derivation of
// uniform floats from a revealed seed. Two independent observers given the
// same revealed seed and public game data compute identical values.
package fair

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// seedBytes is the entropy of a server seed
const seedBytes = 32

// GenerateSeed returns a fresh hex-encoded random server seed
func GenerateSeed() (string, error) {
	buf := make([]byte, seedBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read seed entropy: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CommitmentOf returns the hex SHA-256 digest of a seed. Published at or
// before lock, immutable once set.
func CommitmentOf(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// VerifyReveal checks that a revealed seed hashes to the stored commitment
func VerifyReveal(seed, commitment string) bool {
	return CommitmentOf(seed) == commitment
}

// DeriveFloat deterministically derives the index-th uniform float in [0, 1)
// for a game. The message binds the game ID and the frozen ledger digest so
// the server cannot alter stakes after committing to the seed without
// invalidating the derivation. Successive indices yield an independent stream
// for games that consume more than one value (minefield reveals, crate
// openings, tiebreaks).
func DeriveFloat(seed, gameID, ledgerDigest string, index int) float64 {
	mac := hmac.New(sha256.New, []byte(seed))
	fmt.Fprintf(mac, "%s:%s:%d", gameID, ledgerDigest, index)
	sum := mac.Sum(nil)

	// top 52 bits of the digest give a uniform value in [0, 2^52)
	v := binary.BigEndian.Uint64(sum[:8]) >> 12
	return float64(v) / float64(uint64(1)<<52)
}
