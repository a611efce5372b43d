package room

import "math/rand"

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// tokenLength matches the original implementation's fixed 8-char token;
// spec.md widens the contract to "7-8 chars", which this satisfies.
const tokenLength = 8

// generateToken returns a random alphanumeric token. Uniqueness within the
// registry is enforced by the caller (retry on collision).
func generateToken(rng *rand.Rand) string {
	b := make([]byte, tokenLength)
	for i := range b {
		b[i] = tokenAlphabet[rng.Intn(len(tokenAlphabet))]
	}
	return string(b)
}
