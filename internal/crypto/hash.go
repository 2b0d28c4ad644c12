package crypto

import (
	"golang.org/x/crypto/blake2b"
)

// Blake2b256 returns the 32-byte Blake2b digest of data.
func Blake2b256(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// Blake2b512 returns the 64-byte Blake2b digest of data.
func Blake2b512(data []byte) [64]byte {
	return blake2b.Sum512(data)
}

// maxUnhashedPayload is the longest payload signed as-is; longer payloads
// are replaced by their Blake2-256 hash before signing.
const maxUnhashedPayload = 257

// SigningPayload returns the bytes that are actually signed for content.
func SigningPayload(content []byte) []byte {
	if len(content) > maxUnhashedPayload {
		h := Blake2b256(content)
		return h[:]
	}
	return content
}
