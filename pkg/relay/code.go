package relay

import (
	"crypto/rand"
	"fmt"
)

// Room codes are short enough to read over the phone. The alphabet drops
// I, O, 0 and 1 and has 32 symbols, so indexing bytes modulo its length is
// bias-free. Uniqueness is best effort: there is no registry of active
// codes, and a collision simply lands two pairs in the same room.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// GenerateRoomCode returns a fresh room code for a hosting peer.
func GenerateRoomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}

	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	return string(buf), nil
}
