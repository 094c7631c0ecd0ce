package servicemodel

import (
	"math/rand"
	"strings"
)

const hexAlphabet = "0123456789ABCDEF"

// DefaultTokenLength is the token length the application issues and expects.
const DefaultTokenLength = 32

// GenerateHexToken produces a random token of the given length over the
// uppercase hex alphabet, the format the application uses for session
// tokens.
func GenerateHexToken(length int) string {
	if length <= 0 {
		length = DefaultTokenLength
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(hexAlphabet[rand.Intn(len(hexAlphabet))])
	}
	return b.String()
}
