// Package idgen provides short, URL-safe random strings backed by nanoid,
// used for authentication challenges.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet defines the character set used for generated strings.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultChallengeLength is the challenge length used when none is configured.
const DefaultChallengeLength = 12

// Challenge returns a new random challenge of the given length. A length
// of zero or less falls back to DefaultChallengeLength.
func Challenge(length int) (string, error) {
	if length <= 0 {
		length = DefaultChallengeLength
	}
	s, err := nanoid.Generate(Alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return s, nil
}
