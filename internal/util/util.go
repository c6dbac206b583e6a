// Package util provides content hashing and lenient form value parsing.
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// ParseOptionalFloat parses text as a decimal number after trimming whitespace.
// Anything unparseable, including the empty string, NaN and infinities, yields nil.
func ParseOptionalFloat(text string) *float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// OptionalString returns nil for empty text and a pointer to text otherwise.
func OptionalString(text string) *string {
	if text == "" {
		return nil
	}
	return &text
}
