package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random hex identifier, prefixed like "note_9f2c..." when a
// prefix is given. Resume, note and share IDs are all minted here so they
// stay greppable by kind.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
