package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// FingerprintHexLen is the length of a fingerprint in hex characters.
const FingerprintHexLen = 32

// FingerprintByteLen is the length of a fingerprint in binary form.
const FingerprintByteLen = 16

// NormalizeFingerprint trims an input line and admits it only if it is
// exactly 32 hex characters. Admitted fingerprints are lowercased so that
// targets, work units, and mapping hits all agree on one canonical form.
func NormalizeFingerprint(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) != FingerprintHexLen {
		return "", false
	}
	for _, c := range trimmed {
		if !isHexChar(c) {
			return "", false
		}
	}
	return strings.ToLower(trimmed), true
}

// FingerprintBytes converts a 32-hex fingerprint to its 16-byte binary form.
func FingerprintBytes(hashHex string) ([]byte, error) {
	if len(hashHex) != FingerprintHexLen {
		return nil, fmt.Errorf("fingerprint must be %d hex characters, got %d", FingerprintHexLen, len(hashHex))
	}
	b, err := hex.DecodeString(hashHex)
	if err != nil {
		return nil, fmt.Errorf("invalid fingerprint %q: %w", hashHex, err)
	}
	return b, nil
}

func isHexChar(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
