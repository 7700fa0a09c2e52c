package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFingerprint(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"lowercase", "0cc175b9c0f1b6a831c399e269772661", "0cc175b9c0f1b6a831c399e269772661", true},
		{"uppercase lowered", "0CC175B9C0F1B6A831C399E269772661", "0cc175b9c0f1b6a831c399e269772661", true},
		{"surrounding whitespace", "  0cc175b9c0f1b6a831c399e269772661\t", "0cc175b9c0f1b6a831c399e269772661", true},
		{"empty", "", "", false},
		{"whitespace only", "   ", "", false},
		{"too short", "0cc175b9", "", false},
		{"too long", "0cc175b9c0f1b6a831c399e2697726611", "", false},
		{"non-hex char", "0cc175b9c0f1b6a831c399e26977266g", "", false},
		{"embedded space", "0cc175b9c0f1b6a8 31c399e269772661", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeFingerprint(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFingerprintBytes(t *testing.T) {
	b, err := FingerprintBytes("0cc175b9c0f1b6a831c399e269772661")
	require.NoError(t, err)
	assert.Len(t, b, FingerprintByteLen)
	assert.Equal(t, byte(0x0c), b[0])
	assert.Equal(t, byte(0x61), b[15])

	_, err = FingerprintBytes("0cc175b9")
	assert.Error(t, err)

	_, err = FingerprintBytes(strings.Repeat("g", FingerprintHexLen))
	assert.Error(t, err)
}
