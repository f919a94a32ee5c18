package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseAddress decodes a 20-byte account address from its hex form. A "0x"
// prefix is accepted but not required.
func ParseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", value, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address %q: expected %d bytes, got %d", value, len(addr), len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// FormatAddress renders the address in its canonical 0x-prefixed hex form.
func FormatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// ParseHash decodes a 32-byte identifier from its hex form.
func ParseHash(value string) ([32]byte, error) {
	var hash [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return hash, fmt.Errorf("invalid identifier %q: %w", value, err)
	}
	if len(raw) != len(hash) {
		return hash, fmt.Errorf("invalid identifier %q: expected %d bytes, got %d", value, len(hash), len(raw))
	}
	copy(hash[:], raw)
	return hash, nil
}

// FormatHash renders the identifier in its canonical 0x-prefixed hex form.
func FormatHash(hash [32]byte) string {
	return "0x" + hex.EncodeToString(hash[:])
}
