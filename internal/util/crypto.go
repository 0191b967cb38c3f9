package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	sealKeyBytes = 32
	sealKeyInfo  = "arena-client credential seal v1"
)

// SealKey turns a configured secret into the hex key NewSealer expects.
// A 64 char hex secret is used as is; anything else is stretched with HKDF-SHA256.
func SealKey(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("seal secret is empty")
	}
	if raw, err := hex.DecodeString(secret); err == nil && len(raw) == sealKeyBytes {
		return secret, nil
	}

	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealKeyInfo))
	key := make([]byte, sealKeyBytes)
	if _, err := io.ReadFull(reader, key); err != nil {
		return "", fmt.Errorf("derive seal key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// MaskToken keeps enough of a token to correlate log lines without leaking it.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****"
}
