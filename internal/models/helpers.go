package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// SecretSize is the server seed length in bytes.
const SecretSize = 32

func NewID() string {
	return uuid.NewString()
}

// GenerateSecret reads a server seed from r, normally crypto/rand.Reader.
func GenerateSecret(r io.Reader) ([]byte, error) {
	secret := make([]byte, SecretSize)
	if _, err := io.ReadFull(r, secret); err != nil {
		return nil, fmt.Errorf("failed to generate server seed: %w", err)
	}
	return secret, nil
}

func GenerateClientSeed() (string, error) {
	bytes := make([]byte, 16) // 128 bits of entropy
	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate client seed: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
