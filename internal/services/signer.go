package services

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// Signer signs canonical round payloads with Ed25519 so a stored round can
// be checked against the operator's published key.
type Signer struct {
	key ed25519.PrivateKey
}

// NewSigner loads a key from a hex encoded 32-byte seed. An empty seed
// generates an ephemeral key.
func NewSigner(seedHex string) (*Signer, error) {
	if seedHex == "" {
		seed, err := GenerateSigningSeed(rand.Reader)
		if err != nil {
			return nil, err
		}
		seedHex = seed
	}

	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid signing key: want %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Signer{key: ed25519.NewKeyFromSeed(seed)}, nil
}

func GenerateSigningSeed(r io.Reader) (string, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return "", fmt.Errorf("failed to generate signing key: %w", err)
	}
	return hex.EncodeToString(seed), nil
}

func (s *Signer) Sign(payload []byte) string {
	return hex.EncodeToString(ed25519.Sign(s.key, payload))
}

func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.PublicKey())
}

func (s *Signer) Verify(payload []byte, sigHex string) bool {
	return VerifySignature(s.PublicKey(), payload, sigHex)
}

func VerifySignature(pub ed25519.PublicKey, payload []byte, sigHex string) bool {
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, payload, sig)
}
