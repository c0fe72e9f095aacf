package fairness

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

type canonicalRound struct {
	SeedID     string  `json:"seed_id"`
	ClientSeed string  `json:"client_seed"`
	Nonce      uint64  `json:"nonce"`
	GameTag    GameTag `json:"game_tag"`
	Result     Outcome `json:"result"`
}

// CanonicalPayload is the byte form hashed into a result hash and signed.
// Keys follow struct order and floats use the shortest round-trip form, so
// equal inputs always serialize to equal bytes.
func CanonicalPayload(seedID, clientSeed string, nonce uint64, tag GameTag, result Outcome) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(canonicalRound{
		SeedID:     seedID,
		ClientSeed: clientSeed,
		Nonce:      nonce,
		GameTag:    tag,
		Result:     result,
	}); err != nil {
		return nil, fmt.Errorf("encode canonical round: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ResultHash returns the lowercase hex SHA-256 of the canonical payload.
func ResultHash(seedID, clientSeed string, nonce uint64, tag GameTag, result Outcome) (string, error) {
	payload, err := CanonicalPayload(seedID, clientSeed, nonce, tag, result)
	if err != nil {
		return "", err
	}
	return HashPayload(payload), nil
}

// CanonicalOutcome re-encodes an outcome so two outcomes can be compared
// byte for byte regardless of how they were originally formatted.
func CanonicalOutcome(o Outcome) ([]byte, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("encode outcome: %w", err)
	}
	return b, nil
}

// Commitment is the lowercase hex SHA-256 of the secret seed bytes.
func Commitment(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:])
}
