package receipt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const AlgoHMACSHA256 = "HMAC-SHA256"

var ErrMissingKey = errors.New("receipt signing key is required")

// Binding identifies the transaction a signature belongs to. Including the
// immutable identifiers prevents a captured payload+signature pair from
// being replayed against a different transaction.
type Binding struct {
	TransactionID int64
	PublicToken   string
	CreatedAt     time.Time
}

// Signer computes and verifies keyed HMACs over canonical receipt bytes.
type Signer struct {
	key []byte
}

func NewSigner(key string) (*Signer, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	return &Signer{key: []byte(key)}, nil
}

// canonicalBytes serializes the bound payload as canonical JSON: object
// keys sorted, no insignificant whitespace. Round-tripping through
// map[string]any lets encoding/json order the keys for us.
func canonicalBytes(b Binding, payloadJSON []byte) ([]byte, error) {
	var payload any
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return nil, fmt.Errorf("invalid payload json: %w", err)
	}

	bound := map[string]any{
		"tx": map[string]any{
			"id":           b.TransactionID,
			"public_token": b.PublicToken,
			"created_at":   b.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
		"payload": payload,
	}
	return json.Marshal(bound)
}

// Sign returns the hex HMAC-SHA256 signature for the payload bound to the
// given transaction identifiers.
func (s *Signer) Sign(b Binding, payload Payload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return s.SignRaw(b, raw)
}

// SignRaw signs an already-serialized payload snapshot.
func (s *Signer) SignRaw(b Binding, payloadJSON []byte) (string, error) {
	msg, err := canonicalBytes(b, payloadJSON)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature from the stored payload and compares it
// to the stored signature in constant time. Absent payload or signature
// verifies false rather than erroring; a mismatch is a reviewable flag,
// not a fatal condition.
func (s *Signer) Verify(b Binding, payloadJSON []byte, storedHMAC string) bool {
	if len(payloadJSON) == 0 || storedHMAC == "" {
		return false
	}
	computed, err := s.SignRaw(b, payloadJSON)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(computed), []byte(storedHMAC))
}
