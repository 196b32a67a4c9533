package fieldcrypt

import (
	"encoding/base64"
	"errors"
)

// EnvelopeMarker is the discriminator key identifying an encrypted value.
const EnvelopeMarker = "_encrypted"

var errMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the wire form of one encrypted field: ciphertext, the AEAD
// nonce, and the KDF salt the key was derived with, all base64-encoded.
type Envelope struct {
	Ciphertext []byte
	Nonce      []byte
	Salt       []byte
}

// ToMap renders the envelope as a JSON-ready object.
func (e Envelope) ToMap() map[string]any {
	return map[string]any{
		EnvelopeMarker: true,
		"ciphertext":   base64.StdEncoding.EncodeToString(e.Ciphertext),
		"nonce":        base64.StdEncoding.EncodeToString(e.Nonce),
		"salt":         base64.StdEncoding.EncodeToString(e.Salt),
	}
}

// IsEnvelope reports whether the decoded JSON object carries the marker.
func IsEnvelope(m map[string]any) bool {
	v, ok := m[EnvelopeMarker].(bool)
	return ok && v
}

// EnvelopeFromMap parses a decoded JSON object back into an Envelope.
func EnvelopeFromMap(m map[string]any) (*Envelope, error) {
	if !IsEnvelope(m) {
		return nil, errMalformedEnvelope
	}
	ciphertext, err := b64Field(m, "ciphertext")
	if err != nil {
		return nil, err
	}
	nonce, err := b64Field(m, "nonce")
	if err != nil {
		return nil, err
	}
	salt, err := b64Field(m, "salt")
	if err != nil {
		return nil, err
	}
	return &Envelope{Ciphertext: ciphertext, Nonce: nonce, Salt: salt}, nil
}

func b64Field(m map[string]any, key string) ([]byte, error) {
	s, ok := m[key].(string)
	if !ok {
		return nil, errMalformedEnvelope
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errMalformedEnvelope
	}
	return b, nil
}
