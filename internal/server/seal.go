package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwe"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// KeySize is the length in bytes of both sealing keys.
const KeySize = 32

// ErrUnsealed is returned for cookie values that fail decryption or signature verification.
var ErrUnsealed = errors.New("cookie value could not be opened")

// Sealer signs then encrypts cookie payloads.
//
// Values are compact JWE (dir, A256GCM) wrapping a compact JWS (HS256) of the JSON payload.
type Sealer struct {
	encryptKey []byte
	signKey    []byte
}

// NewSealer creates a [Sealer]. Both keys must be [KeySize] bytes.
func NewSealer(encryptKey, signKey []byte) (*Sealer, error) {
	if len(encryptKey) != KeySize || len(signKey) != KeySize {
		return nil, fmt.Errorf("sealing keys must be %d bytes", KeySize)
	}
	return &Sealer{encryptKey: encryptKey, signKey: signKey}, nil
}

// DecodeKey parses a base64 (standard or URL alphabet) sealing key.
func DecodeKey(encoded string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(encoded); err == nil {
			if len(key) != KeySize {
				return nil, fmt.Errorf("sealing key is %d bytes, want %d", len(key), KeySize)
			}
			return key, nil
		}
	}
	return nil, errors.New("sealing key is not valid base64")
}

// GenerateKey returns a random sealing key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// Seal marshals v to JSON, signs and encrypts it.
func (s *Sealer) Seal(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cookie payload: %w", err)
	}

	signed, err := jws.Sign(payload, jws.WithKey(jwa.HS256, s.signKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign cookie payload: %w", err)
	}

	sealed, err := jwe.Encrypt(signed, jwe.WithKey(jwa.DIRECT, s.encryptKey), jwe.WithContentEncryption(jwa.A256GCM))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt cookie payload: %w", err)
	}
	return string(sealed), nil
}

// Open reverses [Sealer.Seal] into v. Any failure wraps [ErrUnsealed].
func (s *Sealer) Open(value string, v any) error {
	signed, err := jwe.Decrypt([]byte(value), jwe.WithKey(jwa.DIRECT, s.encryptKey))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsealed, err)
	}

	payload, err := jws.Verify(signed, jws.WithKey(jwa.HS256, s.signKey))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsealed, err)
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsealed, err)
	}
	return nil
}
