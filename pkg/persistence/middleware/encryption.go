package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rluijk/guided-llm-cli/pkg/domain"
	"github.com/rluijk/guided-llm-cli/pkg/ports"
)

// envelopeKey marks a stored snapshot as an encryption envelope.
const envelopeKey = "__encrypted__"

// EncryptionOption configures the encryption middleware.
type EncryptionOption func(*encryptionMiddleware)

// WithFallbackKeys supplies old keys tried in order when the active key
// fails to decrypt, enabling zero-downtime rotation.
func WithFallbackKeys(keys ...[]byte) EncryptionOption {
	return func(m *encryptionMiddleware) {
		m.fallbackKeys = keys
	}
}

type encryptionMiddleware struct {
	next         ports.SessionStore
	activeKey    []byte
	fallbackKeys [][]byte
}

// Encryption seals every snapshot with AES-256-GCM before it reaches the
// underlying store. The stored record keeps only id and status in the
// clear; context, history, and position travel inside the envelope.
// The key must be 32 bytes.
func Encryption(key []byte, opts ...EncryptionOption) Middleware {
	if len(key) != 32 {
		panic("encryption key must be 32 bytes (AES-256)")
	}
	return func(next ports.SessionStore) ports.SessionStore {
		m := &encryptionMiddleware{
			next:      next,
			activeKey: key,
		}
		for _, opt := range opts {
			opt(m)
		}
		return m
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, state *domain.SessionState) error {
	plainText, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.activeKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}

	// Status stays readable so list/monitoring surfaces keep working.
	envelope := &domain.SessionState{
		ID:        state.ID,
		Status:    state.Status,
		Context:   map[string]any{envelopeKey: base64.StdEncoding.EncodeToString(ciphertext)},
		CreatedAt: state.CreatedAt,
		UpdatedAt: state.UpdatedAt,
	}
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, id string) (*domain.SessionState, error) {
	envelope, err := m.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	encryptedStr, ok := envelope.Context[envelopeKey].(string)
	if !ok {
		// A configured key means we expect envelopes. A plain snapshot here
		// is either corruption or data written before encryption was turned
		// on; failing closed beats silently serving it.
		return nil, errors.New("session is missing its encryption envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	plainText, err := m.decryptWithRotation(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session: %w", err)
	}

	var state domain.SessionState
	if err := json.Unmarshal(plainText, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted session: %w", err)
	}
	return &state, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *encryptionMiddleware) decryptWithRotation(ciphertext []byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, m.activeKey); err == nil {
		return plain, nil
	}
	for _, key := range m.fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("all available keys failed")
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
