package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/handoff/pkg/ports"
)

// envelopePrefix marks an encrypted checkpoint inside State.Context.
const envelopePrefix = "enc:v1:"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.CheckpointStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts checkpoints using AES-GCM (Envelope Encryption).
//
// The envelope stored underneath keeps the thread ID, version, status and the
// delegation stack readable for monitoring. Messages, context and tool arguments
// are only present inside the ciphertext.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, threadID string, cp *domain.Checkpoint) error {
	plainText, err := domain.EncodeCheckpoint(cp)
	if err != nil {
		return err
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt checkpoint: %w", err)
	}

	return m.next.Save(ctx, threadID, envelope(cp, ciphertext))
}

// envelope builds the opaque checkpoint written to the next store.
// It must still satisfy Checkpoint.Validate.
func envelope(cp *domain.Checkpoint, ciphertext []byte) *domain.Checkpoint {
	state := domain.NewState(cp.ThreadID, "")
	state.Stack = cp.State.Stack.Clone()
	state.Context = envelopePrefix + base64.StdEncoding.EncodeToString(ciphertext)

	env := &domain.Checkpoint{
		ThreadID:  cp.ThreadID,
		Version:   cp.Version,
		Status:    cp.Status,
		State:     state,
		UpdatedAt: cp.UpdatedAt,
	}
	if cp.Pending != nil {
		redacted := &domain.PendingBatch{
			Handler:     cp.Pending.Handler,
			MessageID:   cp.Pending.MessageID,
			RequestedAt: cp.Pending.RequestedAt,
		}
		for _, p := range cp.Pending.Proposals {
			redacted.Proposals = append(redacted.Proposals, domain.Proposal{ID: p.ID, Name: p.Name})
		}
		env.Pending = redacted
	}
	return env
}

func (m *encryptionMiddleware) Load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	env, err := m.next.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}

	encoded, ok := strings.CutPrefix(env.State.Context, envelopePrefix)
	if !ok {
		// Fail secure: a plain checkpoint is not accepted once encryption is on.
		return nil, domain.NewCorruptCheckpointError(threadID, errors.New("checkpoint is missing encrypted data envelope"))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domain.NewCorruptCheckpointError(threadID, fmt.Errorf("failed to decode ciphertext base64: %w", err))
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, domain.NewCorruptCheckpointError(threadID, err)
	}

	return domain.DecodeCheckpoint(threadID, plainText)
}

func (m *encryptionMiddleware) Delete(ctx context.Context, threadID string) error {
	return m.next.Delete(ctx, threadID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *encryptionMiddleware) ListAwaiting(ctx context.Context) ([]string, error) {
	return ports.ListAwaiting(ctx, m.next)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
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

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
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
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}

// ParseKey decodes a base64 or raw 32 byte key as used in configuration files.
func ParseKey(s string) ([]byte, error) {
	if len(s) == 32 {
		return []byte(s), nil
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("encryption key is neither 32 raw bytes nor base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
