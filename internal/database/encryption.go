package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	encryptionKeySize    = 32
	encryptionNonceSize  = 12
	encryptionIterations = 100000
	encryptionMinSecret  = 32

	encryptionSalt       = "wabridge-db-salt-v1"
	encryptionLookupSalt = "wabridge-lookup-salt-v1"
)

// encryptor handles encryption of sensitive database fields. Chat IDs and
// message IDs are encrypted at rest when WABRIDGE_ENABLE_ENCRYPTION is set.
// Lookup encryption uses a deterministic nonce so encrypted columns stay
// searchable by exact match.
type encryptor struct {
	enabled bool
	gcm     cipher.AEAD
	secret  string
}

func encryptionEnabled() bool {
	return os.Getenv("WABRIDGE_ENABLE_ENCRYPTION") == "true"
}

func NewEncryptor() (*encryptor, error) {
	if !encryptionEnabled() {
		return &encryptor{enabled: false}, nil
	}

	secret := os.Getenv("WABRIDGE_ENCRYPTION_SECRET")
	if len(secret) < encryptionMinSecret {
		return nil, fmt.Errorf("WABRIDGE_ENCRYPTION_SECRET must be at least %d characters", encryptionMinSecret)
	}

	key := pbkdf2.Key([]byte(secret), []byte(encryptionSalt), encryptionIterations, encryptionKeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &encryptor{enabled: true, gcm: gcm, secret: secret}, nil
}

func (e *encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, encryptionNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// EncryptForLookup produces a deterministic ciphertext for a given plaintext
// so WHERE clauses on encrypted columns still work.
func (e *encryptor) EncryptForLookup(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	hash := sha256.Sum256([]byte(plaintext + encryptionLookupSalt + e.secret))
	nonce := hash[:encryptionNonceSize]

	ciphertext := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (e *encryptor) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	if len(data) < encryptionNonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:encryptionNonceSize], data[encryptionNonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}

func (e *encryptor) EncryptIfEnabled(value string) (string, error) {
	if !e.enabled {
		return value, nil
	}
	return e.Encrypt(value)
}

func (e *encryptor) EncryptForLookupIfEnabled(value string) (string, error) {
	if !e.enabled {
		return value, nil
	}
	return e.EncryptForLookup(value)
}

func (e *encryptor) DecryptIfEnabled(value string) (string, error) {
	if !e.enabled {
		return value, nil
	}
	return e.Decrypt(value)
}
