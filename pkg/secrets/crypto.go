package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// MasterKeyEnv is the env var holding the farm-wide credential key.
const MasterKeyEnv = "FARM_MASTER_KEY"

// LoadMasterKey reads FARM_MASTER_KEY (32 bytes, base64 or hex).
func LoadMasterKey() ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(MasterKeyEnv))
	if raw == "" {
		return nil, fmt.Errorf("%s is required (32 bytes, base64 or hex)", MasterKeyEnv)
	}
	return ParseMasterKey(raw)
}

func ParseMasterKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	// Hex first: a 64-char hex key is also syntactically valid base64, so
	// the base64 branch would misread it as 48 bytes.
	if b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x")); err == nil && len(b) == 32 {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("%s decoded length must be 32, got %d", MasterKeyEnv, len(b))
		}
		return b, nil
	}
	return nil, fmt.Errorf("%s must be base64(32 bytes) or hex(32 bytes)", MasterKeyEnv)
}

// EncryptString returns base64(nonce|ciphertext).
func EncryptString(masterKey []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ct := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	out := append(nonce, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

func DecryptString(masterKey []byte, enc string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(enc))
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce := raw[:gcm.NonceSize()]
	ct := raw[gcm.NonceSize():]
	pt, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
