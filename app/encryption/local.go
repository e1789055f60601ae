package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength       = 16
	nonceLength      = 12
	tagLength        = 16
	keyLength        = 32
	pbkdf2Iterations = 100_000
)

// LocalEncryptor derives a fresh AES-256 key per value from a passphrase with
// PBKDF2-SHA256. Output is base64(salt | nonce | tag | ciphertext) with the
// salt bound as additional data.
type LocalEncryptor struct {
	passphrase []byte
}

var _ Encryptor = (*LocalEncryptor)(nil)

func NewLocalEncryptor(passphrase string) *LocalEncryptor {
	return &LocalEncryptor{passphrase: []byte(passphrase)}
}

func (e *LocalEncryptor) gcm(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(e.passphrase, salt, pbkdf2Iterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (e *LocalEncryptor) Encrypt(_ context.Context, plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	aead, err := e.gcm(salt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	sealed := aead.Seal(nil, nonce, []byte(plaintext), salt)
	ct, tag := sealed[:len(sealed)-tagLength], sealed[len(sealed)-tagLength:]

	out := make([]byte, 0, saltLength+nonceLength+tagLength+len(ct))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (e *LocalEncryptor) Decrypt(_ context.Context, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: invalid encoding", ErrDecryptionFailed)
	}
	if len(raw) < saltLength+nonceLength+tagLength {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	salt := raw[:saltLength]
	nonce := raw[saltLength : saltLength+nonceLength]
	tag := raw[saltLength+nonceLength : saltLength+nonceLength+tagLength]
	ct := raw[saltLength+nonceLength+tagLength:]

	aead, err := e.gcm(salt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	sealed := make([]byte, 0, len(ct)+tagLength)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, salt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}
