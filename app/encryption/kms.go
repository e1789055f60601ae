package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
)

const kmsPrefix = "kms:v1:"

// KMSEncryptor performs envelope encryption: each value gets its own data key
// from KMS, and the wrapped key travels with the ciphertext.
type KMSEncryptor struct {
	client KMSAPI
	keyID  string
}

var _ Encryptor = (*KMSEncryptor)(nil)

func NewKMSClient(ctx context.Context, region string) (*kms.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return kms.NewFromConfig(cfg), nil
}

func NewKMSEncryptor(client KMSAPI, keyID string) *KMSEncryptor {
	return &KMSEncryptor{client: client, keyID: keyID}
}

func (e *KMSEncryptor) Encrypt(ctx context.Context, plaintext string) (string, error) {
	dk, err := e.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(e.keyID),
		KeySpec: kmstypes.DataKeySpecAes256,
	})
	if err != nil {
		return "", fmt.Errorf("%w: generate data key: %v", ErrEncryptionFailed, err)
	}

	aead, err := newGCM(dk.Plaintext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	// layout: uint16 wrapped-key length | wrapped key | nonce | ciphertext+tag
	out := make([]byte, 2, 2+len(dk.CiphertextBlob)+len(nonce)+len(plaintext)+aead.Overhead())
	binary.BigEndian.PutUint16(out, uint16(len(dk.CiphertextBlob)))
	out = append(out, dk.CiphertextBlob...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(plaintext), nil)
	return kmsPrefix + base64.StdEncoding.EncodeToString(out), nil
}

func (e *KMSEncryptor) Decrypt(ctx context.Context, sealed string) (string, error) {
	if !strings.HasPrefix(sealed, kmsPrefix) {
		return "", fmt.Errorf("%w: not a KMS envelope", ErrDecryptionFailed)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, kmsPrefix))
	if err != nil || len(raw) < 2 {
		return "", fmt.Errorf("%w: invalid envelope", ErrDecryptionFailed)
	}
	n := int(binary.BigEndian.Uint16(raw))
	if len(raw) < 2+n {
		return "", fmt.Errorf("%w: truncated envelope", ErrDecryptionFailed)
	}
	wrapped, rest := raw[2:2+n], raw[2+n:]

	dk, err := e.client.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: wrapped, KeyId: aws.String(e.keyID)})
	if err != nil {
		return "", fmt.Errorf("%w: unwrap data key: %v", ErrDecryptionFailed, err)
	}
	aead, err := newGCM(dk.Plaintext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if len(rest) < aead.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	plaintext, err := aead.Open(nil, rest[:aead.NonceSize()], rest[aead.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
