package encryption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/FACorreiaa/onelink-market/config"
)

var (
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Encryptor seals individual sensitive fields (bank account numbers, tax ids)
// into opaque strings safe to persist.
type Encryptor interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, sealed string) (string, error)
}

// New picks the KMS envelope encryptor when enabled and the local
// passphrase encryptor otherwise.
func New(ctx context.Context, cfg config.EncryptionConfig, logger *slog.Logger) (Encryptor, error) {
	if cfg.KMS.Enabled {
		client, err := NewKMSClient(ctx, cfg.KMS.Region)
		if err != nil {
			return nil, err
		}
		logger.Info("Using KMS envelope encryption", slog.String("region", cfg.KMS.Region))
		return NewKMSEncryptor(client, cfg.KMS.KeyID), nil
	}
	if cfg.LocalKey == "" {
		return nil, fmt.Errorf("encryption.localKey must be set when KMS is disabled")
	}
	logger.Info("Using local passphrase encryption")
	return NewLocalEncryptor(cfg.LocalKey), nil
}

// KMSAPI is the part of the KMS client used for envelope encryption.
type KMSAPI interface {
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

var _ KMSAPI = (*kms.Client)(nil)
