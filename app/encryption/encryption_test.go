package encryption

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLocalEncryptorRoundTrip(t *testing.T) {
	enc := NewLocalEncryptor("test-passphrase")
	ctx := context.Background()

	sealed, err := enc.Encrypt(ctx, "DE89370400440532013000")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "DE89370400440532013000")

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	assert.Len(t, raw, saltLength+nonceLength+tagLength+len("DE89370400440532013000"))

	plain, err := enc.Decrypt(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, "DE89370400440532013000", plain)
}

func TestLocalEncryptorUsesFreshSaltPerValue(t *testing.T) {
	enc := NewLocalEncryptor("test-passphrase")
	a, err := enc.Encrypt(context.Background(), "same")
	require.NoError(t, err)
	b, err := enc.Encrypt(context.Background(), "same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestLocalEncryptorRejectsTampering(t *testing.T) {
	enc := NewLocalEncryptor("test-passphrase")
	ctx := context.Background()
	sealed, err := enc.Encrypt(ctx, "secret")
	require.NoError(t, err)

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[0] ^= 0xFF // salt is bound as additional data
	_, err = enc.Decrypt(ctx, base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = NewLocalEncryptor("other").Decrypt(ctx, sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = enc.Decrypt(ctx, "AAAA")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

type MockKMS struct {
	mock.Mock
}

func (m *MockKMS) GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kms.GenerateDataKeyOutput), args.Error(1)
}

func (m *MockKMS) Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kms.DecryptOutput), args.Error(1)
}

func TestKMSEncryptorEnvelopeRoundTrip(t *testing.T) {
	ctx := context.Background()
	dataKey := bytes.Repeat([]byte{7}, 32)
	wrapped := []byte("wrapped-data-key")

	m := new(MockKMS)
	m.On("GenerateDataKey", ctx, mock.MatchedBy(func(in *kms.GenerateDataKeyInput) bool {
		return *in.KeyId == "alias/payouts"
	})).Return(&kms.GenerateDataKeyOutput{Plaintext: dataKey, CiphertextBlob: wrapped}, nil)
	m.On("Decrypt", ctx, mock.MatchedBy(func(in *kms.DecryptInput) bool {
		return bytes.Equal(in.CiphertextBlob, wrapped)
	})).Return(&kms.DecryptOutput{Plaintext: dataKey}, nil)

	enc := NewKMSEncryptor(m, "alias/payouts")
	sealed, err := enc.Encrypt(ctx, "123456789")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, kmsPrefix))

	plain, err := enc.Decrypt(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, "123456789", plain)
	m.AssertExpectations(t)
}

func TestKMSEncryptorSurfacesKMSErrors(t *testing.T) {
	ctx := context.Background()
	m := new(MockKMS)
	m.On("GenerateDataKey", ctx, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := NewKMSEncryptor(m, "alias/payouts").Encrypt(ctx, "x")
	assert.ErrorIs(t, err, ErrEncryptionFailed)

	_, err = NewKMSEncryptor(m, "alias/payouts").Decrypt(ctx, "plain-text")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}
