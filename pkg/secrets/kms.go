package secrets

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// KeyDecrypter is the subset of the AWS KMS client used to unwrap the master key.
type KeyDecrypter interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// UnwrapKey decrypts a base64 KMS ciphertext blob into a master key.
// keyID may be empty for symmetric keys where KMS infers it from the blob.
func UnwrapKey(ctx context.Context, client KeyDecrypter, wrapped, keyID string) ([]byte, error) {
	if client == nil {
		return nil, errors.Join(ErrKeyUnwrapFailed, errors.New("kms client is nil"))
	}

	blob, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, errors.Join(ErrKeyUnwrapFailed, ErrInvalidEncodedKey, err)
	}

	input := &kms.DecryptInput{CiphertextBlob: blob}
	if keyID != "" {
		input.KeyId = aws.String(keyID)
	}

	out, err := client.Decrypt(ctx, input)
	if err != nil {
		return nil, errors.Join(ErrKeyUnwrapFailed, err)
	}
	if len(out.Plaintext) != KeySize {
		clearBytes(out.Plaintext)
		return nil, errors.Join(ErrKeyUnwrapFailed, ErrInvalidMasterKey)
	}
	return out.Plaintext, nil
}
