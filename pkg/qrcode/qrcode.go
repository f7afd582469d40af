package qrcode

import (
	"encoding/base64"
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent       = errors.New("content cannot be empty")
	ErrNotProvisioningURI = errors.New("content is not an otpauth URI")
	ErrFailedToGenerate   = errors.New("failed to generate QR code")
)

const (
	DefaultSize = 256

	dataURIPrefix = "data:image/png;base64,"
)

// Config controls the rendered image size in pixels.
type Config struct {
	Size int `env:"TOTP_QR_SIZE" envDefault:"256"`
}

// PNG renders content as a square PNG. Non-positive sizes fall back to DefaultSize.
func PNG(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultSize
	}

	q, err := skipqrcode.New(content, skipqrcode.Medium)
	if err != nil {
		return nil, errors.Join(ErrFailedToGenerate, err)
	}
	img, err := q.PNG(size)
	if err != nil {
		return nil, errors.Join(ErrFailedToGenerate, err)
	}
	return img, nil
}

// DataURI renders content and returns it as a data:image/png;base64 URI
// ready for an <img src>.
func DataURI(content string, size int) (string, error) {
	img, err := PNG(content, size)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(img), nil
}

// ProvisioningDataURI renders an otpauth:// key URI for authenticator apps.
func ProvisioningDataURI(uri string, size int) (string, error) {
	if !strings.HasPrefix(uri, "otpauth://") {
		return "", ErrNotProvisioningURI
	}
	return DataURI(uri, size)
}
