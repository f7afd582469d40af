package qrcode_test

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/twofactor/pkg/qrcode"
)

const uri = "otpauth://totp/Acme:alice@example.com?algorithm=SHA1&digits=6&issuer=Acme&period=30&secret=JBSWY3DPEHPK3PXP"

func TestPNG(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		size     int
		wantSize int
	}{
		{"explicit size", 128, 128},
		{"default size", 0, qrcode.DefaultSize},
		{"negative size", -5, qrcode.DefaultSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			img, err := qrcode.PNG(uri, tt.size)
			require.NoError(t, err)

			decoded, err := png.Decode(bytes.NewReader(img))
			require.NoError(t, err)
			assert.Equal(t, tt.wantSize, decoded.Bounds().Dx())
		})
	}

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		_, err := qrcode.PNG("  ", 128)
		assert.ErrorIs(t, err, qrcode.ErrEmptyContent)
	})
}

func TestProvisioningDataURI(t *testing.T) {
	t.Parallel()

	src, err := qrcode.ProvisioningDataURI(uri, 200)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(src, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(src, "data:image/png;base64,"))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	_, err = qrcode.ProvisioningDataURI("https://example.com", 200)
	assert.ErrorIs(t, err, qrcode.ErrNotProvisioningURI)
}
