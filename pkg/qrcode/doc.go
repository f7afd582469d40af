// Package qrcode renders provisioning URIs as PNG QR codes so users can
// enroll an authenticator app by scanning instead of typing the secret.
//
//	src, err := qrcode.ProvisioningDataURI(key.URI, 256)
//	// <img src="{{ src }}">
//
// Rendering is done by github.com/skip2/go-qrcode with medium error correction.
package qrcode
