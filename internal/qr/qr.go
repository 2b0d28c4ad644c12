// Package qr renders signer output as QR images.
package qr

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

// PNG encodes content as a QR PNG of the given size.
func PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, errors.New("nothing to encode")
	}
	if size <= 0 {
		size = DefaultSize
	}
	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := code.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PNG: %w", err)
	}
	return png, nil
}

// Base64 returns the PNG of content encoded as base64.
func Base64(content string, size int) (string, error) {
	png, err := PNG(content, size)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// WriteFile writes the PNG of content to path.
func WriteFile(path, content string, size int) error {
	png, err := PNG(content, size)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
