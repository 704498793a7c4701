package content

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeBase64 encodes a payload for the store's content transport.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes store content. Hosting APIs wrap base64 bodies in
// newlines, so whitespace is stripped before decoding.
func DecodeBase64(encoded string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, encoded)
	data, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("decode base64 content: %w", err)
	}
	return data, nil
}

// EncodeText encodes UTF-8 text for the transport.
func EncodeText(text string) string {
	return EncodeBase64([]byte(text))
}

// DecodeText decodes transport content as UTF-8 text.
func DecodeText(encoded string) (string, error) {
	data, err := DecodeBase64(encoded)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
