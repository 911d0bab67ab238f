package wire

import (
	"encoding/base64"
	"fmt"
)

// The transport reserves '+' and '/' as framing characters and treats '='
// as control, so payloads ride as unpadded URL-safe base64: the standard
// alphabet with '-' and '_' substituted and padding stripped. The
// transform is bijective for all byte strings and runs as a single linear
// pass over the input.

// TextsafeEncode converts raw bytes to the transport-safe text form.
func TextsafeEncode(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// TextsafeDecode reverses TextsafeEncode.
func TextsafeDecode(s string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	return raw, nil
}

// TextsafeLen reports the encoded length for n raw bytes, for frame
// budget checks.
func TextsafeLen(n int) int {
	return base64.RawURLEncoding.EncodedLen(n)
}
