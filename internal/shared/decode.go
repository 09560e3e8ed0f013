package shared

import (
	"golang.org/x/text/encoding/unicode"
)

// DecodeLossy turns raw bytes into UTF-8 text. Invalid sequences become U+FFFD
// instead of failing the decode.
func DecodeLossy(b []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		// The UTF-8 decoder only replaces; an error here means the transformer
		// itself broke, so fall back to the input as-is.
		return string(b)
	}
	return string(out)
}
