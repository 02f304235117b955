package cyacd

import "github.com/moffa90/go-cyacd2/protocol"

// FromHex converts one ASCII hex digit to its value. Characters that are
// not hex digits convert to 0.
func FromHex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return 10 + c - 'a'
	case 'A' <= c && c <= 'F':
		return 10 + c - 'A'
	}
	return 0
}

// FromASCIIHex decodes pairs of hex digits, high nibble first, using
// FromHex for each digit. An odd number of digits is ErrLength.
func FromASCIIHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, protocol.NewError(protocol.CodeLength, "decode hex", "odd number of hex digits (%d)", len(s))
	}

	out := make([]byte, len(s)/2)
	for i := range out {
		out[i] = FromHex(s[2*i])<<4 | FromHex(s[2*i+1])
	}
	return out, nil
}
