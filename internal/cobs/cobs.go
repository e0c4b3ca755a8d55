// Package cobs implements Consistent Overhead Byte Stuffing.
//
// Encoded data contains no zero bytes, so a zero can delimit frames on a
// byte stream. Encoding adds one byte per started 254-byte run.
package cobs

import "errors"

var (
	ErrZeroByte  = errors.New("cobs: zero byte in encoded data")
	ErrTruncated = errors.New("cobs: truncated block")
)

// MaxEncodedLen returns the longest encoding of n bytes.
func MaxEncodedLen(n int) int {
	return n + n/254 + 1
}

// Encode returns the stuffed form of src without a delimiter.
func Encode(src []byte) []byte {
	dst := make([]byte, 1, MaxEncodedLen(len(src)))
	code, at := byte(1), 0
	for _, b := range src {
		if b != 0 {
			dst = append(dst, b)
			code++
		}
		if b == 0 || code == 0xFF {
			dst[at] = code
			at = len(dst)
			dst = append(dst, 0)
			code = 1
		}
	}
	dst[at] = code
	return dst
}

// Decode reverses Encode. src must not include the delimiter.
func Decode(src []byte) ([]byte, error) {
	dst := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		code := int(src[i])
		if code == 0 {
			return nil, ErrZeroByte
		}
		i++
		end := i + code - 1
		if end > len(src) {
			return nil, ErrTruncated
		}
		for _, b := range src[i:end] {
			if b == 0 {
				return nil, ErrZeroByte
			}
		}
		dst = append(dst, src[i:end]...)
		i = end
		if code != 0xFF && i < len(src) {
			dst = append(dst, 0)
		}
	}
	return dst, nil
}
