//go:build !appengine
// +build !appengine

package convert

import "unsafe"

// UnsafeStringToBytes converts a string to []byte without memcopy. The
// result aliases the string and must not be written to.
func UnsafeStringToBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// UnsafeBytesToString converts []byte to string without memcopy. The input
// must not be mutated afterwards.
func UnsafeBytesToString(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}
