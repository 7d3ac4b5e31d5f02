package util

import (
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a string to NFKD so that session names typed on
// different platforms (macOS decomposes accented characters, Linux does
// not) map to the same on-disk directory.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}
