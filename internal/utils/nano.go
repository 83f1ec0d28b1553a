package utils

import gonanoid "github.com/matoous/go-nanoid/v2"

var (
	NanoidSize     = 32
	nanoidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// object keys are compared case-sensitively by S3 but not by every
	// S3-compatible store, so key suffixes stay lowercase
	keySuffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	KeySuffixSize     = 6
)

func NanoID() string {
	return NanoIDSize(NanoidSize)
}

func NanoIDSize(size int) string {
	if size == 0 {
		size = NanoidSize
	}

	return gonanoid.MustGenerate(nanoidAlphabet, size)
}

// KeySuffix is the random component embedded in derived storage keys.
func KeySuffix() string {
	return gonanoid.MustGenerate(keySuffixAlphabet, KeySuffixSize)
}
