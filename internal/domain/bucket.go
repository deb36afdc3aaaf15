package domain

import "strings"

// Bucket and key names travel inside NUL-delimited storage keys, so NUL is
// the one byte neither may contain. Names are otherwise unrestricted.

// ValidateBucketName checks a bucket name for use in storage keys.
func ValidateBucketName(name string) error {
	if name == "" {
		return NewInvalidInput("bucket", "name is empty")
	}
	if strings.ContainsRune(name, 0) {
		return NewInvalidInput("bucket", "name contains a NUL byte")
	}
	return nil
}

// ValidateObjectKey checks an object key for use in storage keys.
func ValidateObjectKey(key string) error {
	if strings.ContainsRune(key, 0) {
		return NewInvalidInput("key", "key contains a NUL byte")
	}
	return nil
}
