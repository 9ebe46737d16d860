package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// GenerateCode returns n random bytes hex encoded (2n characters).
func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return strings.ToLower(hex.EncodeToString(byt)), nil
}

// PrefixedID builds processor style identifiers such as "cs_3f9a…".
func PrefixedID(prefix string, n int) (string, error) {
	code, err := GenerateCode(n)
	if err != nil {
		return "", err
	}
	return prefix + "_" + code, nil
}
