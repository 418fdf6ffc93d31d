package cachestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// DeriveKey computes the cache key for a namespace, branch and an ordered
// list of content checksums. It is a pure function: identical inputs always
// yield the identical key, and changing any checksum changes the key.
//
// The inputs are fed through SHA-256 with length prefixes so that no two
// distinct input tuples can collide by concatenation (["ab","c"] vs
// ["a","bc"]). The key is prefixed with the namespace to keep stored entries
// legible when listing a backend.
func DeriveKey(namespace, branch string, checksums ...string) string {
	h := sha256.New()
	writeField(h, namespace)
	writeField(h, branch)
	for _, sum := range checksums {
		writeField(h, sum)
	}
	return fmt.Sprintf("%s-%s", namespace, hex.EncodeToString(h.Sum(nil)))
}

func writeField(w io.Writer, field string) {
	fmt.Fprintf(w, "%d:%s", len(field), field)
}

// ChecksumFile returns the hex SHA-256 of a file's contents, the checksum
// input CI definitions reference for dependency manifests.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
