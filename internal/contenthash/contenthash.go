// Package contenthash computes the BLAKE3 digests used to group duplicate
// catalog entries and to verify downloaded files.
package contenthash

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// SumFile streams the file at path through BLAKE3 and returns the lowercase
// hex digest.
func SumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	digest, err := SumReader(file)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return digest, nil
}

// SumReader consumes r and returns the lowercase hex BLAKE3 digest.
func SumReader(r io.Reader) (string, error) {
	hasher := blake3.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
