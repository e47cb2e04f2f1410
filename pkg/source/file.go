package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// Fingerprint returns a content hash suitable as a Fetcher fingerprint.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// File returns a Fetcher that reads path and decodes it. The fingerprint is
// a hash of the file content, so touching the file without changing it does
// not publish a new snapshot.
func File[S any](path string, decode func([]byte) (S, error)) Fetcher[S] {
	return FetchFunc[S](func(ctx context.Context) (S, string, error) {
		var zero S
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return zero, "", err
		}
		snap, err := decode(data)
		if err != nil {
			return zero, "", fmt.Errorf("decode %s: %w", path, err)
		}
		return snap, Fingerprint(data), nil
	})
}
