package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Digest is a content address: the lowercase hex SHA-256 of a blob's
// bytes. The orchestrator fixes the algorithm to SHA-256 everywhere
// (model artifacts and weight-delta blobs alike), unlike the teacher's
// pluggable blake3/sha1/sha256 scheme.
type Digest struct {
	hex string
}

func NewDigest(hex string) Digest {
	return Digest{hex: hex}
}

// DigestOf computes the content address of data.
func DigestOf(data []byte) Digest {
	sum := sha256.Sum256(data)
	return Digest{hex: hex.EncodeToString(sum[:])}
}

// ParseDigest parses a hex-encoded digest, accepting an optional
// "sha256:" prefix for interoperability with callers that carry it.
func ParseDigest(digest string) (Digest, error) {
	_, data, found := strings.Cut(digest, ":")
	if !found {
		data = digest
	}

	raw, err := hex.DecodeString(data)
	if err != nil {
		return Digest{}, fmt.Errorf("%w: invalid digest %q: %v", ErrPrecondition, digest, err)
	}
	if len(raw) != sha256.Size {
		return Digest{}, fmt.Errorf("%w: invalid digest length %d", ErrPrecondition, len(raw))
	}

	return Digest{hex: data}, nil
}

func (d Digest) Hex() string {
	return d.hex
}

func (d Digest) String() string {
	return d.hex
}

func (d Digest) IsZero() bool {
	return d.hex == ""
}
