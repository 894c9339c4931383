// Package cryptox implements the one-way credential hasher used for user
// passwords and for refresh-token strings.
//
// Digests are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory KiB>,t=<iterations>,p=<parallelism>$<salt>$<key>
//
// Salt and key are unpadded standard base64. Every call to Hash draws a fresh
// random salt, so hashing the same secret twice yields different digests.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Version = argon2.Version

// ErrInvalidHash is returned by Verify for digests that are malformed, use an
// unsupported variant, or carry parameters far above the configured ones.
var ErrInvalidHash = errors.New("invalid credential hash")

// HasherParams tunes Argon2id.
type HasherParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultHasherParams returns the production parameters.
func DefaultHasherParams() HasherParams {
	return HasherParams{
		MemoryKiB:   64 * 1024,
		Iterations:  1,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2idHasher hashes and verifies secrets. It holds only immutable
// parameters and is safe for concurrent use.
type Argon2idHasher struct {
	params HasherParams
}

// NewArgon2idHasher builds a hasher. Zero fields in p fall back to defaults.
func NewArgon2idHasher(p HasherParams) *Argon2idHasher {
	d := DefaultHasherParams()
	if p.MemoryKiB == 0 {
		p.MemoryKiB = d.MemoryKiB
	}
	if p.Iterations == 0 {
		p.Iterations = d.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = d.Parallelism
	}
	if p.SaltLength == 0 {
		p.SaltLength = d.SaltLength
	}
	if p.KeyLength == 0 {
		p.KeyLength = d.KeyLength
	}
	return &Argon2idHasher{params: p}
}

// Hash returns a salted PHC-encoded digest of secret.
func (h *Argon2idHasher) Hash(secret string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify reports whether secret matches digest. A mismatch is (false, nil);
// an unusable digest is (false, ErrInvalidHash).
func (h *Argon2idHasher) Verify(secret, digest string) (bool, error) {
	p, salt, expected, err := decodeDigest(digest)
	if err != nil {
		return false, err
	}
	if !h.withinBounds(p) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey([]byte(secret), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)

	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

// withinBounds refuses digests whose cost is far above ours, so a planted
// digest cannot make Verify arbitrarily expensive.
func (h *Argon2idHasher) withinBounds(p HasherParams) bool {
	switch {
	case p.MemoryKiB > h.params.MemoryKiB*2:
		return false
	case p.Iterations > h.params.Iterations*2:
		return false
	case uint32(p.Parallelism) > uint32(h.params.Parallelism)*2:
		return false
	case p.SaltLength < 8 || p.SaltLength > 64:
		return false
	case p.KeyLength < 16 || p.KeyLength > 128:
		return false
	}
	return true
}

func decodeDigest(digest string) (HasherParams, []byte, []byte, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return HasherParams{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2Version) {
		return HasherParams{}, nil, nil, ErrInvalidHash
	}

	var mem, iter, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return HasherParams{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return HasherParams{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return HasherParams{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return HasherParams{}, nil, nil, ErrInvalidHash
	}

	return HasherParams{
		MemoryKiB:   mem,
		Iterations:  iter,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}, salt, key, nil
}

// Wipe overwrites b with zeros. Use it on password buffers once they have
// been hashed. A nil slice is left alone.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
