package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (OWASP).
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 1
	argonKeyLen  = 32
	argonSaltLen = 16

	phcPrefix = "$argon2id$"
)

// HashKey returns key as an Argon2id PHC string:
// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func HashKey(key string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(key), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyKey reports whether key matches the PHC string encoded.
func VerifyKey(key, encoded string) (bool, error) {
	p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	candidate := argon2.IDKey([]byte(key), p.salt, p.time, p.memory, p.threads, uint32(len(p.hash))) //nolint:gosec // hash length fits uint32
	return subtle.ConstantTimeCompare(p.hash, candidate) == 1, nil
}

type phc struct {
	salt, hash []byte
	time       uint32
	memory     uint32
	threads    uint8
}

func decodePHC(encoded string) (phc, error) {
	var p phc
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC has six $-delimited parts
		return p, fmt.Errorf("invalid PHC hash format")
	}
	if parts[1] != "argon2id" {
		return p, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, fmt.Errorf("parsing version: %w", err)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, fmt.Errorf("parsing parameters: %w", err)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, fmt.Errorf("decoding salt: %w", err)
	}
	if p.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, fmt.Errorf("decoding hash: %w", err)
	}
	return p, nil
}

// KeyRing holds the client API keys accepted by the token endpoint.
// Entries are either PHC hashes or raw keys.
type KeyRing struct {
	keys []string
}

// NewKeyRing creates a key ring from configured entries. Blank entries are skipped.
func NewKeyRing(entries []string) *KeyRing {
	kr := &KeyRing{}
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			kr.keys = append(kr.keys, e)
		}
	}
	return kr
}

// Len returns the number of configured keys.
func (kr *KeyRing) Len() int { return len(kr.keys) }

// Check returns nil when key matches a configured entry.
func (kr *KeyRing) Check(key string) error {
	if len(kr.keys) == 0 {
		return ErrNoAPIKeys
	}
	if key == "" {
		return ErrInvalidAPIKey
	}
	for _, entry := range kr.keys {
		if strings.HasPrefix(entry, phcPrefix) {
			ok, err := VerifyKey(key, entry)
			if err == nil && ok {
				return nil
			}
			continue
		}
		if subtle.ConstantTimeCompare([]byte(entry), []byte(key)) == 1 {
			return nil
		}
	}
	return ErrInvalidAPIKey
}
