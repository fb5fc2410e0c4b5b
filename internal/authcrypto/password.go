package authcrypto

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2 parameters pinned by §4.A. The pepper argument is the server
// secret: a leaked database hash alone cannot be brute-forced without
// also compromising the secret used to hash it.
const (
	argon2Time    = 2
	argon2Memory  = 19456 // KiB
	argon2Threads = 1
	argon2KeyLen  = 32
	argon2Version = 0x13
	saltLen       = 16
)

var errMalformedHash = errors.New("authcrypto: malformed password hash")

// HashPassword hashes password with argon2id, keyed additionally by
// pepper (the server secret), and returns an encoded, self-describing
// hash suitable for storage.
func HashPassword(password string, pepper []byte) (string, error) {
	salt, err := RandBytes(saltLen)
	if err != nil {
		return "", err
	}
	sum := argon2.IDKey(peppered(password, pepper), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return encodeHash(salt, sum), nil
}

// VerifyPassword reports whether password (combined with pepper)
// matches the encoded hash, in constant time.
func VerifyPassword(password string, pepper []byte, encoded string) (bool, error) {
	salt, sum, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	candidate := argon2.IDKey(peppered(password, pepper), salt, argon2Time, argon2Memory, argon2Threads, uint32(len(sum)))
	return subtle.ConstantTimeCompare(candidate, sum) == 1, nil
}

func peppered(password string, pepper []byte) []byte {
	if len(pepper) == 0 {
		return []byte(password)
	}
	out := make([]byte, 0, len(password)+len(pepper))
	out = append(out, password...)
	out = append(out, pepper...)
	return out
}

func encodeHash(salt, sum []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version, argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum))
}

func decodeHash(encoded string) (salt, sum []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, errMalformedHash
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, errMalformedHash
	}
	sum, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, errMalformedHash
	}
	return salt, sum, nil
}
