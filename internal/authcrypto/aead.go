package authcrypto

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidCiphertext is returned by Decrypt when the authentication
// tag does not verify, per §4.A.
var ErrInvalidCiphertext = errors.New("authcrypto: invalid ciphertext")

// Encrypt seals plaintext with XChaCha20-Poly1305 under key (exactly
// chacha20poly1305.KeySize bytes), using a fresh random nonce managed
// internally, and returns the result hex-encoded as nonce||ciphertext.
func Encrypt(key, plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	nonce, err := RandBytes(aead.NonceSize())
	if err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt is the inverse of Encrypt. It fails with ErrInvalidCiphertext
// on any tag mismatch or malformed input, never leaking why.
func Decrypt(key []byte, ciphertextHex string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	if len(raw) < aead.NonceSize() {
		return nil, ErrInvalidCiphertext
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	return plaintext, nil
}
