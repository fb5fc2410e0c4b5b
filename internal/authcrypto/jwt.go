package authcrypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

// SigningKey pairs a JOSE key with the key ID to publish in the JWT
// header, mirroring the teacher's storage.Keys/VerificationKey split
// between an active signing key and rotated verification keys.
type SigningKey struct {
	KeyID string
	Alg   jose.SignatureAlgorithm
	Key   interface{} // *rsa.PrivateKey, ed25519.PrivateKey, ecdsa.PrivateKey, or []byte for HMAC
}

// AlgorithmForKey infers the JOSE signature algorithm for a key the
// way the teacher's server/oauth2.go signatureAlgorithm does: RSA
// always signs RS256 (mandated by OIDC core), Ed25519 signs EdDSA,
// and raw byte slices sign HS256.
func AlgorithmForKey(key interface{}) (jose.SignatureAlgorithm, error) {
	switch key.(type) {
	case *rsa.PrivateKey:
		return jose.RS256, nil
	case ed25519.PrivateKey:
		return jose.EdDSA, nil
	case *ecdsa.PrivateKey:
		return jose.ES256, nil
	case []byte:
		return jose.HS256, nil
	default:
		return "", fmt.Errorf("authcrypto: unsupported signing key type %T", key)
	}
}

// MakeJWT signs payload as a JWT using key. HS256 is the default for a
// bare secret; RS256/EdDSA are used automatically when a JWKS-backed
// asymmetric key is supplied (§4.A).
func MakeJWT(payload interface{}, key SigningKey) (string, error) {
	alg := key.Alg
	if alg == "" {
		var err error
		alg, err = AlgorithmForKey(key.Key)
		if err != nil {
			return "", err
		}
	}

	opts := (&jose.SignerOptions{}).WithType("JWT")
	if key.KeyID != "" {
		opts = opts.WithHeader("kid", key.KeyID)
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: key.Key}, opts)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sig, err := signer.Sign(body)
	if err != nil {
		return "", err
	}
	return sig.CompactSerialize()
}

// VerifyJWT parses and verifies a compact JWT against key, unmarshaling
// its claims into out.
func VerifyJWT(token string, key interface{}, out interface{}) error {
	sig, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{
		jose.HS256, jose.RS256, jose.ES256, jose.EdDSA,
	})
	if err != nil {
		return err
	}
	payload, err := sig.Verify(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, out)
}

// PublicJWKS builds a JSON Web Key Set containing the public half of
// every verification key, for publication at /jwks per §6.
func PublicJWKS(keys []jose.JSONWebKey) jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: keys}
}
