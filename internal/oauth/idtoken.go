package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/ncrq/authguard/internal/authcrypto"
	"github.com/ncrq/authguard/internal/storage"
)

// atHash implements OIDC core's at_hash: base64url of the left half of
// the hash matching the signing algorithm's strength (SHA-256 for
// RS256/HS256, both used by this server).
func atHash(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}

func (p *Provider) issueIDToken(c storage.OAuthClient, userID, accessToken, nonce string, authTime time.Time, scopes []string, user storage.User) (string, error) {
	now := time.Now()
	claims := map[string]interface{}{
		"iss":       p.Issuer,
		"sub":       userID,
		"aud":       c.ClientID,
		"exp":       now.Add(accessTokenExpiry).Unix(),
		"iat":       now.Unix(),
		"auth_time": authTime.Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	if accessToken != "" {
		claims["at_hash"] = atHash(accessToken)
	}
	for k, v := range userClaims(user, scopes) {
		claims[k] = v
	}
	return authcrypto.MakeJWT(claims, p.idTokenKey())
}

// userClaims gates profile/email claims by scope, per §4.H's userinfo
// paragraph (the same gating applies to id_token claims).
func userClaims(u storage.User, scopes []string) map[string]interface{} {
	out := map[string]interface{}{}
	if contains(scopes, ScopeProfile) {
		out["name"] = u.DisplayName
		out["picture"] = u.ImageURL
	}
	if contains(scopes, ScopeEmail) {
		out["email"] = u.Email
		out["email_verified"] = u.EmailVerified
	}
	return out
}
