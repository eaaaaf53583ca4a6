package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"talkify/domain"
)

// Claims defines the structure of the data stored inside the JWT.
// The display name travels in the token so the core never needs a
// per-message lookup against the user store.
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a specific identity. The
// session-issuing collaborator owns this in production; it is kept
// here for tooling and tests.
func GenerateToken(secret []byte, identity domain.Identity, duration time.Duration) (string, error) {
	claims := &Claims{
		UserID: identity.ID,
		Name:   identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "talkify",
		},
	}

	// HS256 (HMAC with SHA256), signed with the deployment secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
