// Package auth adapts the external auth collaborator: an opaque
// credential in, a resolved Identity out. Resolution happens exactly
// once per connection, at handshake time.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"talkify/domain"
	"talkify/errors"
)

// Resolver validates bearer tokens issued by the session collaborator.
type Resolver struct {
	secret []byte
}

func NewResolver(secret []byte) *Resolver {
	return &Resolver{secret: secret}
}

// Resolve parses and validates the signature and expiration of a
// credential. A missing, malformed or expired credential, or one
// without a subject identity, fails with ErrUnauthenticated. The
// handshake is rejected before any room join is possible.
func (r *Resolver) Resolve(_ context.Context, credential string) (domain.Identity, error) {
	if credential == "" {
		return domain.Identity{}, errors.ErrUnauthenticated
	}

	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return r.secret, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return domain.Identity{}, errors.ErrUnauthenticated
	}

	return domain.Identity{ID: claims.UserID, Name: claims.Name}, nil
}
