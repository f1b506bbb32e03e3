package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

// TokenClaims is the subset of bearer-token claims the client cares about.
type TokenClaims struct {
	Subject   string
	ExpiresAt time.Time
}

// InspectToken reads the claims of a bearer token without verifying its signature.
// The partner API owns the signing key; the client only needs the expiry to avoid
// sending requests that are bound to be answered with 401.
func InspectToken(tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, errors.New("empty token")
	}
	parser := &jwt.Parser{}
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	out := &TokenClaims{}
	if sub, ok := claims["sub"].(string); ok {
		out.Subject = sub
	}
	if exp, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return out, nil
}

// TokenExpired reports whether a JWT bearer token carries an exp claim in the past.
// Opaque (non-JWT) tokens and tokens without exp are never considered expired here;
// the server stays the judge for those.
func TokenExpired(tokenString string, now time.Time) bool {
	claims, err := InspectToken(tokenString)
	if err != nil || claims.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(claims.ExpiresAt)
}
