package token

import (
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Introspection is what the client can learn about a token without the signing key.
// Nothing here is trusted, the API remains the source of truth for validity.
type Introspection struct {
	IsJWT     bool      // False for opaque tokens
	TokenType string    // "access" or "refresh" for SimpleJWT tokens
	UserID    string    // user_id claim
	JTI       string    // jti claim
	ExpiresAt time.Time // Zero when unknown
}

// HasExpiry reports whether the token carries an exp claim
func (i Introspection) HasExpiry() bool {
	return !i.ExpiresAt.IsZero()
}

// ExpiredAt reports whether the token's exp claim is at or before now. Tokens
// without a known expiry are never reported as expired.
func (i Introspection) ExpiredAt(now time.Time) bool {
	return i.HasExpiry() && !now.Before(i.ExpiresAt)
}

// Inspect parses raw without verifying its signature. Opaque tokens yield IsJWT false and no error.
func Inspect(raw string) Introspection {
	raw = strings.TrimSpace(raw)
	if strings.Count(raw, ".") != 2 {
		return Introspection{}
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return Introspection{}
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Introspection{}
	}

	i := Introspection{IsJWT: true}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		i.ExpiresAt = exp.Time
	}
	i.TokenType, _ = claims["token_type"].(string)
	i.JTI, _ = claims["jti"].(string)
	switch v := claims["user_id"].(type) {
	case string:
		i.UserID = v
	case float64:
		i.UserID = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return i
}
