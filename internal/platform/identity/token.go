// Package identity derives the dashboard user from the bearer credential.
//
// The token is not verified here: the data service and the event channel
// verify it on every call. The dashboard only needs the subject to scope
// SQL-backed sources and to label telemetry.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSubject = errors.New("token has no subject")

type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// ParseToken extracts the user id from a JWT. The subject claim is preferred;
// tokens minted with an `_id` or `id` claim are accepted as well.
func ParseToken(token string) (Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return Claims{}, errors.New("parse token: token is empty")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}

	var out Claims
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		for _, key := range []string{"_id", "id"} {
			if v, ok := claims[key].(string); ok && v != "" {
				sub = v
				break
			}
		}
	}
	if sub == "" {
		return Claims{}, fmt.Errorf("parse token: %w", ErrNoSubject)
	}
	out.UserID = sub

	return out, nil
}

// Expired reports whether the token carries an expiry before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
