package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskdash/internal/service"
)

// tokenClaims are the profile claims the gateway puts in its JWTs.
type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	TeamID string `json:"teamId"`
}

// parseClaims decodes the token payload without verifying the signature.
// Verification belongs to the server.
func parseClaims(token string) (*tokenClaims, bool) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, false
	}
	return &claims, true
}

// UserFromToken builds a profile from the token's claims. It requires a
// user id and a role, since a profile without a role cannot be rendered.
func UserFromToken(token string) (service.User, bool) {
	claims, ok := parseClaims(token)
	if !ok {
		return service.User{}, false
	}
	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" || claims.Role == "" {
		return service.User{}, false
	}
	return service.User{
		ID:     id,
		Name:   claims.Name,
		Email:  claims.Email,
		Role:   service.Role(claims.Role),
		TeamID: claims.TeamID,
	}, true
}

// TokenExpiry returns the exp claim, if the token has one.
func TokenExpiry(token string) (time.Time, bool) {
	claims, ok := parseClaims(token)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
