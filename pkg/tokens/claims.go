package tokens

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// AccessClaims is the fixed claim set of a bearer token. Subject holds the
// user id and ID holds the jti used as the revocation key.
type AccessClaims struct {
	Type     string `json:"typ"`
	Username string `json:"username"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// Subject is the identity copied into every access token minted for a user.
type Subject struct {
	ID       string
	Username string
	Name     string
}

func NewJTI() string { return uuid.NewString() }
