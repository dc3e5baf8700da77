package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JSON Web Token (JWT) claims.
// It includes standard claims required by the JWT specification and the custom
// claim binding the token to a user identity.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the numeric identifier of the authenticated account. Every REST
	// call and every realtime connection is attributed to this identity.
	UserID int64 `json:"id"`
}
