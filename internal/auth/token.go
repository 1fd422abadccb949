package auth

import (
	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Claims as issued by the external identity provider. The core never mints
// tokens; it verifies the signature and trusts the subject as the immutable
// user identifier.
type Claims struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewVerifier(secret, issuer, audience string) *Verifier {
	return &Verifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
	}
}

func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrInvalidToken
		}
		return v.secret, nil
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Unauthorized("invalid or expired token")
	}

	if !token.Valid {
		return nil, errors.Unauthorized("invalid token")
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.Unauthorized("token missing subject")
	}

	return claims, nil
}
