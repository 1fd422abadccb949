package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret"
	testIssuer   = "relay-idp"
	testAudience = "relay"
)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func baseClaims() Claims {
	return Claims{
		UserID: "user-1",
		Handle: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer, testAudience)

	claims, err := v.Verify(signToken(t, testSecret, baseClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Handle)
}

func TestVerifyFallsBackToSubject(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer, testAudience)

	c := baseClaims()
	c.UserID = ""
	c.Subject = "user-42"

	claims, err := v.Verify(signToken(t, testSecret, c))
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer, testAudience)

	c := baseClaims()
	c.UserID = ""
	c.Subject = ""

	_, err := v.Verify(signToken(t, testSecret, c))
	assert.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer, testAudience)

	_, err := v.Verify(signToken(t, "other-secret", baseClaims()))
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer, testAudience)

	c := baseClaims()
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	_, err := v.Verify(signToken(t, testSecret, c))
	assert.Error(t, err)
}

func TestVerifyRequiresExpiration(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer, testAudience)

	c := baseClaims()
	c.ExpiresAt = nil

	_, err := v.Verify(signToken(t, testSecret, c))
	assert.Error(t, err)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer, testAudience)

	c := baseClaims()
	c.Issuer = "someone-else"

	_, err := v.Verify(signToken(t, testSecret, c))
	assert.Error(t, err)
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer, testAudience)

	c := baseClaims()
	c.Audience = jwt.ClaimStrings{"another-service"}

	_, err := v.Verify(signToken(t, testSecret, c))
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewVerifier(testSecret, testIssuer, testAudience)

	_, err := v.Verify("not-a-token")
	assert.Error(t, err)
}
