package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret-32bytes-padded!!"

func TestGenerateToken_Valid(t *testing.T) {
	tok, err := GenerateToken("p42", false, testSecret, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
}

func TestParseToken_Valid(t *testing.T) {
	tok, err := GenerateToken("p99", true, testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(tok, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "p99", claims.PlayerID)
	assert.Equal(t, "p99", claims.Subject)
	assert.True(t, claims.Guest)
}

func TestParseToken_WrongSecret(t *testing.T) {
	tok, err := GenerateToken("p1", false, testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(tok, "wrong-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_Expired(t *testing.T) {
	tok, err := GenerateToken("p1", false, testSecret, -time.Second)
	require.NoError(t, err)

	_, err = ParseToken(tok, testSecret)
	assert.Error(t, err)
}

func TestParseToken_MissingPlayer(t *testing.T) {
	tok, err := GenerateToken("", false, testSecret, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(tok, testSecret)
	assert.Error(t, err)
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{PlayerID: "p1"})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(s, testSecret)
	assert.Error(t, err)
}

func TestParseToken_Malformed(t *testing.T) {
	_, err := ParseToken("not.a.jwt", testSecret)
	assert.Error(t, err)
	_, err = ParseToken("", testSecret)
	assert.Error(t, err)
}

func TestGenerateToken_UniquePerCall(t *testing.T) {
	t1, err := GenerateToken("p1", false, testSecret, time.Hour)
	require.NoError(t, err)
	t2, err := GenerateToken("p1", false, testSecret, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)
}

func TestParseToken_ForeignIssuer(t *testing.T) {
	claims := &Claims{PlayerID: "p1", RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = ParseToken(s, testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateToken_DifferentPlayers(t *testing.T) {
	t1, _ := GenerateToken("a", false, testSecret, time.Hour)
	t2, _ := GenerateToken("b", false, testSecret, time.Hour)
	assert.NotEqual(t, t1, t2)

	c1, _ := ParseToken(t1, testSecret)
	c2, _ := ParseToken(t2, testSecret)
	assert.Equal(t, "a", c1.PlayerID)
	assert.Equal(t, "b", c2.PlayerID)
}
