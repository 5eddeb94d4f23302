package utils

import (
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestAccessTokenRoundTrip(t *testing.T) {
    tok, err := NewAccessToken(testSecret, 42, "WAITER", 15)
    require.NoError(t, err)
    require.NotEmpty(t, tok.Token)

    claims, err := ParseAccessToken(testSecret, tok.Token)
    require.NoError(t, err)
    assert.Equal(t, uint64(42), claims.UserID)
    assert.Equal(t, "WAITER", claims.Role)
}

func TestParseAccessTokenWrongSecret(t *testing.T) {
    tok, err := NewAccessToken(testSecret, 42, "GUEST", 15)
    require.NoError(t, err)

    _, err = ParseAccessToken("other-secret", tok.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenExpired(t *testing.T) {
    claims := jwt.MapClaims{
        "sub":  42,
        "role": "GUEST",
        "exp":  time.Now().UTC().Add(-time.Minute).Unix(),
        "iat":  time.Now().UTC().Add(-time.Hour).Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
    require.NoError(t, err)

    _, err = ParseAccessToken(testSecret, signed)
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejectsMissingRole(t *testing.T) {
    claims := jwt.MapClaims{
        "sub": 42,
        "exp": time.Now().UTC().Add(time.Minute).Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
    require.NoError(t, err)

    _, err = ParseAccessToken(testSecret, signed)
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenStringSubject(t *testing.T) {
    claims := jwt.MapClaims{
        "sub":  "42",
        "role": "CHEF",
        "exp":  time.Now().UTC().Add(time.Minute).Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
    require.NoError(t, err)

    out, err := ParseAccessToken(testSecret, signed)
    require.NoError(t, err)
    assert.Equal(t, uint64(42), out.UserID)
}

func TestParseAccessTokenGarbage(t *testing.T) {
    _, err := ParseAccessToken(testSecret, "not.a.token")
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashRefreshRawStable(t *testing.T) {
    a := HashRefreshRaw("raw-token")
    b := HashRefreshRaw("raw-token")
    c := HashRefreshRaw("other-token")
    assert.Equal(t, a, b)
    assert.NotEqual(t, a, c)
    assert.Len(t, a, 64) // hex-encoded SHA-256
}

func TestNewRefreshTokenUnique(t *testing.T) {
    r1, err := NewRefreshToken(7)
    require.NoError(t, err)
    r2, err := NewRefreshToken(7)
    require.NoError(t, err)
    assert.NotEqual(t, r1.Raw, r2.Raw)
    assert.True(t, r1.Exp.After(time.Now().UTC().Add(6*24*time.Hour)))
}
