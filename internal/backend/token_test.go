package backend

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestParseAccessToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tokenStr := makeToken(t, jwt.MapClaims{
		"sub":   "8d6e1b9a-3f3b-4c6e-9a91-2b8c7d5e4f10",
		"email": "ivanov@medcampus.io",
		"exp":   exp.Unix(),
		"user_metadata": map[string]any{
			"display_name": "Ivan Ivanov",
		},
	})

	identity, expiresAt, err := ParseAccessToken(tokenStr)

	require.NoError(t, err)
	assert.Equal(t, "8d6e1b9a-3f3b-4c6e-9a91-2b8c7d5e4f10", identity.ID)
	assert.Equal(t, "ivanov@medcampus.io", identity.Email)
	assert.Equal(t, "Ivan Ivanov", identity.Metadata["display_name"])
	assert.Equal(t, exp.Unix(), expiresAt.Unix())
}

func TestParseAccessToken_BadSubject(t *testing.T) {
	tokenStr := makeToken(t, jwt.MapClaims{
		"sub": "not-a-uuid",
	})

	_, _, err := ParseAccessToken(tokenStr)

	assert.Error(t, err)
}

func TestParseAccessToken_Garbage(t *testing.T) {
	_, _, err := ParseAccessToken("definitely.not.a-jwt")

	assert.Error(t, err)
}
