package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("secret")

	token, err := v.Issue(Identity{UserID: "user-1", Role: RoleAdmin}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.True(t, id.IsAdmin())
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("secret")

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewVerifier("other").Issue(Identity{UserID: "u"}, time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		old := NewVerifier("secret")
		old.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := old.Issue(Identity{UserID: "u"}, time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("alg none", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "u",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = v.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		token, err := v.Issue(Identity{}, time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u"})
	id, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u", id.UserID)
	assert.False(t, id.IsAdmin())
}
