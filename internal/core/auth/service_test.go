package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuca-profiler/yuca/internal/domain"
)

func TestIssueAndVerify(t *testing.T) {
	s := NewService("secret", time.Hour)
	require.True(t, s.Enabled())

	token, err := s.Issue("bench-runner")
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "bench-runner", claims.Subject)
	assert.Equal(t, issuer, claims.Issuer)
}

func TestVerifyRejects(t *testing.T) {
	s := NewService("secret", time.Hour)
	token, err := s.Issue("x")
	require.NoError(t, err)

	_, err = NewService("other", time.Hour).Verify(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = s.Verify("not-a-token")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	expired := NewService("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := expired.Issue("x")
	require.NoError(t, err)
	_, err = s.Verify(old)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Issuer: issuer})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Verify(unsigned)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestDisabledService(t *testing.T) {
	s := NewService("", time.Hour)
	assert.False(t, s.Enabled())

	_, err := s.Issue("x")
	assert.Error(t, err)

	_, err = s.Verify("anything")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	var nilService *Service
	assert.False(t, nilService.Enabled())
}
