package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/wastewatch-backend/internal/models"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	id := uuid.New()

	token, exp, err := tm.GenerateAccess(id, models.RoleWorker)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	actor, err := tm.Actor(token)
	require.NoError(t, err)
	assert.Equal(t, id, actor.ID)
	assert.Equal(t, models.RoleWorker, actor.Role)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	id := uuid.New()

	t.Run("чужой секрет", func(t *testing.T) {
		token, _, err := NewTokenManager("other", time.Hour).GenerateAccess(id, models.RoleAdmin)
		require.NoError(t, err)
		_, _, err = tm.ParseAccess(token)
		assert.Error(t, err)
	})

	t.Run("истёк", func(t *testing.T) {
		expired := NewTokenManager("secret", time.Hour)
		expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := expired.GenerateAccess(id, models.RoleAdmin)
		require.NoError(t, err)
		_, _, err = tm.ParseAccess(token)
		assert.Error(t, err)
	})

	t.Run("неизвестная роль", func(t *testing.T) {
		token, _, err := tm.GenerateAccess(id, "superuser")
		require.NoError(t, err)
		_, _, err = tm.ParseAccess(token)
		assert.Error(t, err)
	})

	t.Run("без срока действия", func(t *testing.T) {
		raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": id.String(), "role": models.RoleAdmin})
		token, err := raw.SignedString([]byte("secret"))
		require.NoError(t, err)
		_, _, err = tm.ParseAccess(token)
		assert.Error(t, err)
	})

	t.Run("другой алгоритм", func(t *testing.T) {
		raw := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
			"sub":  id.String(),
			"role": models.RoleAdmin,
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		token, err := raw.SignedString([]byte("secret"))
		require.NoError(t, err)
		_, _, err = tm.ParseAccess(token)
		assert.Error(t, err)
	})
}
