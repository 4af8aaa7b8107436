package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesExpiry(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)
	rec := New("A1", "R1", 3600, issued, OriginRotation)

	assert.Equal(t, issued.Unix()+3600, rec.ExpiresAt)
	assert.Equal(t, issued.Unix(), rec.UpdatedAt)
	assert.Equal(t, int64(3600), rec.ExpiresIn)
	assert.Equal(t, OriginRotation, rec.Origin)
}

func TestRecord_Valid(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)
	rec := New("A1", "R1", 3600, issued, OriginBootstrap)

	t.Run("fresh record is valid", func(t *testing.T) {
		assert.True(t, rec.Valid(issued.Add(time.Minute)))
	})

	t.Run("expired record is invalid", func(t *testing.T) {
		assert.False(t, rec.Valid(issued.Add(2*time.Hour)))
	})

	t.Run("validity flips exactly at expires_at", func(t *testing.T) {
		assert.True(t, rec.Valid(issued.Add(time.Hour-time.Second)))
		assert.False(t, rec.Valid(issued.Add(time.Hour)))
	})

	t.Run("empty access token is never valid", func(t *testing.T) {
		empty := New("", "R1", 3600, issued, OriginBootstrap)
		assert.False(t, empty.Valid(issued))
	})

	t.Run("validity ignores token content", func(t *testing.T) {
		other := New("completely-different-token", "R1", 3600, issued, OriginBootstrap)
		assert.Equal(t, rec.Valid(issued), other.Valid(issued))
	})
}

func TestRecord_Rotatable(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)

	expired := New("A1", "R1", 0, issued, OriginRotation)
	assert.False(t, expired.Valid(issued.Add(time.Second)))
	assert.True(t, expired.Rotatable(), "rotatability is independent of access-token validity")

	noRefresh := New("A1", "", 3600, issued, OriginRotation)
	assert.False(t, noRefresh.Rotatable())
}

func TestRecord_RoundTrip(t *testing.T) {
	rec := Record{
		AccessToken:  "A1",
		RefreshToken: "R1",
		TokenType:    "Bearer",
		Scope:        "offline_access read",
		ExpiresIn:    21600,
		ExpiresAt:    1_700_021_600,
		UpdatedAt:    1_700_000_000,
		Origin:       OriginBootstrap,
	}

	data, err := rec.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestUnmarshal_RejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	require.Error(t, err)
}
