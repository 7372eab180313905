package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory() (*Memory, *time.Time) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m, now := newTestMemory()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	*now = now.Add(time.Minute)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_GetDelIsOneShot(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory()

	require.NoError(t, m.Set(ctx, "otp", []byte("123456"), time.Minute))
	got, err := m.GetDel(ctx, "otp")
	require.NoError(t, err)
	assert.Equal(t, "123456", string(got))

	_, err = m.GetDel(ctx, "otp")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_RateLimitWindow(t *testing.T) {
	ctx := context.Background()
	m, now := newTestMemory()

	for i := 0; i < 3; i++ {
		assert.False(t, m.IsRateLimited(ctx, "1.2.3.4", 3, time.Minute), "hit %d", i+1)
	}
	assert.True(t, m.IsRateLimited(ctx, "1.2.3.4", 3, time.Minute))
	assert.False(t, m.IsRateLimited(ctx, "5.6.7.8", 3, time.Minute))

	*now = now.Add(time.Minute)
	assert.False(t, m.IsRateLimited(ctx, "1.2.3.4", 3, time.Minute))
}

func TestMemory_Sweep(t *testing.T) {
	ctx := context.Background()
	m, now := newTestMemory()

	require.NoError(t, m.Set(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, m.Set(ctx, "forever", []byte("b"), 0))

	*now = now.Add(time.Hour)
	assert.Equal(t, 1, m.Sweep())

	_, err := m.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory()

	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, SetJSON(ctx, m, "p", payload{Name: "bigbag"}, time.Minute))

	var got payload
	require.NoError(t, GetJSON(ctx, m, "p", &got))
	assert.Equal(t, "bigbag", got.Name)

	assert.ErrorIs(t, GetJSON(ctx, m, "missing", &got), ErrMiss)
}
