package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bigbag/internal/cache"
	"bigbag/internal/models"
	"bigbag/internal/store/memory"
)

func newTestApp(t *testing.T) (*app, *memory.Store) {
	t.Helper()
	st := memory.New()
	return &app{store: st, cache: cache.NewMemory(), welcome: 3}, st
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func createVendorShop(t *testing.T, st *memory.Store) (*models.User, *models.Shop) {
	t.Helper()
	ctx := context.Background()
	v := &models.User{Name: "V", Email: "v@example.com", Role: models.RoleVendor}
	require.NoError(t, st.CreateUser(ctx, v))
	sh := &models.Shop{OwnerID: v.ID, Name: "Souk", Status: models.ShopPending}
	require.NoError(t, st.CreateShop(ctx, sh))
	return v, sh
}

func TestSeed(t *testing.T) {
	a, st := newTestApp(t)
	file := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
categories:
  - {name: Fashion, slug: Fashion, sortOrder: 1, active: true}
packages:
  - {name: Starter, rollCount: 10, price: 9.99, active: true}
`), 0o644))

	out, err := run(t, a, "seed", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 1 categories and 1 packages")

	cats, err := st.ListCategories(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "fashion", cats[0].Slug)

	_, err = run(t, a, "seed", "--file", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestShopStatus_GrantsWelcomeRolls(t *testing.T) {
	a, st := newTestApp(t)
	v, sh := createVendorShop(t, st)

	out, err := run(t, a, "shop", "status", sh.ID.Hex(), models.ShopApproved)
	require.NoError(t, err)
	assert.Contains(t, out, "is now approved")

	vp, err := st.GetVendorProfile(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, vp.AvailableRolls)

	_, err = run(t, a, "shop", "status", sh.ID.Hex(), "closed")
	assert.Error(t, err)
	_, err = run(t, a, "shop", "status", "nope", models.ShopApproved)
	assert.ErrorContains(t, err, "invalid shop id")
}

func TestCreditsGrant(t *testing.T) {
	a, st := newTestApp(t)
	v, _ := createVendorShop(t, st)

	out, err := run(t, a, "credits", "grant", v.ID.Hex(), "5")
	require.NoError(t, err)
	assert.Contains(t, out, "granted 5 rolls; 5 available")

	_, err = run(t, a, "credits", "grant", v.ID.Hex(), "0")
	assert.Error(t, err)
	_, err = run(t, a, "credits", "grant", v.ID.Hex(), "many")
	assert.ErrorContains(t, err, "integer")
}

func TestLeaderboard(t *testing.T) {
	a, st := newTestApp(t)
	_, sh := createVendorShop(t, st)
	ctx := context.Background()
	_, err := st.SetShopStatus(ctx, sh.ID, models.ShopApproved, "", sh.CreatedAt)
	require.NoError(t, err)
	require.NoError(t, a.shares().Record(ctx, sh.ID, "ae"))
	require.NoError(t, a.shares().Record(ctx, sh.ID, "ae"))

	out, err := run(t, a, "leaderboard", "--country", "AE")
	require.NoError(t, err)
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "Souk")
	assert.Contains(t, out, sh.ID.Hex())

	_, err = run(t, a, "leaderboard", "--week", "last-week")
	assert.ErrorContains(t, err, "YYYY-MM-DD")
}

func TestUserPromote(t *testing.T) {
	a, st := newTestApp(t)
	u := &models.User{Name: "Ops", Email: "ops@example.com", Role: models.RoleUser}
	require.NoError(t, st.CreateUser(context.Background(), u))

	out, err := run(t, a, "user", "promote", "  OPS@example.com", models.RoleAdmin)
	require.NoError(t, err)
	assert.Contains(t, out, "ops@example.com is now admin")

	got, err := st.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	_, err = run(t, a, "user", "promote", "ops@example.com", "root")
	assert.ErrorContains(t, err, "unknown role")
	_, err = run(t, a, "user", "promote", "ghost@example.com", models.RoleVendor)
	assert.Error(t, err)
}
