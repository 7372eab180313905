package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bigbag/internal/models"
)

func TestShopLifecycle(t *testing.T) {
	e := newTestEnv(t)
	_, vendorToken := e.user("dana", models.RoleVendor)
	_, adminToken := e.user("root", models.RoleAdmin)
	_, userToken := e.user("sam", models.RoleUser)

	res := e.do(http.MethodPost, "/api/shops", userToken, map[string]string{"name": "Nope"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = e.do(http.MethodPost, "/api/shops", vendorToken, map[string]string{"name": "Dana Deals", "country": "ae"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var shop models.Shop
	res.decode(&shop)
	assert.Equal(t, models.ShopPending, shop.Status)
	id := shop.ID.Hex()

	res = e.do(http.MethodPost, "/api/shops", vendorToken, map[string]string{"name": "Second"})
	assert.Equal(t, http.StatusConflict, res.Code)

	// Pending shops are hidden from the public but visible to the owner.
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/shops/"+id, userToken, nil).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/shops/"+id, vendorToken, nil).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/shops/mine", vendorToken, nil).Code)

	var listed []models.Shop
	e.do(http.MethodGet, "/api/shops", "", nil).decode(&listed)
	assert.Empty(t, listed)

	res = e.do(http.MethodPost, "/api/admin/shops/"+id+"/status", vendorToken, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusForbidden, res.Code)
	res = e.do(http.MethodPost, "/api/admin/shops/"+id+"/status", adminToken, map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	res = e.do(http.MethodPost, "/api/admin/shops/"+id+"/status", adminToken, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, res.Code)

	e.do(http.MethodGet, "/api/shops", "", nil).decode(&listed)
	require.Len(t, listed, 1)
	assert.Equal(t, "Dana Deals", listed[0].Name)

	var vp models.VendorProfile
	res = e.do(http.MethodGet, "/api/vendor/profile", vendorToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	res.decode(&vp)
	assert.Equal(t, 3, vp.AvailableRolls)
	assert.Equal(t, shop.ID, vp.ShopID)

	res = e.do(http.MethodPatch, "/api/shops/"+id, vendorToken, map[string]string{"description": "Best deals"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	res.decode(&shop)
	assert.Equal(t, "Best deals", shop.Description)

	_, otherVendor := e.user("eve", models.RoleVendor)
	res = e.do(http.MethodPatch, "/api/shops/"+id, otherVendor, map[string]string{"description": "hijack"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	e.do(http.MethodPost, "/api/admin/shops/"+id+"/status", adminToken, map[string]string{"status": "suspended", "reason": "policy"})
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/shops/"+id, userToken, nil).Code)
}

func TestShopPage_CachedAndInvalidated(t *testing.T) {
	e := newTestEnv(t)
	_, vendorToken, shop := e.approvedShop("mona")
	path := "/api/shops/" + shop.ID.Hex() + "/page"

	var page models.ShopPage
	res := e.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	res.decode(&page)
	assert.Equal(t, shop.ID, page.Shop.ID)
	assert.Empty(t, page.Rolls)
	assert.NotNil(t, page.Offers)

	_, err := e.cache.Get(t.Context(), shopPageKey(shop.ID))
	require.NoError(t, err, "approved pages are cached")

	e.createRoll(vendorToken)
	_, err = e.cache.Get(t.Context(), shopPageKey(shop.ID))
	assert.Error(t, err, "new rolls invalidate the page")

	e.do(http.MethodGet, path, "", nil).decode(&page)
	assert.Len(t, page.Rolls, 1)
}

func TestReviews(t *testing.T) {
	e := newTestEnv(t)
	_, vendorToken, shop := e.approvedShop("rita")
	_, alice := e.user("alice", models.RoleUser)
	_, bob := e.user("bob", models.RoleUser)
	path := "/api/shops/" + shop.ID.Hex() + "/reviews"

	res := e.do(http.MethodPost, path, vendorToken, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusForbidden, res.Code)
	res = e.do(http.MethodPost, path, alice, map[string]any{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, path, alice, map[string]any{"rating": 5, "comment": "great"}).Code)
	require.Equal(t, http.StatusOK, e.do(http.MethodPost, path, bob, map[string]any{"rating": 4}).Code)
	// A second review from the same user replaces the first.
	require.Equal(t, http.StatusOK, e.do(http.MethodPost, path, alice, map[string]any{"rating": 3}).Code)

	var reviews []models.Review
	e.do(http.MethodGet, path, "", nil).decode(&reviews)
	assert.Len(t, reviews, 2)

	var got models.Shop
	e.do(http.MethodGet, "/api/shops/"+shop.ID.Hex(), "", nil).decode(&got)
	assert.Equal(t, 2, got.ReviewCount)
	assert.InDelta(t, 3.5, got.Rating, 0.001)
}

func TestPurchasePackage(t *testing.T) {
	e := newTestEnv(t)
	_, vendorToken, _ := e.approvedShop("pia")
	_, adminToken := e.user("boss", models.RoleAdmin)

	res := e.do(http.MethodPost, "/api/admin/packages", adminToken, map[string]any{"name": "Pro", "rollCount": 20, "price": 19.99})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var pkg models.RollPackage
	res.decode(&pkg)
	assert.Equal(t, "USD", pkg.Currency)

	var pkgs []models.RollPackage
	e.do(http.MethodGet, "/api/packages", "", nil).decode(&pkgs)
	require.Len(t, pkgs, 1)

	res = e.do(http.MethodPost, "/api/vendor/packages/"+pkg.ID.Hex()+"/purchase", vendorToken, map[string]string{"reference": "pay_123"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var vp models.VendorProfile
	res.decode(&vp)
	assert.Equal(t, 23, vp.AvailableRolls)
	assert.Equal(t, 20, vp.TotalPurchasedRolls)

	res = e.do(http.MethodPatch, "/api/admin/packages/"+pkg.ID.Hex(), adminToken, map[string]any{"active": false})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	res = e.do(http.MethodPost, "/api/vendor/packages/"+pkg.ID.Hex()+"/purchase", vendorToken, nil)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "PACKAGE_INACTIVE", res.errorCode())

	e.do(http.MethodGet, "/api/packages", "", nil).decode(&pkgs)
	assert.Empty(t, pkgs)
}

func TestShareAndLeaderboard(t *testing.T) {
	e := newTestEnv(t)
	_, _, first := e.approvedShop("first")
	_, _, second := e.approvedShop("second")
	_, viewerToken := e.user("viewer", models.RoleUser)

	for range 3 {
		res := e.do(http.MethodPost, "/api/shops/"+second.ID.Hex()+"/share", "", map[string]string{"country": "ae"})
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	}
	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/shops/"+first.ID.Hex()+"/share", viewerToken, nil).Code)

	var board models.Leaderboard
	res := e.do(http.MethodGet, "/api/leaderboard/weekly", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	res.decode(&board)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, second.ID, board.Entries[0].ShopID)
	assert.Equal(t, int64(3), board.Entries[0].Shares)
	assert.Equal(t, 1, board.Entries[0].Rank)

	e.do(http.MethodGet, "/api/leaderboard/weekly?country=AE&limit=5", "", nil).decode(&board)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, second.ID, board.Entries[0].ShopID)

	res = e.do(http.MethodGet, "/api/leaderboard/weekly?week=yesterday", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestShareHistory_OwnerOnly(t *testing.T) {
	e := newTestEnv(t)
	_, vendorToken, shop := e.approvedShop("hana")
	_, otherToken, _ := e.approvedShop("other")
	e.do(http.MethodPost, "/api/shops/"+shop.ID.Hex()+"/share", "", nil)

	var history []models.WeeklyTotal
	res := e.do(http.MethodGet, "/api/shops/"+shop.ID.Hex()+"/shares?weeks=4", vendorToken, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	res.decode(&history)
	require.Len(t, history, 4)
	assert.Equal(t, int64(1), history[3].Shares)

	res = e.do(http.MethodGet, "/api/shops/"+shop.ID.Hex()+"/shares", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
}
