// Package storetest holds the behaviour every store.Store implementation
// must share. Each backend runs it from its own tests.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/models"
	"bigbag/internal/store"
)

// Run executes the suite. open must return an empty store for each call.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	tests := map[string]func(*testing.T, store.Store){
		"Users":         testUsers,
		"ShopStatus":    testShopStatus,
		"VendorCredits": testVendorCredits,
		"RollLikes":     testRollLikes,
		"RollFilters":   testRollFilters,
		"Saved":         testSaved,
		"Coupons":       testCoupons,
		"WeeklyShares":  testWeeklyShares,
		"Expiry":        testExpiry,
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) { fn(t, open(t)) })
	}
}

func testUsers(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := &models.User{Name: "A", Email: "a@example.com", Role: models.RoleUser}
	require.NoError(t, st.CreateUser(ctx, u))
	require.False(t, u.ID.IsZero())

	err := st.CreateUser(ctx, &models.User{Name: "B", Email: "a@example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	phoneOnly := &models.User{Name: "P", Phone: "+971500000000", Role: models.RoleUser}
	require.NoError(t, st.CreateUser(ctx, phoneOnly))
	require.NoError(t, st.CreateUser(ctx, &models.User{Name: "Q", Phone: "+971500000001", Role: models.RoleUser}),
		"users without email must not collide")

	got, err := st.GetUserByPhone(ctx, "+971500000000")
	require.NoError(t, err)
	assert.Equal(t, phoneOnly.ID, got.ID)

	name := "A2"
	updated, err := st.UpdateUser(ctx, u.ID, models.UserUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "A2", updated.Name)
	assert.Equal(t, "a@example.com", updated.Email)

	require.NoError(t, st.SetUserRole(ctx, u.ID, models.RoleAdmin))
	got, err = st.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	_, err = st.GetUser(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testShopStatus(t *testing.T, st store.Store) {
	ctx := context.Background()
	owner := primitive.NewObjectID()
	sh := &models.Shop{OwnerID: owner, Name: "Souk", Status: models.ShopPending, Country: "AE"}
	require.NoError(t, st.CreateShop(ctx, sh))
	assert.ErrorIs(t, st.CreateShop(ctx, &models.Shop{OwnerID: owner, Name: "Two"}), store.ErrDuplicate)

	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	before, err := st.SetShopStatus(ctx, sh.ID, models.ShopApproved, "", at)
	require.NoError(t, err)
	assert.Equal(t, models.ShopPending, before.Status)
	assert.Nil(t, before.ApprovedAt)

	before, err = st.SetShopStatus(ctx, sh.ID, models.ShopSuspended, "spam", at.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.ShopApproved, before.Status)
	require.NotNil(t, before.ApprovedAt)

	got, err := st.GetShop(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ShopSuspended, got.Status)
	assert.Equal(t, "spam", got.StatusReason)
	require.NotNil(t, got.ApprovedAt, "approval time survives later changes")
	assert.True(t, at.Equal(*got.ApprovedAt))

	approved, err := st.ListShops(ctx, models.ShopFilter{Status: models.ShopApproved}, models.Page{})
	require.NoError(t, err)
	assert.Empty(t, approved)

	_, err = st.SetShopStatus(ctx, primitive.NewObjectID(), models.ShopApproved, "", at)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testVendorCredits(t *testing.T, st store.Store) {
	ctx := context.Background()
	vendor := primitive.NewObjectID()
	shopID := primitive.NewObjectID()

	_, err := st.ConsumeRoll(ctx, vendor)
	assert.ErrorIs(t, err, store.ErrConflict)

	vp, err := st.EnsureVendorProfile(ctx, vendor, shopID)
	require.NoError(t, err)
	assert.Equal(t, shopID, vp.ShopID)
	again, err := st.EnsureVendorProfile(ctx, vendor, primitive.NilObjectID)
	require.NoError(t, err)
	assert.Equal(t, vp.ID, again.ID)
	assert.Equal(t, shopID, again.ShopID)

	vp, err = st.CreditRolls(ctx, vendor, models.RollPurchase{Name: "Starter", Rolls: 4, PurchasedAt: time.Now().UTC()}, true)
	require.NoError(t, err)
	assert.Equal(t, 4, vp.AvailableRolls)
	assert.Equal(t, 4, vp.TotalPurchasedRolls)
	vp, err = st.CreditRolls(ctx, vendor, models.RollPurchase{Name: "welcome", Rolls: 1, PurchasedAt: time.Now().UTC()}, false)
	require.NoError(t, err)
	assert.Equal(t, 5, vp.AvailableRolls)
	assert.Equal(t, 4, vp.TotalPurchasedRolls)
	assert.Len(t, vp.Purchases, 2)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := st.ConsumeRoll(ctx, vendor); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, ok)

	vp, err = st.RefundRoll(ctx, vendor)
	require.NoError(t, err)
	assert.Equal(t, 1, vp.AvailableRolls)
	assert.Equal(t, 4, vp.UsedRolls)
}

func testRollLikes(t *testing.T, st store.Store) {
	ctx := context.Background()
	r := &models.Roll{ShopID: primitive.NewObjectID(), VendorID: primitive.NewObjectID(), VideoURL: "v.mp4"}
	require.NoError(t, st.CreateRoll(ctx, r))
	fan := primitive.NewObjectID()

	changed, err := st.LikeRoll(ctx, r.ID, fan)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = st.LikeRoll(ctx, r.ID, fan)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := st.GetRoll(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.LikeCount)
	assert.True(t, got.LikedByUser(fan))

	changed, err = st.UnlikeRoll(ctx, r.ID, fan)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = st.UnlikeRoll(ctx, r.ID, fan)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, st.IncrementRollCounter(ctx, r.ID, models.RollShares, 2))
	got, err = st.GetRoll(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.LikeCount)
	assert.Equal(t, int64(2), got.ShareCount)

	_, err = st.LikeRoll(ctx, primitive.NewObjectID(), fan)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testRollFilters(t *testing.T, st store.Store) {
	ctx := context.Background()
	shopA, shopB := primitive.NewObjectID(), primitive.NewObjectID()
	for _, shop := range []primitive.ObjectID{shopA, shopA, shopB} {
		require.NoError(t, st.CreateRoll(ctx, &models.Roll{ShopID: shop, VendorID: primitive.NewObjectID(), VideoURL: "v"}))
	}

	all, err := st.ListRolls(ctx, models.RollFilter{}, models.Page{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	onlyA, err := st.ListRolls(ctx, models.RollFilter{ShopIDs: []primitive.ObjectID{shopA}}, models.Page{})
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	none, err := st.ListRolls(ctx, models.RollFilter{ShopIDs: []primitive.ObjectID{}}, models.Page{})
	require.NoError(t, err)
	assert.Empty(t, none)

	negative, err := st.ListRolls(ctx, models.RollFilter{}, models.Page{Skip: -4})
	require.NoError(t, err)
	assert.Len(t, negative, 3, "a negative skip reads from the start")

	page, err := st.ListRolls(ctx, models.RollFilter{}, models.Page{Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)
}

func testSaved(t *testing.T, st store.Store) {
	ctx := context.Background()
	user, roll := primitive.NewObjectID(), primitive.NewObjectID()

	changed, err := st.SaveRoll(ctx, user, roll)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = st.SaveRoll(ctx, user, roll)
	require.NoError(t, err)
	assert.False(t, changed)

	saved, err := st.ListSaved(ctx, user, models.Page{})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	require.NoError(t, st.DeleteSavedForRoll(ctx, roll))
	changed, err = st.UnsaveRoll(ctx, user, roll)
	require.NoError(t, err)
	assert.False(t, changed)
}

func testCoupons(t *testing.T, st store.Store) {
	ctx := context.Background()
	now := time.Now().UTC()
	c := &models.Coupon{ShopID: primitive.NewObjectID(), Code: "TEN", DiscountType: models.DiscountFixed, DiscountValue: 10, MaxUses: 2, Active: true}
	require.NoError(t, st.CreateCoupon(ctx, c))
	assert.ErrorIs(t, st.CreateCoupon(ctx, &models.Coupon{Code: "TEN"}), store.ErrDuplicate)

	for i := range 2 {
		got, err := st.RedeemCoupon(ctx, "TEN", 50, now)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), got.UsedCount)
	}
	_, err := st.RedeemCoupon(ctx, "TEN", 50, now)
	assert.ErrorIs(t, err, store.ErrConflict)
	_, err = st.RedeemCoupon(ctx, "NONE", 50, now)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testWeeklyShares(t *testing.T, st store.Store) {
	ctx := context.Background()
	week := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	prev := week.AddDate(0, 0, -7)
	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	require.NoError(t, st.IncrementWeeklyShare(ctx, a, "AE", week, 2))
	require.NoError(t, st.IncrementWeeklyShare(ctx, a, "SA", week, 2))
	require.NoError(t, st.IncrementWeeklyShare(ctx, b, "AE", week, 3))
	require.NoError(t, st.IncrementWeeklyShare(ctx, b, "AE", prev, 9))

	top, err := st.TopShops(ctx, week, "", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, a, top[0].ShopID)
	assert.Equal(t, int64(4), top[0].Count)

	top, err = st.TopShops(ctx, week, "AE", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, b, top[0].ShopID)

	history, err := st.ShopWeeklyShares(ctx, b, prev)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].WeekStart.Equal(prev))

	n, err := st.PruneWeeklyShares(ctx, week)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testExpiry(t *testing.T, st store.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	shop := primitive.NewObjectID()

	expired := &models.Offer{ShopID: shop, Title: "old", DiscountPercent: 5, StartsAt: now.Add(-2 * time.Hour), EndsAt: now.Add(-time.Hour), Active: true}
	running := &models.Offer{ShopID: shop, Title: "new", DiscountPercent: 5, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour), Active: true}
	require.NoError(t, st.CreateOffer(ctx, expired))
	require.NoError(t, st.CreateOffer(ctx, running))

	live, err := st.ListOffers(ctx, models.OfferFilter{LiveAt: now}, models.Page{})
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, running.ID, live[0].ID)

	n, err := st.DeactivateExpiredOffers(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = st.DeactivateExpiredOffers(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}
