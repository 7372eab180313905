package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/goleak"

	"bigbag/internal/cache"
	"bigbag/internal/models"
	"bigbag/internal/shares"
	"bigbag/internal/store/memory"
)

func newScheduler(t *testing.T) (*Scheduler, *memory.Store) {
	t.Helper()
	st := memory.New()
	s, err := New(st, shares.NewService(st, cache.NewMemory(), time.Minute), 26)
	require.NoError(t, err)
	return s, st
}

func TestStartStop_NoLeaks(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _ := newScheduler(t)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestExpireListings(t *testing.T) {
	s, st := newScheduler(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	shopID := primitive.NewObjectID()

	expired := &models.Offer{ShopID: shopID, Title: "old", DiscountPercent: 10,
		StartsAt: now.AddDate(0, 0, -10), EndsAt: now.Add(-time.Hour), Active: true}
	running := &models.Offer{ShopID: shopID, Title: "new", DiscountPercent: 10,
		StartsAt: now.AddDate(0, 0, -1), EndsAt: now.Add(time.Hour), Active: true}
	require.NoError(t, st.CreateOffer(ctx, expired))
	require.NoError(t, st.CreateOffer(ctx, running))

	past := now.Add(-time.Minute)
	coupon := &models.Coupon{ShopID: shopID, Code: "GONE", DiscountType: models.DiscountFixed,
		DiscountValue: 5, ExpiresAt: &past, Active: true}
	require.NoError(t, st.CreateCoupon(ctx, coupon))

	ad := &models.Ad{Title: "ad", Placement: models.PlacementHome,
		StartsAt: now.AddDate(0, 0, -2), EndsAt: now.AddDate(0, 0, -1), Active: true}
	require.NoError(t, st.CreateAd(ctx, ad))

	require.NoError(t, s.ExpireListings(ctx))

	got, err := st.GetOffer(ctx, expired.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	got, err = st.GetOffer(ctx, running.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)

	c, err := st.GetCouponByCode(ctx, "GONE")
	require.NoError(t, err)
	assert.False(t, c.Active)

	ads, err := st.ListLiveAds(ctx, models.PlacementHome, now.AddDate(0, 0, -1).Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, ads)
}

func TestPruneShares(t *testing.T) {
	s, st := newScheduler(t)
	ctx := context.Background()
	shopID := primitive.NewObjectID()

	old := shares.WeekStart(time.Now()).AddDate(0, 0, -7*30)
	recent := shares.WeekStart(time.Now())
	require.NoError(t, st.IncrementWeeklyShare(ctx, shopID, "AE", old, 3))
	require.NoError(t, st.IncrementWeeklyShare(ctx, shopID, "AE", recent, 1))

	require.NoError(t, s.PruneShares(ctx))

	rows, err := st.ShopWeeklyShares(ctx, shopID, old)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, recent, rows[0].WeekStart)
}
