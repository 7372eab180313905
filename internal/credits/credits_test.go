package credits

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/apperr"
	"bigbag/internal/models"
	"bigbag/internal/store/memory"
)

type fixture struct {
	svc    *Service
	store  *memory.Store
	vendor *models.User
}

func newFixture(t *testing.T, shopStatus string) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	vendor := &models.User{Name: "Vendor", Email: "v@example.com", Role: models.RoleVendor}
	require.NoError(t, st.CreateUser(ctx, vendor))
	if shopStatus != "" {
		shop := &models.Shop{OwnerID: vendor.ID, Name: "Bazaar", Status: models.ShopPending}
		require.NoError(t, st.CreateShop(ctx, shop))
		if shopStatus != models.ShopPending {
			_, err := st.SetShopStatus(ctx, shop.ID, shopStatus, "", time.Now().UTC())
			require.NoError(t, err)
		}
	}
	return &fixture{svc: NewService(st, nil), store: st, vendor: vendor}
}

func (f *fixture) pkg(t *testing.T, rolls int, active bool) *models.RollPackage {
	t.Helper()
	p := &models.RollPackage{Name: "Starter", RollCount: rolls, Price: 9.99, Currency: "USD", Active: active}
	require.NoError(t, f.store.CreatePackage(context.Background(), p))
	return p
}

func TestProfile_CreatesLinkedProfile(t *testing.T) {
	f := newFixture(t, models.ShopApproved)
	ctx := context.Background()

	vp, err := f.svc.Profile(ctx, f.vendor.ID)
	require.NoError(t, err)
	assert.Zero(t, vp.AvailableRolls)
	assert.False(t, vp.ShopID.IsZero())

	again, err := f.svc.Profile(ctx, f.vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, vp.ID, again.ID)
}

func TestConsumeForUpload_RequiresApprovedShop(t *testing.T) {
	ctx := context.Background()

	noShop := newFixture(t, "")
	_, err := noShop.svc.ConsumeForUpload(ctx, noShop.vendor.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNoShop))

	for _, status := range []string{models.ShopPending, models.ShopRejected, models.ShopSuspended} {
		f := newFixture(t, status)
		_, err := f.svc.ConsumeForUpload(ctx, f.vendor.ID)
		assert.True(t, apperr.Is(err, apperr.CodeShopNotApproved), status)
	}
}

func TestConsumeForUpload_SpendsUntilEmpty(t *testing.T) {
	f := newFixture(t, models.ShopApproved)
	ctx := context.Background()

	_, err := f.svc.Grant(ctx, f.vendor.ID, 2, "welcome")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		shop, err := f.svc.ConsumeForUpload(ctx, f.vendor.ID)
		require.NoError(t, err)
		assert.Equal(t, "Bazaar", shop.Name)
	}
	_, err = f.svc.ConsumeForUpload(ctx, f.vendor.ID)
	require.True(t, apperr.Is(err, apperr.CodeNoRollCredits))
	assert.Equal(t, 402, apperr.From(err).Status())

	vp, err := f.svc.Profile(ctx, f.vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, vp.AvailableRolls)
	assert.Equal(t, 2, vp.UsedRolls)
}

func TestConsumeForUpload_ConcurrentNeverOverspends(t *testing.T) {
	f := newFixture(t, models.ShopApproved)
	ctx := context.Background()
	_, err := f.svc.Grant(ctx, f.vendor.ID, 5, "test")
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.ConsumeForUpload(ctx, f.vendor.ID); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	vp, err := f.svc.Profile(ctx, f.vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, vp.AvailableRolls)
	assert.Equal(t, 5, vp.UsedRolls)
}

func TestRefund_RestoresCredit(t *testing.T) {
	f := newFixture(t, models.ShopApproved)
	ctx := context.Background()
	_, err := f.svc.Grant(ctx, f.vendor.ID, 1, "test")
	require.NoError(t, err)

	_, err = f.svc.ConsumeForUpload(ctx, f.vendor.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Refund(ctx, f.vendor.ID))

	vp, err := f.svc.Profile(ctx, f.vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, vp.AvailableRolls)
	assert.Equal(t, 0, vp.UsedRolls)
}

func TestPurchase(t *testing.T) {
	f := newFixture(t, models.ShopApproved)
	ctx := context.Background()
	p := f.pkg(t, 10, true)

	vp, err := f.svc.Purchase(ctx, f.vendor.ID, p.ID, "order-1")
	require.NoError(t, err)
	assert.Equal(t, 10, vp.AvailableRolls)
	assert.Equal(t, 10, vp.TotalPurchasedRolls)
	require.Len(t, vp.Purchases, 1)
	assert.Equal(t, "order-1", vp.Purchases[0].Reference)
	assert.Equal(t, p.ID, vp.Purchases[0].PackageID)
}

func TestPurchase_Rejections(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, models.ShopApproved)
	inactive := f.pkg(t, 10, false)
	_, err := f.svc.Purchase(ctx, f.vendor.ID, inactive.ID, "")
	assert.True(t, apperr.Is(err, apperr.CodePackageInactive))

	_, err = f.svc.Purchase(ctx, f.vendor.ID, primitive.NewObjectID(), "")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	pending := newFixture(t, models.ShopPending)
	p := pending.pkg(t, 10, true)
	_, err = pending.svc.Purchase(ctx, pending.vendor.ID, p.ID, "")
	assert.True(t, apperr.Is(err, apperr.CodeShopNotApproved))
}

func TestGrant(t *testing.T) {
	f := newFixture(t, models.ShopPending)
	ctx := context.Background()

	_, err := f.svc.Grant(ctx, f.vendor.ID, 0, "nothing")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = f.svc.Grant(ctx, primitive.NewObjectID(), 3, "ghost")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	vp, err := f.svc.Grant(ctx, f.vendor.ID, 3, "")
	require.NoError(t, err)
	assert.Equal(t, 3, vp.AvailableRolls)
	assert.Equal(t, 0, vp.TotalPurchasedRolls)
	assert.Equal(t, "grant", vp.Purchases[0].Name)
}
