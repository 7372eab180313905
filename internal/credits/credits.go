// Package credits keeps the vendor roll-credit balance: one credit is spent
// per roll upload, and credits come from package purchases and grants.
package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/apperr"
	"bigbag/internal/models"
	"bigbag/internal/notify"
	"bigbag/internal/store"
	"bigbag/internal/telemetry"
)

// Store is the persistence the credit ledger needs.
type Store interface {
	store.UserStore
	store.ShopStore
	store.PackageStore
	store.VendorStore
}

type Service struct {
	store    Store
	notifier *notify.Notifier
	now      func() time.Time
}

func NewService(st Store, notifier *notify.Notifier) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ownedShop returns the vendor's shop or nil when they have none yet.
func (s *Service) ownedShop(ctx context.Context, vendorID primitive.ObjectID) (*models.Shop, error) {
	shop, err := s.store.GetShopByOwner(ctx, vendorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return shop, err
}

func (s *Service) approvedShop(ctx context.Context, vendorID primitive.ObjectID) (*models.Shop, error) {
	shop, err := s.ownedShop(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return nil, apperr.New(apperr.CodeNoShop, "create a shop first")
	}
	if !shop.Approved() {
		return nil, apperr.Newf(apperr.CodeShopNotApproved, "shop is %s", shop.Status)
	}
	return shop, nil
}

// Profile returns the vendor's credit profile, creating an empty one linked
// to their shop when missing.
func (s *Service) Profile(ctx context.Context, vendorID primitive.ObjectID) (*models.VendorProfile, error) {
	vp, err := s.store.GetVendorProfile(ctx, vendorID)
	if err == nil {
		return vp, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var shopID primitive.ObjectID
	shop, err := s.ownedShop(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if shop != nil {
		shopID = shop.ID
	}
	return s.store.EnsureVendorProfile(ctx, vendorID, shopID)
}

// ConsumeForUpload spends one credit for a roll upload and returns the shop
// the roll belongs to.
func (s *Service) ConsumeForUpload(ctx context.Context, vendorID primitive.ObjectID) (*models.Shop, error) {
	shop, err := s.approvedShop(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.EnsureVendorProfile(ctx, vendorID, shop.ID); err != nil {
		return nil, err
	}

	vp, err := s.store.ConsumeRoll(ctx, vendorID)
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.New(apperr.CodeNoRollCredits, "no roll credits left, purchase a package to upload more")
	}
	if err != nil {
		return nil, err
	}
	slog.Debug("Roll credit consumed", "vendor_id", vendorID.Hex(), "available", vp.AvailableRolls)
	return shop, nil
}

// Refund returns a credit taken by ConsumeForUpload whose roll was never stored.
func (s *Service) Refund(ctx context.Context, vendorID primitive.ObjectID) error {
	if _, err := s.store.RefundRoll(ctx, vendorID); err != nil {
		slog.Error("Roll credit refund failed", "vendor_id", vendorID.Hex(), "error", err)
		return err
	}
	slog.Info("Roll credit refunded", "vendor_id", vendorID.Hex())
	return nil
}

// Purchase credits the rolls of an active package to the vendor.
func (s *Service) Purchase(ctx context.Context, vendorID, packageID primitive.ObjectID, reference string) (*models.VendorProfile, error) {
	pkg, err := s.store.GetPackage(ctx, packageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("package")
	}
	if err != nil {
		return nil, err
	}
	if !pkg.Active {
		return nil, apperr.New(apperr.CodePackageInactive, "package is no longer offered")
	}

	shop, err := s.approvedShop(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.EnsureVendorProfile(ctx, vendorID, shop.ID); err != nil {
		return nil, err
	}

	vp, err := s.store.CreditRolls(ctx, vendorID, models.RollPurchase{
		PackageID:   pkg.ID,
		Name:        pkg.Name,
		Rolls:       pkg.RollCount,
		Price:       pkg.Price,
		Currency:    pkg.Currency,
		Reference:   reference,
		PurchasedAt: s.now(),
	}, true)
	if err != nil {
		return nil, err
	}

	telemetry.PackagePurchased(pkg.Name)
	slog.Info("Roll package purchased",
		"vendor_id", vendorID.Hex(),
		"package", pkg.Name,
		"rolls", pkg.RollCount,
		"available", vp.AvailableRolls,
	)
	s.notifier.NotifyUser(ctx, vendorID, "Rolls added",
		fmt.Sprintf("%d rolls from %s are ready to use", pkg.RollCount, pkg.Name),
		map[string]string{"type": "credits"})
	return vp, nil
}

// Grant credits rolls without a package, for welcome credits and manual top-ups.
func (s *Service) Grant(ctx context.Context, vendorID primitive.ObjectID, rolls int, reason string) (*models.VendorProfile, error) {
	if rolls <= 0 {
		return nil, apperr.Invalid("rolls must be positive")
	}
	if _, err := s.store.GetUser(ctx, vendorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, err
	}

	var shopID primitive.ObjectID
	shop, err := s.ownedShop(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if shop != nil {
		shopID = shop.ID
	}
	if _, err := s.store.EnsureVendorProfile(ctx, vendorID, shopID); err != nil {
		return nil, err
	}

	if reason == "" {
		reason = "grant"
	}
	vp, err := s.store.CreditRolls(ctx, vendorID, models.RollPurchase{
		Name:        reason,
		Rolls:       rolls,
		PurchasedAt: s.now(),
	}, false)
	if err != nil {
		return nil, err
	}
	slog.Info("Roll credits granted", "vendor_id", vendorID.Hex(), "rolls", rolls, "reason", reason)
	return vp, nil
}
