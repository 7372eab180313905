// Package shops handles the shop lifecycle: vendors open a shop, admins
// approve, reject or suspend it.
package shops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/apperr"
	"bigbag/internal/credits"
	"bigbag/internal/models"
	"bigbag/internal/notify"
	"bigbag/internal/store"
)

type Store interface {
	store.ShopStore
	store.VendorStore
}

type Service struct {
	store        Store
	credits      *credits.Service
	notifier     *notify.Notifier
	welcomeRolls int
	now          func() time.Time
}

func NewService(st Store, cr *credits.Service, notifier *notify.Notifier, welcomeRolls int) *Service {
	return &Service{
		store:        st,
		credits:      cr,
		notifier:     notifier,
		welcomeRolls: welcomeRolls,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a pending shop for the vendor. A vendor owns at most one shop.
func (s *Service) Create(ctx context.Context, ownerID primitive.ObjectID, sh *models.Shop) error {
	sh.Name = strings.TrimSpace(sh.Name)
	if sh.Name == "" {
		return apperr.Invalid("name is required")
	}
	if len(sh.Name) > 100 {
		return apperr.Invalid("name must be at most 100 characters")
	}
	sh.ID = primitive.NilObjectID
	sh.OwnerID = ownerID
	sh.Status = models.ShopPending
	sh.StatusReason = ""
	sh.ApprovedAt = nil
	sh.Rating, sh.ReviewCount, sh.ShareCount = 0, 0, 0
	sh.Country = strings.ToUpper(strings.TrimSpace(sh.Country))

	if err := s.store.CreateShop(ctx, sh); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return apperr.Conflict("you already have a shop")
		}
		return err
	}
	if _, err := s.store.EnsureVendorProfile(ctx, ownerID, sh.ID); err != nil {
		return fmt.Errorf("link vendor profile: %w", err)
	}
	slog.Info("Shop created", "shop_id", sh.ID.Hex(), "owner_id", ownerID.Hex())
	return nil
}

func validStatus(status string) bool {
	switch status {
	case models.ShopApproved, models.ShopRejected, models.ShopSuspended:
		return true
	}
	return false
}

// SetStatus moves a shop to approved, rejected or suspended. The first
// approval grants the welcome roll credits.
func (s *Service) SetStatus(ctx context.Context, shopID primitive.ObjectID, status, reason string) (*models.Shop, error) {
	if !validStatus(status) {
		return nil, apperr.Invalid("status must be approved, rejected or suspended")
	}

	at := s.now()
	before, err := s.store.SetShopStatus(ctx, shopID, status, strings.TrimSpace(reason), at)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("shop")
	}
	if err != nil {
		return nil, err
	}
	slog.Info("Shop status changed",
		"shop_id", shopID.Hex(),
		"from", before.Status,
		"to", status,
		"reason", reason,
	)

	firstApproval := status == models.ShopApproved && before.ApprovedAt == nil
	if firstApproval && s.welcomeRolls > 0 {
		if _, err := s.credits.Grant(ctx, before.OwnerID, s.welcomeRolls, "welcome"); err != nil {
			slog.Error("Welcome credits not granted", "shop_id", shopID.Hex(), "error", err)
		}
	}

	if before.Status != status {
		body := fmt.Sprintf("Your shop %s is now %s", before.Name, status)
		if reason != "" {
			body += ": " + reason
		}
		s.notifier.NotifyUser(ctx, before.OwnerID, "Shop update", body,
			map[string]string{"type": "shop_status", "shopId": shopID.Hex(), "status": status})
	}

	after := *before
	after.Status = status
	after.StatusReason = strings.TrimSpace(reason)
	after.UpdatedAt = at
	if firstApproval {
		after.ApprovedAt = &at
	}
	return &after, nil
}
