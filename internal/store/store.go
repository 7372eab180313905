// Package store defines the persistence contracts for BigBag documents.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrConflict means a guarded update matched no document.
	ErrConflict = errors.New("store: conditional update not applied")
)

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, upd models.UserUpdate) (*models.User, error)
	SetUserRole(ctx context.Context, id primitive.ObjectID, role string) error
}

type ShopStore interface {
	CreateShop(ctx context.Context, s *models.Shop) error
	GetShop(ctx context.Context, id primitive.ObjectID) (*models.Shop, error)
	GetShopByOwner(ctx context.Context, ownerID primitive.ObjectID) (*models.Shop, error)
	GetShops(ctx context.Context, ids []primitive.ObjectID) ([]models.Shop, error)
	ListShops(ctx context.Context, f models.ShopFilter, p models.Page) ([]models.Shop, error)
	UpdateShop(ctx context.Context, id primitive.ObjectID, upd models.ShopUpdate) (*models.Shop, error)
	// SetShopStatus returns the shop as it was before the change.
	SetShopStatus(ctx context.Context, id primitive.ObjectID, status, reason string, at time.Time) (*models.Shop, error)
	IncrementShopShares(ctx context.Context, id primitive.ObjectID, n int64) error
	SetShopRating(ctx context.Context, id primitive.ObjectID, rating float64, count int) error
}

type RollStore interface {
	CreateRoll(ctx context.Context, r *models.Roll) error
	GetRoll(ctx context.Context, id primitive.ObjectID) (*models.Roll, error)
	ListRolls(ctx context.Context, f models.RollFilter, p models.Page) ([]models.Roll, error)
	GetRolls(ctx context.Context, ids []primitive.ObjectID) ([]models.Roll, error)
	DeleteRoll(ctx context.Context, id primitive.ObjectID) error
	IncrementRollCounter(ctx context.Context, id primitive.ObjectID, field string, n int64) error
	// LikeRoll and UnlikeRoll report whether the like set changed.
	LikeRoll(ctx context.Context, id, userID primitive.ObjectID) (bool, error)
	UnlikeRoll(ctx context.Context, id, userID primitive.ObjectID) (bool, error)
}

type SavedStore interface {
	SaveRoll(ctx context.Context, userID, rollID primitive.ObjectID) (bool, error)
	UnsaveRoll(ctx context.Context, userID, rollID primitive.ObjectID) (bool, error)
	ListSaved(ctx context.Context, userID primitive.ObjectID, p models.Page) ([]models.Saved, error)
	DeleteSavedForRoll(ctx context.Context, rollID primitive.ObjectID) error
}

type CommentStore interface {
	CreateComment(ctx context.Context, c *models.Comment) error
	GetComment(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	ListComments(ctx context.Context, rollID primitive.ObjectID, p models.Page) ([]models.Comment, error)
	DeleteComment(ctx context.Context, id primitive.ObjectID) error
	DeleteCommentsForRoll(ctx context.Context, rollID primitive.ObjectID) error
}

type OfferStore interface {
	CreateOffer(ctx context.Context, o *models.Offer) error
	GetOffer(ctx context.Context, id primitive.ObjectID) (*models.Offer, error)
	ListOffers(ctx context.Context, f models.OfferFilter, p models.Page) ([]models.Offer, error)
	DeleteOffer(ctx context.Context, id primitive.ObjectID) error
	DeactivateExpiredOffers(ctx context.Context, now time.Time) (int64, error)
}

type CouponStore interface {
	CreateCoupon(ctx context.Context, c *models.Coupon) error
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	ListCoupons(ctx context.Context, shopID primitive.ObjectID) ([]models.Coupon, error)
	// RedeemCoupon increments usedCount only while the coupon is usable for amount.
	RedeemCoupon(ctx context.Context, code string, amount float64, now time.Time) (*models.Coupon, error)
	DeactivateExpiredCoupons(ctx context.Context, now time.Time) (int64, error)
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id primitive.ObjectID) error
	ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error)
	UpsertCategoryBySlug(ctx context.Context, c *models.Category) error
}

type AdStore interface {
	CreateAd(ctx context.Context, a *models.Ad) error
	DeleteAd(ctx context.Context, id primitive.ObjectID) error
	ListLiveAds(ctx context.Context, placement string, now time.Time) ([]models.Ad, error)
	DeactivateExpiredAds(ctx context.Context, now time.Time) (int64, error)
}

type ReviewStore interface {
	UpsertReview(ctx context.Context, r *models.Review) error
	ListReviews(ctx context.Context, shopID primitive.ObjectID, p models.Page) ([]models.Review, error)
	ReviewSummary(ctx context.Context, shopID primitive.ObjectID) (avg float64, count int, err error)
}

type PackageStore interface {
	CreatePackage(ctx context.Context, p *models.RollPackage) error
	UpdatePackage(ctx context.Context, p *models.RollPackage) error
	GetPackage(ctx context.Context, id primitive.ObjectID) (*models.RollPackage, error)
	ListPackages(ctx context.Context, activeOnly bool) ([]models.RollPackage, error)
	UpsertPackageByName(ctx context.Context, p *models.RollPackage) error
}

type VendorStore interface {
	// EnsureVendorProfile returns the user's profile, creating an empty one
	// and linking shopID when it is non-zero.
	EnsureVendorProfile(ctx context.Context, userID, shopID primitive.ObjectID) (*models.VendorProfile, error)
	GetVendorProfile(ctx context.Context, userID primitive.ObjectID) (*models.VendorProfile, error)
	// ConsumeRoll moves one credit from available to used. It returns
	// ErrConflict when no credit is available.
	ConsumeRoll(ctx context.Context, userID primitive.ObjectID) (*models.VendorProfile, error)
	// RefundRoll reverses one ConsumeRoll.
	RefundRoll(ctx context.Context, userID primitive.ObjectID) (*models.VendorProfile, error)
	// CreditRolls adds rolls to the balance and appends p to the purchase log.
	CreditRolls(ctx context.Context, userID primitive.ObjectID, p models.RollPurchase, countsAsPurchase bool) (*models.VendorProfile, error)
}

type ShareStore interface {
	IncrementWeeklyShare(ctx context.Context, shopID primitive.ObjectID, country string, weekStart time.Time, n int64) error
	// TopShops sums the week's counters per shop, optionally for one country,
	// ordered by count desc then shop id asc.
	TopShops(ctx context.Context, weekStart time.Time, country string, limit int) ([]models.ShareTally, error)
	ShopWeeklyShares(ctx context.Context, shopID primitive.ObjectID, since time.Time) ([]models.WeeklyShopShare, error)
	PruneWeeklyShares(ctx context.Context, before time.Time) (int64, error)
}

// Store bundles every aggregate store behind one handle.
type Store interface {
	UserStore
	ShopStore
	RollStore
	SavedStore
	CommentStore
	OfferStore
	CouponStore
	CategoryStore
	AdStore
	ReviewStore
	PackageStore
	VendorStore
	ShareStore

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
