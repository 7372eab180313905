package api

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"bigbag/internal/apperr"
	"bigbag/internal/httputil"
	"bigbag/internal/models"
	"bigbag/internal/store"
)

var couponCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

// Offers ---------------------------------------------------------------------

func (h *Handler) listLiveOffers(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	offers, err := h.store.ListOffers(r.Context(), models.OfferFilter{LiveAt: h.now()}, page)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, offers)
}

// listShopOffers shows running offers to everyone and every offer to the
// shop's owner.
func (h *Handler) listShopOffers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shop, err := h.visibleShop(ctx, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	page, err := pageParams(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	f := models.OfferFilter{ShopID: shop.ID}
	if p, ok := caller(r); !canManage(p, ok, shop.OwnerID) {
		f.LiveAt = h.now()
	}
	offers, err := h.store.ListOffers(ctx, f, page)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, offers)
}

type offerRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Image           string    `json:"image"`
	DiscountPercent int       `json:"discountPercent"`
	StartsAt        time.Time `json:"startsAt"`
	EndsAt          time.Time `json:"endsAt"`
}

func (h *Handler) createOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := caller(r)
	shop, err := h.store.GetShopByOwner(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = apperr.New(apperr.CodeNoShop, "create a shop first")
		}
		httputil.WriteError(w, r, err)
		return
	}
	if !shop.Approved() {
		httputil.WriteError(w, r, apperr.Newf(apperr.CodeShopNotApproved, "shop is %s", shop.Status))
		return
	}

	var req offerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.StartsAt.IsZero() {
		req.StartsAt = h.now()
	}
	switch {
	case req.Title == "":
		httputil.WriteError(w, r, apperr.Invalid("title is required"))
		return
	case req.DiscountPercent < 1 || req.DiscountPercent > 100:
		httputil.WriteError(w, r, apperr.Invalid("discountPercent must be between 1 and 100"))
		return
	case !req.EndsAt.After(req.StartsAt):
		httputil.WriteError(w, r, apperr.Invalid("endsAt must be after startsAt"))
		return
	}

	o := &models.Offer{
		ShopID:          shop.ID,
		Title:           req.Title,
		Description:     strings.TrimSpace(req.Description),
		Image:           req.Image,
		DiscountPercent: req.DiscountPercent,
		StartsAt:        req.StartsAt.UTC(),
		EndsAt:          req.EndsAt.UTC(),
		Active:          true,
	}
	if err := h.store.CreateOffer(ctx, o); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	h.invalidate(ctx, shopPageKey(shop.ID))
	httputil.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) deleteOffer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "offer")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	o, err := h.store.GetOffer(ctx, id)
	if err != nil {
		httputil.WriteError(w, r, notFound(err, "offer"))
		return
	}
	shop, err := h.store.GetShop(ctx, o.ShopID)
	if err != nil {
		httputil.WriteError(w, r, notFound(err, "shop"))
		return
	}
	p, ok := caller(r)
	if !canManage(p, ok, shop.OwnerID) {
		httputil.WriteError(w, r, apperr.Forbidden("you do not manage this offer"))
		return
	}
	if err := h.store.DeleteOffer(ctx, id); err != nil {
		httputil.WriteError(w, r, notFound(err, "offer"))
		return
	}
	h.invalidate(ctx, shopPageKey(shop.ID))
	w.WriteHeader(http.StatusNoContent)
}

// Coupons --------------------------------------------------------------------

func normalizeCode(c string) string { return strings.ToUpper(strings.TrimSpace(c)) }

type couponRequest struct {
	Code          string     `json:"code"`
	Description   string     `json:"description"`
	DiscountType  string     `json:"discountType"`
	DiscountValue float64    `json:"discountValue"`
	MinOrder      float64    `json:"minOrder"`
	MaxUses       int64      `json:"maxUses"`
	ExpiresAt     *time.Time `json:"expiresAt"`
}

func (req *couponRequest) validate(now time.Time) error {
	req.Code = normalizeCode(req.Code)
	if !couponCodePattern.MatchString(req.Code) {
		return apperr.Invalid("code must be 3 to 32 letters, digits, dashes or underscores")
	}
	switch req.DiscountType {
	case models.DiscountPercent:
		if req.DiscountValue <= 0 || req.DiscountValue > 100 {
			return apperr.Invalid("percent discount must be between 0 and 100")
		}
	case models.DiscountFixed:
		if req.DiscountValue <= 0 {
			return apperr.Invalid("fixed discount must be positive")
		}
	default:
		return apperr.Invalid("discountType must be percent or fixed")
	}
	if req.MinOrder < 0 || req.MaxUses < 0 {
		return apperr.Invalid("minOrder and maxUses cannot be negative")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return apperr.Invalid("expiresAt must be in the future")
	}
	return nil
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := caller(r)
	shop, err := h.store.GetShopByOwner(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = apperr.New(apperr.CodeNoShop, "create a shop first")
		}
		httputil.WriteError(w, r, err)
		return
	}

	var req couponRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := req.validate(h.now()); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	c := &models.Coupon{
		ShopID:        shop.ID,
		Code:          req.Code,
		Description:   strings.TrimSpace(req.Description),
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MinOrder:      req.MinOrder,
		MaxUses:       req.MaxUses,
		Active:        true,
	}
	if req.ExpiresAt != nil {
		exp := req.ExpiresAt.UTC()
		c.ExpiresAt = &exp
	}
	if err := h.store.CreateCoupon(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			err = apperr.Conflict("coupon code already exists")
		}
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) listShopCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shop, err := h.managedShop(ctx, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	coupons, err := h.store.ListCoupons(ctx, shop.ID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if coupons == nil {
		coupons = []models.Coupon{}
	}
	httputil.WriteJSON(w, http.StatusOK, coupons)
}

type couponCheckRequest struct {
	Code   string  `json:"code"`
	Amount float64 `json:"amount"`
}

type couponQuote struct {
	Code        string  `json:"code"`
	ShopID      string  `json:"shopId"`
	Amount      float64 `json:"amount"`
	Discount    float64 `json:"discount"`
	FinalAmount float64 `json:"finalAmount"`
	UsedCount   int64   `json:"usedCount,omitempty"`
}

func quote(c *models.Coupon, amount float64) couponQuote {
	d := c.Discount(amount)
	return couponQuote{
		Code:        c.Code,
		ShopID:      c.ShopID.Hex(),
		Amount:      amount,
		Discount:    d,
		FinalAmount: amount - d,
	}
}

func decodeCouponCheck(w http.ResponseWriter, r *http.Request) (couponCheckRequest, error) {
	var req couponCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	req.Code = normalizeCode(req.Code)
	if req.Code == "" {
		return req, apperr.Invalid("code is required")
	}
	if req.Amount <= 0 {
		return req, apperr.Invalid("amount must be positive")
	}
	return req, nil
}

// validateCoupon quotes the discount without using the coupon.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCouponCheck(w, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	c, err := h.store.GetCouponByCode(r.Context(), req.Code)
	if err != nil {
		httputil.WriteError(w, r, notFound(err, "coupon"))
		return
	}
	if !c.UsableAt(h.now(), req.Amount) {
		httputil.WriteError(w, r, apperr.New(apperr.CodeCouponUnavailable, "coupon cannot be used for this order"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quote(c, req.Amount))
}

func (h *Handler) redeemCoupon(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCouponCheck(w, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	c, err := h.store.RedeemCoupon(r.Context(), req.Code, req.Amount, h.now())
	switch {
	case errors.Is(err, store.ErrConflict):
		httputil.WriteError(w, r, apperr.New(apperr.CodeCouponUnavailable, "coupon cannot be used for this order"))
		return
	case err != nil:
		httputil.WriteError(w, r, notFound(err, "coupon"))
		return
	}

	p, _ := caller(r)
	slog.Info("Coupon redeemed", "code", c.Code, "user_id", p.UserID.Hex(), "used", c.UsedCount)
	q := quote(c, req.Amount)
	q.UsedCount = c.UsedCount
	httputil.WriteJSON(w, http.StatusOK, q)
}
