package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/apperr"
	"bigbag/internal/httputil"
	"bigbag/internal/models"
)

const (
	shopPageRolls   = 12
	shopPageOffers  = 10
	shopPageReviews = 5
	maxReviewLen    = 1000
)

// visibleShop loads a shop that is approved, or any shop for its owner and
// admins.
func (h *Handler) visibleShop(ctx context.Context, r *http.Request) (*models.Shop, error) {
	id, err := pathID(r, "shop")
	if err != nil {
		return nil, err
	}
	shop, err := h.store.GetShop(ctx, id)
	if err != nil {
		return nil, notFound(err, "shop")
	}
	p, ok := caller(r)
	if !shop.Approved() && !canManage(p, ok, shop.OwnerID) {
		return nil, apperr.NotFound("shop")
	}
	return shop, nil
}

// managedShop loads the shop at the path id and checks the caller owns it.
func (h *Handler) managedShop(ctx context.Context, r *http.Request) (*models.Shop, error) {
	id, err := pathID(r, "shop")
	if err != nil {
		return nil, err
	}
	shop, err := h.store.GetShop(ctx, id)
	if err != nil {
		return nil, notFound(err, "shop")
	}
	p, ok := caller(r)
	if !canManage(p, ok, shop.OwnerID) {
		return nil, apperr.Forbidden("you do not manage this shop")
	}
	return shop, nil
}

func (h *Handler) listShops(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	categoryID, err := optionalID(r, "category")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	q := r.URL.Query()
	f := models.ShopFilter{
		Status:     models.ShopApproved,
		CategoryID: categoryID,
		Country:    strings.ToUpper(strings.TrimSpace(q.Get("country"))),
		Search:     strings.TrimSpace(q.Get("q")),
	}

	shops, err := h.store.ListShops(r.Context(), f, page)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, shops)
}

type shopRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CategoryID  string `json:"categoryId"`
	Logo        string `json:"logo"`
	Cover       string `json:"cover"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Phone       string `json:"phone"`
}

func (h *Handler) createShop(w http.ResponseWriter, r *http.Request) {
	p, _ := caller(r)
	var req shopRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var categoryID primitive.ObjectID
	if req.CategoryID != "" {
		id, err := parseID(req.CategoryID, "category")
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		categoryID = id
	}

	shop := &models.Shop{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		CategoryID:  categoryID,
		Logo:        req.Logo,
		Cover:       req.Cover,
		Address:     strings.TrimSpace(req.Address),
		City:        strings.TrimSpace(req.City),
		Country:     req.Country,
		Phone:       strings.TrimSpace(req.Phone),
	}
	if err := h.shops.Create(r.Context(), p.UserID, shop); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, shop)
}

func (h *Handler) myShop(w http.ResponseWriter, r *http.Request) {
	p, _ := caller(r)
	shop, err := h.store.GetShopByOwner(r.Context(), p.UserID)
	if err != nil {
		httputil.WriteError(w, r, notFound(err, "shop"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, shop)
}

func (h *Handler) getShop(w http.ResponseWriter, r *http.Request) {
	shop, err := h.visibleShop(r.Context(), r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, shop)
}

func (h *Handler) updateShop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shop, err := h.managedShop(ctx, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	var upd models.ShopUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" || len(name) > 100 {
			httputil.WriteError(w, r, apperr.Invalid("name must be 1 to 100 characters"))
			return
		}
		upd.Name = &name
	}
	if upd.Country != nil {
		c := strings.ToUpper(strings.TrimSpace(*upd.Country))
		upd.Country = &c
	}

	updated, err := h.store.UpdateShop(ctx, shop.ID, upd)
	if err != nil {
		httputil.WriteError(w, r, notFound(err, "shop"))
		return
	}
	h.invalidate(ctx, shopPageKey(shop.ID))
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// shopPage gathers a shop with its latest rolls, running offers and recent
// reviews. Approved pages are cached briefly.
func (h *Handler) shopPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	id, err := pathID(r, "shop")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	cacheKey := shopPageKey(id)

	cachedData, err := h.cache.Get(ctx, cacheKey)
	if err == nil {
		slog.Debug("Cache HIT", "shop_id", id.Hex(), "duration", time.Since(start))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(cachedData)
		return
	}

	shop, err := h.visibleShop(ctx, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	var (
		wg      sync.WaitGroup
		rolls   []models.Roll
		offers  []models.Offer
		reviews []models.Review
	)

	wg.Add(3)

	go func() {
		defer wg.Done()
		res, err := h.store.ListRolls(ctx, models.RollFilter{ShopID: shop.ID}, models.Page{Limit: shopPageRolls})
		if err != nil {
			slog.Error("Rolls fetch error", "shop_id", shop.ID.Hex(), "error", err)
			rolls = []models.Roll{}
		} else {
			rolls = res
		}
	}()

	go func() {
		defer wg.Done()
		res, err := h.store.ListOffers(ctx, models.OfferFilter{ShopID: shop.ID, LiveAt: h.now()}, models.Page{Limit: shopPageOffers})
		if err != nil {
			slog.Error("Offers fetch error", "shop_id", shop.ID.Hex(), "error", err)
			offers = []models.Offer{}
		} else {
			offers = res
		}
	}()

	go func() {
		defer wg.Done()
		res, err := h.store.ListReviews(ctx, shop.ID, models.Page{Limit: shopPageReviews})
		if err != nil {
			slog.Warn("Reviews fallback", "shop_id", shop.ID.Hex(), "error", err)
			reviews = []models.Review{}
		} else {
			reviews = res
		}
	}()

	wg.Wait()

	response := models.ShopPage{
		Shop:    shop,
		Rolls:   rolls,
		Offers:  offers,
		Reviews: reviews,
	}

	responseBytes, err := json.Marshal(response)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if shop.Approved() {
		if err := h.cache.Set(ctx, cacheKey, responseBytes, shopPageTTL); err != nil {
			slog.Warn("Shop page not cached", "shop_id", shop.ID.Hex(), "error", err)
		}
	}

	slog.Debug("Shop page built", "shop_id", shop.ID.Hex(), "duration", time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(responseBytes)
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) setShopStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "shop")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	shop, err := h.shops.SetStatus(r.Context(), id, req.Status, req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	h.invalidate(r.Context(), shopPageKey(id))
	httputil.WriteJSON(w, http.StatusOK, shop)
}

func (h *Handler) shareShop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shop, err := h.visibleShop(ctx, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	country, err := h.shareCountry(w, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.shares.Record(ctx, shop.ID, country); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"shareCount": shop.ShareCount + 1})
}

func (h *Handler) shopShareHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shop, err := h.managedShop(ctx, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	weeks, err := queryInt(r, "weeks", 0)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	history, err := h.shares.History(ctx, shop.ID, weeks)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, history)
}

func (h *Handler) weeklyLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var week time.Time
	if v := q.Get("week"); v != "" {
		week, err = time.Parse(time.DateOnly, v)
		if err != nil {
			httputil.WriteError(w, r, apperr.Invalid("week must be a date formatted YYYY-MM-DD"))
			return
		}
	}

	board, err := h.shares.Leaderboard(r.Context(), q.Get("country"), week, limit)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, board)
}

func (h *Handler) vendorProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := caller(r)
	vp, err := h.credits.Profile(r.Context(), p.UserID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, vp)
}

type purchaseRequest struct {
	Reference string `json:"reference"`
}

func (h *Handler) purchasePackage(w http.ResponseWriter, r *http.Request) {
	p, _ := caller(r)
	id, err := pathID(r, "package")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var req purchaseRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			httputil.WriteError(w, r, err)
			return
		}
	}

	vp, err := h.credits.Purchase(r.Context(), p.UserID, id, strings.TrimSpace(req.Reference))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, vp)
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "shop")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	page, err := pageParams(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	reviews, err := h.store.ListReviews(r.Context(), id, page)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reviews)
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) reviewShop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := caller(r)
	shop, err := h.visibleShop(ctx, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if shop.OwnerID == p.UserID {
		httputil.WriteError(w, r, apperr.Forbidden("you cannot review your own shop"))
		return
	}

	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if req.Rating < 1 || req.Rating > 5 {
		httputil.WriteError(w, r, apperr.Invalid("rating must be between 1 and 5"))
		return
	}
	if utf8.RuneCountInString(req.Comment) > maxReviewLen {
		httputil.WriteError(w, r, apperr.Invalid("comment must be at most 1000 characters"))
		return
	}

	var userName string
	if u, err := h.store.GetUser(ctx, p.UserID); err == nil {
		userName = u.Name
	}
	review := &models.Review{
		ShopID:   shop.ID,
		UserID:   p.UserID,
		UserName: userName,
		Rating:   req.Rating,
		Comment:  req.Comment,
	}
	if err := h.store.UpsertReview(ctx, review); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	avg, count, err := h.store.ReviewSummary(ctx, shop.ID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.store.SetShopRating(ctx, shop.ID, math.Round(avg*10)/10, count); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	h.invalidate(ctx, shopPageKey(shop.ID))
	httputil.WriteJSON(w, http.StatusOK, review)
}
