package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"bigbag/internal/apperr"
	"bigbag/internal/cache"
	"bigbag/internal/httputil"
	"bigbag/internal/models"
	"bigbag/internal/store"
)

// Categories -----------------------------------------------------------------

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var cats []models.Category
	if err := cache.GetJSON(ctx, h.cache, categoriesKey, &cats); err == nil {
		httputil.WriteJSON(w, http.StatusOK, cats)
		return
	}

	cats, err := h.store.ListCategories(ctx, true)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	_ = cache.SetJSON(ctx, h.cache, categoriesKey, cats, categoriesTTL)
	httputil.WriteJSON(w, http.StatusOK, cats)
}

type categoryRequest struct {
	Name      *string `json:"name"`
	Slug      *string `json:"slug"`
	Icon      *string `json:"icon"`
	SortOrder *int    `json:"sortOrder"`
	Active    *bool   `json:"active"`
}

func (req categoryRequest) apply(c *models.Category) error {
	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil {
		c.Slug = strings.ToLower(strings.TrimSpace(*req.Slug))
	}
	if req.Icon != nil {
		c.Icon = strings.TrimSpace(*req.Icon)
	}
	if req.SortOrder != nil {
		c.SortOrder = *req.SortOrder
	}
	if req.Active != nil {
		c.Active = *req.Active
	}
	if c.Name == "" || c.Slug == "" {
		return apperr.Invalid("name and slug are required")
	}
	return nil
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	c := &models.Category{Active: true}
	if err := req.apply(c); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.store.CreateCategory(r.Context(), c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			err = apperr.Conflict("category slug already exists")
		}
		httputil.WriteError(w, r, err)
		return
	}
	h.invalidate(r.Context(), categoriesKey)
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "category")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	all, err := h.store.ListCategories(ctx, false)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var c *models.Category
	for i := range all {
		if all[i].ID == id {
			c = &all[i]
			break
		}
	}
	if c == nil {
		httputil.WriteError(w, r, apperr.NotFound("category"))
		return
	}

	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := req.apply(c); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.store.UpdateCategory(ctx, c); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			err = apperr.Conflict("category slug already exists")
		default:
			err = notFound(err, "category")
		}
		httputil.WriteError(w, r, err)
		return
	}
	h.invalidate(ctx, categoriesKey)
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "category")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.store.DeleteCategory(r.Context(), id); err != nil {
		httputil.WriteError(w, r, notFound(err, "category"))
		return
	}
	h.invalidate(r.Context(), categoriesKey)
	w.WriteHeader(http.StatusNoContent)
}

// Ads ------------------------------------------------------------------------

func validPlacement(p string) bool {
	switch p {
	case models.PlacementHome, models.PlacementFeed, models.PlacementShop:
		return true
	}
	return false
}

func (h *Handler) listAds(w http.ResponseWriter, r *http.Request) {
	placement := r.URL.Query().Get("placement")
	if placement != "" && !validPlacement(placement) {
		httputil.WriteError(w, r, apperr.Invalid("placement must be home, feed or shop"))
		return
	}
	ads, err := h.store.ListLiveAds(r.Context(), placement, h.now())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ads)
}

type adRequest struct {
	Title     string    `json:"title"`
	Image     string    `json:"image"`
	Link      string    `json:"link"`
	ShopID    string    `json:"shopId"`
	Placement string    `json:"placement"`
	Priority  int       `json:"priority"`
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
}

func (h *Handler) createAd(w http.ResponseWriter, r *http.Request) {
	var req adRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if req.StartsAt.IsZero() {
		req.StartsAt = h.now()
	}
	switch {
	case strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Image) == "":
		httputil.WriteError(w, r, apperr.Invalid("title and image are required"))
		return
	case !validPlacement(req.Placement):
		httputil.WriteError(w, r, apperr.Invalid("placement must be home, feed or shop"))
		return
	case !req.EndsAt.After(req.StartsAt):
		httputil.WriteError(w, r, apperr.Invalid("endsAt must be after startsAt"))
		return
	}

	ad := &models.Ad{
		Title:     strings.TrimSpace(req.Title),
		Image:     strings.TrimSpace(req.Image),
		Link:      strings.TrimSpace(req.Link),
		Placement: req.Placement,
		Priority:  req.Priority,
		StartsAt:  req.StartsAt.UTC(),
		EndsAt:    req.EndsAt.UTC(),
		Active:    true,
	}
	if req.ShopID != "" {
		shopID, err := parseID(req.ShopID, "shop")
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		if _, err := h.store.GetShop(r.Context(), shopID); err != nil {
			httputil.WriteError(w, r, notFound(err, "shop"))
			return
		}
		ad.ShopID = shopID
	}
	if err := h.store.CreateAd(r.Context(), ad); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ad)
}

func (h *Handler) deleteAd(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ad")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.store.DeleteAd(r.Context(), id); err != nil {
		httputil.WriteError(w, r, notFound(err, "ad"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Packages -------------------------------------------------------------------

func (h *Handler) listPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.store.ListPackages(r.Context(), true)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pkgs)
}

type packageRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	RollCount   *int     `json:"rollCount"`
	Price       *float64 `json:"price"`
	Currency    *string  `json:"currency"`
	Active      *bool    `json:"active"`
	SortOrder   *int     `json:"sortOrder"`
}

func (req packageRequest) apply(p *models.RollPackage) error {
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.RollCount != nil {
		p.RollCount = *req.RollCount
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Currency != nil {
		p.Currency = strings.ToUpper(strings.TrimSpace(*req.Currency))
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if req.SortOrder != nil {
		p.SortOrder = *req.SortOrder
	}

	switch {
	case p.Name == "":
		return apperr.Invalid("name is required")
	case p.RollCount <= 0:
		return apperr.Invalid("rollCount must be positive")
	case p.Price < 0:
		return apperr.Invalid("price cannot be negative")
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	return nil
}

func (h *Handler) createPackage(w http.ResponseWriter, r *http.Request) {
	var req packageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	p := &models.RollPackage{Active: true}
	if err := req.apply(p); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.store.CreatePackage(r.Context(), p); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) updatePackage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "package")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	p, err := h.store.GetPackage(ctx, id)
	if err != nil {
		httputil.WriteError(w, r, notFound(err, "package"))
		return
	}

	var req packageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := req.apply(p); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.store.UpdatePackage(ctx, p); err != nil {
		httputil.WriteError(w, r, notFound(err, "package"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}
