package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/apperr"
	"bigbag/internal/auth"
	"bigbag/internal/httputil"
	"bigbag/internal/models"
	"bigbag/internal/telemetry"
)

const (
	maxCaptionLen = 300
	maxTags       = 10
)

// rollView is a roll as seen by one caller.
type rollView struct {
	models.Roll
	Liked bool `json:"liked"`
}

func newRollView(r models.Roll, p auth.Principal, authed bool) rollView {
	return rollView{Roll: r, Liked: authed && r.LikedByUser(p.UserID)}
}

// visibleRoll loads a roll whose shop is approved, or any roll for its owner
// and admins.
func (h *Handler) visibleRoll(ctx context.Context, r *http.Request) (*models.Roll, error) {
	id, err := pathID(r, "roll")
	if err != nil {
		return nil, err
	}
	roll, err := h.store.GetRoll(ctx, id)
	if err != nil {
		return nil, notFound(err, "roll")
	}
	p, ok := caller(r)
	if canManage(p, ok, roll.VendorID) {
		return roll, nil
	}
	shop, err := h.store.GetShop(ctx, roll.ShopID)
	if err != nil || !shop.Approved() {
		return nil, apperr.NotFound("roll")
	}
	return roll, nil
}

func (h *Handler) listRolls(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := pageParams(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	shopID, err := optionalID(r, "shop")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	categoryID, err := optionalID(r, "category")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	f := models.RollFilter{CategoryID: categoryID}
	if !shopID.IsZero() {
		shop, err := h.store.GetShop(ctx, shopID)
		if err != nil || !shop.Approved() {
			httputil.WriteJSON(w, http.StatusOK, []rollView{})
			return
		}
		f.ShopID = shopID
	} else {
		approved, err := h.store.ListShops(ctx, models.ShopFilter{Status: models.ShopApproved}, models.Page{})
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		f.ShopIDs = make([]primitive.ObjectID, len(approved))
		for i, s := range approved {
			f.ShopIDs[i] = s.ID
		}
	}

	rolls, err := h.store.ListRolls(ctx, f, page)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	p, ok := caller(r)
	out := make([]rollView, len(rolls))
	for i, roll := range rolls {
		out[i] = newRollView(roll, p, ok)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type rollRequest struct {
	Caption      string   `json:"caption"`
	VideoURL     string   `json:"videoUrl"`
	ThumbnailURL string   `json:"thumbnailUrl"`
	CategoryID   string   `json:"categoryId"`
	Tags         []string `json:"tags"`
}

func (req *rollRequest) validate() error {
	req.Caption = strings.TrimSpace(req.Caption)
	req.VideoURL = strings.TrimSpace(req.VideoURL)
	if req.VideoURL == "" {
		return apperr.Invalid("videoUrl is required")
	}
	if utf8.RuneCountInString(req.Caption) > maxCaptionLen {
		return apperr.Invalid("caption must be at most 300 characters")
	}
	if len(req.Tags) > maxTags {
		return apperr.Invalid("at most 10 tags are allowed")
	}
	return nil
}

func (h *Handler) createRoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := caller(r)

	var req rollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
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

	shop, err := h.credits.ConsumeForUpload(ctx, p.UserID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	roll := &models.Roll{
		ShopID:       shop.ID,
		VendorID:     p.UserID,
		Caption:      req.Caption,
		VideoURL:     req.VideoURL,
		ThumbnailURL: strings.TrimSpace(req.ThumbnailURL),
		CategoryID:   categoryID,
		Tags:         req.Tags,
	}
	if err := h.store.CreateRoll(ctx, roll); err != nil {
		_ = h.credits.Refund(context.WithoutCancel(ctx), p.UserID)
		httputil.WriteError(w, r, err)
		return
	}

	telemetry.RollUploaded()
	slog.Info("Roll uploaded", "roll_id", roll.ID.Hex(), "shop_id", shop.ID.Hex(), "vendor_id", p.UserID.Hex())
	h.invalidate(ctx, shopPageKey(shop.ID))
	httputil.WriteJSON(w, http.StatusCreated, newRollView(*roll, p, true))
}

func (h *Handler) getRoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roll, err := h.visibleRoll(ctx, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.store.IncrementRollCounter(ctx, roll.ID, models.RollViews, 1); err != nil {
		slog.Warn("View count not recorded", "roll_id", roll.ID.Hex(), "error", err)
	} else {
		roll.ViewCount++
	}
	p, ok := caller(r)
	httputil.WriteJSON(w, http.StatusOK, newRollView(*roll, p, ok))
}

func (h *Handler) deleteRoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "roll")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	roll, err := h.store.GetRoll(ctx, id)
	if err != nil {
		httputil.WriteError(w, r, notFound(err, "roll"))
		return
	}
	p, ok := caller(r)
	if !canManage(p, ok, roll.VendorID) {
		httputil.WriteError(w, r, apperr.Forbidden("only the owner can delete this roll"))
		return
	}

	if err := h.store.DeleteRoll(ctx, id); err != nil {
		httputil.WriteError(w, r, notFound(err, "roll"))
		return
	}
	if err := h.store.DeleteSavedForRoll(ctx, id); err != nil {
		slog.Warn("Saved entries not removed", "roll_id", id.Hex(), "error", err)
	}
	if err := h.store.DeleteCommentsForRoll(ctx, id); err != nil {
		slog.Warn("Comments not removed", "roll_id", id.Hex(), "error", err)
	}
	slog.Info("Roll deleted", "roll_id", id.Hex(), "by", p.UserID.Hex())
	h.invalidate(ctx, shopPageKey(roll.ShopID))
	w.WriteHeader(http.StatusNoContent)
}

type likeResponse struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"likeCount"`
}

func (h *Handler) setLike(w http.ResponseWriter, r *http.Request, like bool) {
	ctx := r.Context()
	roll, err := h.visibleRoll(ctx, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	p, _ := caller(r)

	if like {
		_, err = h.store.LikeRoll(ctx, roll.ID, p.UserID)
	} else {
		_, err = h.store.UnlikeRoll(ctx, roll.ID, p.UserID)
	}
	if err != nil {
		httputil.WriteError(w, r, notFound(err, "roll"))
		return
	}

	updated, err := h.store.GetRoll(ctx, roll.ID)
	if err != nil {
		httputil.WriteError(w, r, notFound(err, "roll"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, likeResponse{
		Liked:     updated.LikedByUser(p.UserID),
		LikeCount: updated.LikeCount,
	})
}

func (h *Handler) likeRoll(w http.ResponseWriter, r *http.Request)   { h.setLike(w, r, true) }
func (h *Handler) unlikeRoll(w http.ResponseWriter, r *http.Request) { h.setLike(w, r, false) }

type saveResponse struct {
	Saved     bool  `json:"saved"`
	SaveCount int64 `json:"saveCount"`
}

func (h *Handler) setSaved(w http.ResponseWriter, r *http.Request, save bool) {
	ctx := r.Context()
	roll, err := h.visibleRoll(ctx, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	p, _ := caller(r)

	var changed bool
	delta := int64(1)
	if save {
		changed, err = h.store.SaveRoll(ctx, p.UserID, roll.ID)
	} else {
		changed, err = h.store.UnsaveRoll(ctx, p.UserID, roll.ID)
		delta = -1
	}
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	count := roll.SaveCount
	if changed {
		if err := h.store.IncrementRollCounter(ctx, roll.ID, models.RollSaves, delta); err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		count += delta
	}
	httputil.WriteJSON(w, http.StatusOK, saveResponse{Saved: save, SaveCount: count})
}

func (h *Handler) saveRoll(w http.ResponseWriter, r *http.Request)   { h.setSaved(w, r, true) }
func (h *Handler) unsaveRoll(w http.ResponseWriter, r *http.Request) { h.setSaved(w, r, false) }

type shareRequest struct {
	Country string `json:"country"`
}

// shareCountry is the country sent by the client, else the caller's profile
// country, else empty.
func (h *Handler) shareCountry(w http.ResponseWriter, r *http.Request) (string, error) {
	var req shareRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			return "", err
		}
	}
	if strings.TrimSpace(req.Country) != "" {
		return req.Country, nil
	}
	if p, ok := caller(r); ok {
		if u, err := h.store.GetUser(r.Context(), p.UserID); err == nil {
			return u.Country, nil
		}
	}
	return "", nil
}

func (h *Handler) shareRoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roll, err := h.visibleRoll(ctx, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	country, err := h.shareCountry(w, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if err := h.shares.Record(ctx, roll.ShopID, country); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.store.IncrementRollCounter(ctx, roll.ID, models.RollShares, 1); err != nil {
		// the shop share is already counted
		slog.Warn("Roll share counter not updated", "roll_id", roll.ID.Hex(), "shop_id", roll.ShopID.Hex(), "error", err)
		httputil.WriteError(w, r, notFound(err, "roll"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"shareCount": roll.ShareCount + 1})
}
