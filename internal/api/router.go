package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bigbag/internal/httputil"
	"bigbag/internal/media"
	"bigbag/internal/models"
	"bigbag/internal/telemetry"
)

// Routes builds the full HTTP handler: every route is wrapped with metrics
// under its pattern, and the whole mux sits behind logging, CORS and the
// per-IP limiter.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, hf http.HandlerFunc) {
		mux.Handle(pattern, telemetry.Middleware(pattern, hf))
	}

	a := h.authMW
	user := a.ValidateToken
	vendor := func(next http.HandlerFunc) http.HandlerFunc { return a.RequireRole(models.RoleVendor, next) }
	admin := func(next http.HandlerFunc) http.HandlerFunc { return a.RequireRole(models.RoleAdmin, next) }
	anyone := a.Optional

	mux.Handle("GET /metrics", promhttp.Handler())
	handle("GET /healthz", h.healthz)

	handle("POST /api/auth/register", h.authLimited(h.register))
	handle("POST /api/auth/login", h.authLimited(h.login))
	handle("POST /api/auth/otp/request", h.authLimited(h.requestOTP))
	handle("POST /api/auth/otp/verify", h.authLimited(h.verifyOTP))

	handle("GET /api/me", user(h.getMe))
	handle("PATCH /api/me", user(h.updateMe))
	handle("GET /api/me/saved", user(h.listSaved))

	handle("GET /api/categories", h.listCategories)
	handle("POST /api/admin/categories", admin(h.createCategory))
	handle("PATCH /api/admin/categories/{id}", admin(h.updateCategory))
	handle("DELETE /api/admin/categories/{id}", admin(h.deleteCategory))

	handle("GET /api/ads", h.listAds)
	handle("POST /api/admin/ads", admin(h.createAd))
	handle("DELETE /api/admin/ads/{id}", admin(h.deleteAd))

	handle("GET /api/packages", h.listPackages)
	handle("POST /api/admin/packages", admin(h.createPackage))
	handle("PATCH /api/admin/packages/{id}", admin(h.updatePackage))

	handle("GET /api/shops", h.listShops)
	handle("POST /api/shops", vendor(h.createShop))
	handle("GET /api/shops/mine", vendor(h.myShop))
	handle("GET /api/shops/{id}", anyone(h.getShop))
	handle("PATCH /api/shops/{id}", vendor(h.updateShop))
	handle("GET /api/shops/{id}/page", anyone(h.shopPage))
	handle("POST /api/admin/shops/{id}/status", admin(h.setShopStatus))
	handle("POST /api/shops/{id}/share", anyone(h.shareShop))
	handle("GET /api/shops/{id}/shares", vendor(h.shopShareHistory))
	handle("GET /api/leaderboard/weekly", h.weeklyLeaderboard)

	handle("GET /api/vendor/profile", vendor(h.vendorProfile))
	handle("POST /api/vendor/packages/{id}/purchase", vendor(h.purchasePackage))

	handle("GET /api/rolls", anyone(h.listRolls))
	handle("POST /api/rolls", vendor(h.createRoll))
	handle("GET /api/rolls/{id}", anyone(h.getRoll))
	handle("DELETE /api/rolls/{id}", user(h.deleteRoll))
	handle("POST /api/rolls/{id}/like", user(h.likeRoll))
	handle("DELETE /api/rolls/{id}/like", user(h.unlikeRoll))
	handle("POST /api/rolls/{id}/save", user(h.saveRoll))
	handle("DELETE /api/rolls/{id}/save", user(h.unsaveRoll))
	handle("POST /api/rolls/{id}/share", anyone(h.shareRoll))

	handle("GET /api/rolls/{id}/comments", anyone(h.listComments))
	handle("POST /api/rolls/{id}/comments", user(h.addComment))
	handle("DELETE /api/comments/{id}", user(h.deleteComment))

	handle("GET /api/offers", h.listLiveOffers)
	handle("GET /api/shops/{id}/offers", anyone(h.listShopOffers))
	handle("POST /api/offers", vendor(h.createOffer))
	handle("DELETE /api/offers/{id}", vendor(h.deleteOffer))

	handle("POST /api/coupons", vendor(h.createCoupon))
	handle("GET /api/shops/{id}/coupons", vendor(h.listShopCoupons))
	handle("POST /api/coupons/validate", h.validateCoupon)
	handle("POST /api/coupons/redeem", user(h.redeemCoupon))

	handle("GET /api/shops/{id}/reviews", h.listReviews)
	handle("POST /api/shops/{id}/reviews", user(h.reviewShop))

	handle("POST /api/uploads", user(h.upload))
	if h.media != nil {
		mux.Handle("GET "+media.PathPrefix, h.media.Handler())
	}

	var root http.Handler = mux
	root = newIPLimiter(h.rateLimitRPS, h.rateLimitBurst).Handler(root)
	root = newCORS(h.corsOrigins).Handler(root)
	root = requestLogger(root)
	return root
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
