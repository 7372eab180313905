// Package api exposes the BigBag REST API over net/http.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/apperr"
	"bigbag/internal/auth"
	"bigbag/internal/cache"
	"bigbag/internal/credits"
	"bigbag/internal/media"
	"bigbag/internal/models"
	"bigbag/internal/notify"
	"bigbag/internal/shares"
	"bigbag/internal/shops"
	"bigbag/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxBodyBytes    = 1 << 20

	shopPageTTL   = 30 * time.Second
	categoriesTTL = 5 * time.Minute
	categoriesKey = "categories:active"
)

// Options carries the dependencies of the API.
type Options struct {
	Store    store.Store
	Cache    cache.Cache
	Tokens   *auth.Tokens
	OTP      *auth.OTP
	Credits  *credits.Service
	Shares   *shares.Service
	Shops    *shops.Service
	Media    *media.Storage
	Notifier *notify.Notifier

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	AuthRateLimit  int
}

type Handler struct {
	store    store.Store
	cache    cache.Cache
	tokens   *auth.Tokens
	otp      *auth.OTP
	credits  *credits.Service
	shares   *shares.Service
	shops    *shops.Service
	media    *media.Storage
	notifier *notify.Notifier
	authMW   *auth.Middleware

	corsOrigins    []string
	rateLimitRPS   float64
	rateLimitBurst int
	authRateLimit  int

	now func() time.Time
}

func NewHandler(o Options) *Handler {
	return &Handler{
		store:          o.Store,
		cache:          o.Cache,
		tokens:         o.Tokens,
		otp:            o.OTP,
		credits:        o.Credits,
		shares:         o.Shares,
		shops:          o.Shops,
		media:          o.Media,
		notifier:       o.Notifier,
		authMW:         auth.NewMiddleware(o.Tokens),
		corsOrigins:    o.CORSOrigins,
		rateLimitRPS:   o.RateLimitRPS,
		rateLimitBurst: o.RateLimitBurst,
		authRateLimit:  o.AuthRateLimit,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

var errEmptyBody = apperr.Invalid("request body is required")

// decodeJSON reads a JSON body of at most maxBodyBytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperr.New(apperr.CodeTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			return errEmptyBody
		default:
			return apperr.Wrap(apperr.CodeInvalidArgument, "invalid JSON body", err)
		}
	}
	return nil
}

func parseID(s, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, apperr.Newf(apperr.CodeInvalidArgument, "invalid %s id", what)
	}
	return id, nil
}

func pathID(r *http.Request, what string) (primitive.ObjectID, error) {
	return parseID(r.PathValue("id"), what)
}

// optionalID parses a query parameter id; empty yields the zero id.
func optionalID(r *http.Request, key string) (primitive.ObjectID, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return primitive.NilObjectID, nil
	}
	return parseID(v, key)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Newf(apperr.CodeInvalidArgument, "%s must be an integer", key)
	}
	return n, nil
}

// pageParams reads 1-based page and limit query parameters.
func pageParams(r *http.Request) (models.Page, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return models.Page{}, err
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		return models.Page{}, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if int64(page-1) > math.MaxInt64/int64(limit) {
		return models.Page{}, apperr.Invalid("page is out of range")
	}
	return models.Page{Skip: int64(page-1) * int64(limit), Limit: int64(limit)}, nil
}

func caller(r *http.Request) (auth.Principal, bool) {
	return auth.FromContext(r.Context())
}

// canManage reports whether the caller owns the resource or is an admin.
func canManage(p auth.Principal, ok bool, ownerID primitive.ObjectID) bool {
	return ok && (p.IsAdmin() || p.UserID == ownerID)
}

func notFound(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(what)
	}
	return err
}

func (h *Handler) invalidate(ctx context.Context, keys ...string) {
	_ = h.cache.Delete(ctx, keys...)
}

func shopPageKey(id primitive.ObjectID) string { return "shoppage:" + id.Hex() }
