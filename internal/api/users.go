package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/apperr"
	"bigbag/internal/auth"
	"bigbag/internal/httputil"
	"bigbag/internal/models"
	"bigbag/internal/store"
)

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *Handler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, u *models.User) {
	token, err := h.tokens.Issue(u)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, status, authResponse{Token: token, User: u})
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Country  string `json:"country"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	switch {
	case req.Name == "":
		httputil.WriteError(w, r, apperr.Invalid("name is required"))
		return
	case req.Email == "" && req.Phone == "":
		httputil.WriteError(w, r, apperr.Invalid("email or phone is required"))
		return
	case req.Email != "" && !strings.Contains(req.Email, "@"):
		httputil.WriteError(w, r, apperr.Invalid("invalid email"))
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}
	if req.Role != models.RoleUser && req.Role != models.RoleVendor {
		httputil.WriteError(w, r, apperr.Invalid("role must be user or vendor"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrWeakPassword) || errors.Is(err, auth.ErrPasswordTooLong) {
		httputil.WriteError(w, r, apperr.Invalid(err.Error()))
		return
	}
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	u := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         req.Role,
		Country:      strings.ToUpper(strings.TrimSpace(req.Country)),
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			err = apperr.Conflict("an account with this email or phone already exists")
		}
		httputil.WriteError(w, r, err)
		return
	}

	slog.Info("User registered", "user_id", u.ID.Hex(), "role", u.Role)
	h.respondWithToken(w, r, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	var (
		u   *models.User
		err error
	)
	switch {
	case req.Email != "":
		u, err = h.store.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	case req.Phone != "":
		u, err = h.store.GetUserByPhone(r.Context(), strings.TrimSpace(req.Phone))
	default:
		httputil.WriteError(w, r, apperr.Invalid("email or phone is required"))
		return
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		httputil.WriteError(w, r, err)
		return
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		httputil.WriteError(w, r, apperr.Unauthorized("invalid credentials"))
		return
	}
	h.respondWithToken(w, r, http.StatusOK, u)
}

type otpRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
	Name  string `json:"name"`
}

func (h *Handler) requestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	phone := strings.TrimSpace(req.Phone)
	if len(phone) < 6 {
		httputil.WriteError(w, r, apperr.Invalid("a valid phone number is required"))
		return
	}
	if err := h.otp.Request(r.Context(), phone); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" || req.Code == "" {
		httputil.WriteError(w, r, apperr.Invalid("phone and code are required"))
		return
	}

	if err := h.otp.Verify(r.Context(), phone, strings.TrimSpace(req.Code)); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCode):
			err = apperr.New(apperr.CodeInvalidOTP, "invalid or expired code")
		case errors.Is(err, auth.ErrTooManyAttempts):
			err = apperr.New(apperr.CodeRateLimited, "too many attempts, request a new code")
		}
		httputil.WriteError(w, r, err)
		return
	}

	u, err := h.store.GetUserByPhone(r.Context(), phone)
	if err == nil {
		h.respondWithToken(w, r, http.StatusOK, u)
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		httputil.WriteError(w, r, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "BigBag user"
	}
	u = &models.User{Name: name, Phone: phone, Role: models.RoleUser}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	slog.Info("User registered by OTP", "user_id", u.ID.Hex())
	h.respondWithToken(w, r, http.StatusCreated, u)
}

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	p, _ := caller(r)
	u, err := h.store.GetUser(r.Context(), p.UserID)
	if err != nil {
		httputil.WriteError(w, r, notFound(err, "user"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	p, _ := caller(r)
	var upd models.UserUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			httputil.WriteError(w, r, apperr.Invalid("name cannot be empty"))
			return
		}
		upd.Name = &name
	}
	if upd.Country != nil {
		c := strings.ToUpper(strings.TrimSpace(*upd.Country))
		upd.Country = &c
	}

	u, err := h.store.UpdateUser(r.Context(), p.UserID, upd)
	if err != nil {
		httputil.WriteError(w, r, notFound(err, "user"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) listSaved(w http.ResponseWriter, r *http.Request) {
	p, _ := caller(r)
	page, err := pageParams(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	saved, err := h.store.ListSaved(r.Context(), p.UserID, page)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	ids := make([]primitive.ObjectID, len(saved))
	for i, s := range saved {
		ids[i] = s.RollID
	}
	rolls, err := h.store.GetRolls(r.Context(), ids)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	byID := make(map[primitive.ObjectID]models.Roll, len(rolls))
	for _, roll := range rolls {
		byID[roll.ID] = roll
	}
	out := make([]rollView, 0, len(saved))
	for _, s := range saved {
		if roll, ok := byID[s.RollID]; ok {
			out = append(out, newRollView(roll, p, true))
		}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
