package api

import (
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"bigbag/internal/apperr"
	"bigbag/internal/httputil"
	"bigbag/internal/models"
)

const maxCommentLen = 500

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roll, err := h.visibleRoll(ctx, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	page, err := pageParams(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	comments, err := h.store.ListComments(ctx, roll.ID, page)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, comments)
}

type commentRequest struct {
	Text string `json:"text"`
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := caller(r)
	roll, err := h.visibleRoll(ctx, r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	text := strings.TrimSpace(req.Text)
	if n := utf8.RuneCountInString(text); n == 0 || n > maxCommentLen {
		httputil.WriteError(w, r, apperr.Invalid("comment must be 1 to 500 characters"))
		return
	}

	u, err := h.store.GetUser(ctx, p.UserID)
	if err != nil {
		httputil.WriteError(w, r, notFound(err, "user"))
		return
	}
	c := &models.Comment{RollID: roll.ID, UserID: p.UserID, UserName: u.Name, Text: text}
	if err := h.store.CreateComment(ctx, c); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.store.IncrementRollCounter(ctx, roll.ID, models.RollComments, 1); err != nil {
		slog.Warn("Comment count not updated", "roll_id", roll.ID.Hex(), "error", err)
	}

	if roll.VendorID != p.UserID {
		h.notifier.NotifyUser(ctx, roll.VendorID, "New comment",
			u.Name+": "+truncate(text, 80),
			map[string]string{"type": "comment", "rollId": roll.ID.Hex()})
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "comment")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	c, err := h.store.GetComment(ctx, id)
	if err != nil {
		httputil.WriteError(w, r, notFound(err, "comment"))
		return
	}
	p, ok := caller(r)
	if !canManage(p, ok, c.UserID) {
		httputil.WriteError(w, r, apperr.Forbidden("only the author can delete this comment"))
		return
	}

	if err := h.store.DeleteComment(ctx, id); err != nil {
		httputil.WriteError(w, r, notFound(err, "comment"))
		return
	}
	if err := h.store.IncrementRollCounter(ctx, c.RollID, models.RollComments, -1); err != nil {
		slog.Warn("Comment count not updated", "roll_id", c.RollID.Hex(), "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
