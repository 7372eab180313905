package api

import (
	"errors"
	"log/slog"
	"net/http"

	"bigbag/internal/apperr"
	"bigbag/internal/httputil"
	"bigbag/internal/media"
)

// multipartOverhead covers boundaries and headers around the file part.
const multipartOverhead = 64 << 10

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		httputil.WriteError(w, r, apperr.New(apperr.CodeInternal, "uploads are disabled"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.media.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		httputil.WriteError(w, r, uploadError(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, r, apperr.Invalid("multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	stored, err := h.media.Save(file, hdr.Filename)
	if err != nil {
		httputil.WriteError(w, r, uploadError(err))
		return
	}

	p, _ := caller(r)
	slog.Info("File uploaded", "name", stored.Name, "kind", stored.Kind, "size", stored.Size, "user_id", p.UserID.Hex())
	httputil.WriteJSON(w, http.StatusCreated, stored)
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr), errors.Is(err, media.ErrTooLarge):
		return apperr.New(apperr.CodeTooLarge, "file too large")
	case errors.Is(err, media.ErrUnsupportedType):
		return apperr.Invalid("unsupported file type")
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		return apperr.Invalid("expected a multipart/form-data body")
	}
	return err
}
