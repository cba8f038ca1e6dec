package handler

import (
	"net/http"

	xerrors "ledger-service/shared/utils/errors"

	"github.com/go-chi/chi/v5"
)

// ServeOwnUpload returns one of the caller's stored files. Other users' files answer 404.
// GET /api/v1/uploads/{owner}/{name}
func (h *Handler) ServeOwnUpload(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	if chi.URLParam(r, "owner") != h.uploads.Owner(username) {
		h.fail(w, r, "serve upload", xerrors.ErrNotFound)
		return
	}
	h.serveUpload(w, r)
}

// GET /admin/uploads/{owner}/{name}
func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	h.serveUpload(w, r)
}

func (h *Handler) serveUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f, err := h.uploads.Open(chi.URLParam(r, "owner"), name)
	if err != nil {
		h.fail(w, r, "serve upload", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.fail(w, r, "serve upload", err)
		return
	}
	w.Header().Set("Cache-Control", "private, no-store")
	http.ServeContent(w, r, name, info.ModTime(), f)
}
