package server

import (
	"errors"
	"net/http"

	"image-drop/internal/gallery"
	"image-drop/internal/logging"
	"image-drop/internal/store"
)

// listingErrorMessage is kept verbatim for existing clients.
const listingErrorMessage = "Unable to read uploads directory"

// imagesHandler handles GET /get-images: one public address per stored file.
func (cfg Config) imagesHandler(l *gallery.Lister, m *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addresses, err := l.List(r.Context(), cfg.addresser(r))
		if err != nil {
			logging.Error("listing_failed", logging.Fields{
				"rid": RequestIDFromContext(r.Context()),
			}, err)
			writeError(w, http.StatusInternalServerError, listingErrorMessage)
			return
		}
		if m != nil {
			m.RecordListing()
		}
		writeJSON(w, http.StatusOK, addresses)
	})
}

// contentHandler handles GET /uploads/{id}. The content type is sniffed from
// the bytes since ids carry no extension.
func (cfg Config) contentHandler(s store.ContentStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		rc, info, err := s.Open(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidID) {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			logging.Error("content_open_failed", logging.Fields{
				"rid": RequestIDFromContext(r.Context()),
				"id":  id,
			}, err)
			writeError(w, http.StatusInternalServerError, "failed to read content")
			return
		}
		defer func() { _ = rc.Close() }()

		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		http.ServeContent(w, r, id, info.ModTime, rc)
	})
}
