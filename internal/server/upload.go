package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"image-drop/internal/gallery"
	"image-drop/internal/logging"
)

// uploadField is the multipart field every image is sent under.
const uploadField = "images"

// multipartMemory is how much of a batch is held in memory; the rest spills
// to temporary files that are removed after the request.
const multipartMemory = 32 << 20

// uploadResp is the JSON response returned after a successful batch.
type uploadResp struct {
	FilePaths []string `json:"filePaths"`
}

// addresser picks the Addresser for r: the configured public host and port,
// or the request's Host header when PublicFromRequest is set.
func (cfg Config) addresser(r *http.Request) gallery.Addresser {
	if cfg.PublicFromRequest && r.Host != "" {
		return gallery.FromHostHeader(r.Host, cfg.Public.Port)
	}
	return cfg.Public
}

// uploadHandler handles POST /upload. The whole multipart body is parsed
// before anything is validated, so a rejected batch writes nothing.
func (cfg Config) uploadHandler(ing *gallery.Ingester, m *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid := RequestIDFromContext(r.Context())

		fail := func(err error) {
			status := statusFor(err)
			if m != nil {
				m.RecordUploadError(errorReason(err))
			}
			if status >= http.StatusInternalServerError {
				logging.Error("upload_failed", logging.Fields{"rid": rid}, err)
			} else {
				logging.Warn("upload_rejected", logging.Fields{"rid": rid, "status": status}, err)
			}
			writeError(w, status, publicMessage(status, err))
		}

		if cfg.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		}

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				fail(err)
				return
			}
			fail(fmt.Errorf("%w: malformed multipart body: %v", gallery.ErrTransport, err))
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		headers := r.MultipartForm.File[uploadField]
		if len(headers) > ing.MaxBatch() {
			fail(fmt.Errorf("%w: too many files: %d (max %d)", gallery.ErrInvalidInput, len(headers), ing.MaxBatch()))
			return
		}

		entries := make([]gallery.Entry, 0, len(headers))
		var total int64
		for _, fh := range headers {
			entries = append(entries, gallery.Entry{
				Filename: fh.Filename,
				Size:     fh.Size,
				Open:     openPart(fh),
			})
			total += fh.Size
		}

		paths, err := ing.Ingest(r.Context(), cfg.addresser(r), entries)
		if err != nil {
			fail(err)
			return
		}

		if m != nil {
			m.RecordUpload(len(paths), total, time.Since(start))
		}
		logging.Info("upload_stored", logging.Fields{
			"rid":   rid,
			"files": len(paths),
			"bytes": total,
		})
		writeJSON(w, http.StatusOK, uploadResp{FilePaths: paths})
	})
}

func openPart(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return fh.Open()
	}
}

// publicMessage hides internal detail from 5xx responses.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusRequestEntityTooLarge:
		return "upload too large"
	case http.StatusBadRequest:
		return err.Error()
	default:
		return "failed to store uploaded files"
	}
}
