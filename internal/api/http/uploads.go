package http

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-materials/internal/storage"
)

// MountUploads serves stored material files read-only.
func MountUploads(r chi.Router, bs storage.BlobStore) {
	// GET /uploads/*  -> the blob at whatever follows /uploads/
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(key)
		switch {
		case errors.Is(err, storage.ErrBadKey):
			http.Error(w, "bad key", http.StatusBadRequest)
			return
		case errors.Is(err, fs.ErrNotExist):
			http.Error(w, "not found", http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, "read error", http.StatusInternalServerError)
			return
		}
		defer rc.Close()

		br := bufio.NewReaderSize(rc, 3072)
		head, _ := br.Peek(3072)
		w.Header().Set("Content-Type", mimetype.Detect(head).String())
		w.Header().Set("X-Content-Type-Options", "nosniff")
		_, _ = io.Copy(w, br)
	})
}
