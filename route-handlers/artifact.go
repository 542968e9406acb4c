package routehandlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/coreybb/quire/storage"
	"github.com/coreybb/quire/webutil"
)

const artifactCacheControl = "private, max-age=3600"

type ArtifactHandler struct {
	Store storage.ArtifactStore
}

func NewArtifactHandler(store storage.ArtifactStore) *ArtifactHandler {
	return &ArtifactHandler{Store: store}
}

// HandleDownload streams a generated artifact as an attachment.
func (h *ArtifactHandler) HandleDownload(w http.ResponseWriter, r *http.Request) error {
	if _, err := webutil.RequireUser(r); err != nil {
		return err
	}

	filename := chi.URLParam(r, "filename")
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return webutil.ErrBadRequest("Invalid filename")
	}

	f, err := h.Store.Open(filename)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidFilename):
			return webutil.ErrBadRequestWrap("Invalid filename", err)
		case errors.Is(err, os.ErrNotExist):
			return webutil.ErrNotFoundWrap("File not found", err)
		default:
			return fmt.Errorf("failed to open artifact %s: %w", filename, err)
		}
	}
	defer f.Close()

	w.Header().Set(webutil.HeaderContentType, storage.ContentTypeFor(filename))
	w.Header().Set(webutil.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set(webutil.HeaderCacheControl, artifactCacheControl)
	if info, err := f.Stat(); err == nil {
		w.Header().Set(webutil.HeaderContentLength, fmt.Sprint(info.Size()))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
	return nil
}
