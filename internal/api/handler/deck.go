package handler

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/morningdash/morningdash/internal/api/response"
)

const deckIndex = "index.html"

// DeckHandler serves the static presentation deck. Directories resolve to
// their index.html and are never listed.
type DeckHandler struct {
	files  fs.FS
	logger zerolog.Logger
}

// NewDeckHandler serves files from fsys, typically os.DirFS(deckDir).
func NewDeckHandler(fsys fs.FS, logger zerolog.Logger) *DeckHandler {
	return &DeckHandler{files: fsys, logger: logger}
}

// Serve handles GET /deck/*.
func (h *DeckHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+chi.URLParam(r, "*")), "/")
	if name == "" {
		name = "."
	}

	info, err := fs.Stat(h.files, name)
	if err == nil && info.IsDir() {
		name = path.Join(name, deckIndex)
		info, err = fs.Stat(h.files, name)
	}
	if err != nil || info.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			h.logger.Warn().Err(err).Str("file", name).Msg("deck file lookup failed")
		}
		response.NotFound(w, r, "deck page not found")
		return
	}

	f, err := h.files.Open(name)
	if err != nil {
		response.NotFound(w, r, "deck page not found")
		return
	}
	defer f.Close()

	content, ok := f.(io.ReadSeeker)
	if !ok {
		response.InternalError(w, r, "deck file is not seekable")
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), content)
}
