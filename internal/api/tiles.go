package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tilepath/slidehost/internal/dzi"
	"github.com/tilepath/slidehost/internal/metrics"
	"github.com/tilepath/slidehost/internal/slide"
)

// getManifest handles GET /{slug}.dzi.
func (s *Server) getManifest(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	tiler, err := s.slides.Resolve(slug)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown slide")
		return
	}
	out, err := tiler.Pyramid().Manifest(string(s.format))
	if err != nil {
		s.logger.Error("render manifest failed", zap.String("slug", slug), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "manifest render failed")
		return
	}
	metrics.ObserveManifest(slug)
	w.Header().Set("Content-Type", "application/xml")
	if _, err := w.Write(out); err != nil {
		s.logger.Error("write manifest failed", zap.Error(err))
	}
}

// getTile handles GET /{slug}_files/{level}/{x}_{y}.{format}.
//
// Every addressing problem — unknown slug, malformed numbers, out-of-range
// coordinates, unsupported format — is a client error and maps to 404. Only a
// render failure on a valid address is a 500.
func (s *Server) getTile(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	tiler, err := s.slides.Resolve(slug)
	if err != nil {
		s.tileNotFound(w, "unknown slide")
		return
	}

	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		s.tileNotFound(w, "invalid level")
		return
	}
	col, row, format, ok := parseTileName(chi.URLParam(r, "tile"))
	if !ok {
		s.tileNotFound(w, "invalid tile address")
		return
	}

	start := time.Now()
	data, err := tiler.Tile(level, col, row, format)
	switch {
	case errors.Is(err, dzi.ErrOutOfRange):
		s.tileNotFound(w, "tile out of range")
		return
	case err != nil:
		s.logger.Error("render tile failed",
			zap.String("slug", slug),
			zap.Int("level", level),
			zap.Int("col", col),
			zap.Int("row", row),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "tile render failed")
		return
	}

	metrics.ObserveTile(slug, string(format), time.Since(start))
	w.Header().Set("Content-Type", format.ContentType())
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write tile failed", zap.Error(err))
	}
}

func (s *Server) tileNotFound(w http.ResponseWriter, msg string) {
	metrics.ObserveTileNotFound()
	writeError(w, http.StatusNotFound, msg)
}

// parseTileName splits "{x}_{y}.{format}" into its parts.
func parseTileName(name string) (col, row int, format slide.Format, ok bool) {
	base, ext, found := strings.Cut(name, ".")
	if !found {
		return 0, 0, "", false
	}
	format, err := slide.ParseFormat(strings.ToLower(ext))
	if err != nil {
		return 0, 0, "", false
	}
	xs, ys, found := strings.Cut(base, "_")
	if !found {
		return 0, 0, "", false
	}
	col, err = strconv.Atoi(xs)
	if err != nil {
		return 0, 0, "", false
	}
	row, err = strconv.Atoi(ys)
	if err != nil {
		return 0, 0, "", false
	}
	return col, row, format, true
}
