package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tilepath/slidehost/internal/metrics"
	"github.com/tilepath/slidehost/internal/run"
	"github.com/tilepath/slidehost/internal/slide"
)

func init() {
	metrics.Init()
}

func testSlide(t *testing.T, w, h int) *slide.Collection {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 16 {
		for x := 0; x < w; x += 16 {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	col, err := slide.NewCollection(slide.NewImageSource(img), 512, 75)
	require.NoError(t, err)
	require.NoError(t, col.AddAssociated("Macro Image", slide.NewImageSource(image.NewRGBA(image.Rect(0, 0, 64, 48)))))
	return col
}

func newTestServer(t *testing.T) (*Server, *run.Registry) {
	t.Helper()
	registry := run.NewRegistry(zap.NewNop())
	srv := NewServer(testSlide(t, 2048, 2048), registry, slide.FormatJPEG, zap.NewNop())
	return srv, registry
}

func doRequest(t *testing.T, srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

// TestHealthEndpoints smoke-tests the operational endpoints.
func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, doRequest(t, srv, http.MethodGet, "/healthz", nil).Code)
	require.Equal(t, http.StatusOK, doRequest(t, srv, http.MethodGet, "/readyz", nil).Code)
	require.Equal(t, http.StatusOK, doRequest(t, srv, http.MethodGet, "/metrics", nil).Code)
}

// TestGetManifest covers the DZI descriptor for the primary slide, an
// associated image, and an unknown slug.
func TestGetManifest(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/slide.dzi", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), `TileSize="512"`)
	require.Contains(t, rec.Body.String(), `Width="2048"`)

	rec = doRequest(t, srv, http.MethodGet, "/macro-image.dzi", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `Width="64"`)

	rec = doRequest(t, srv, http.MethodGet, "/nope.dzi", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// TestGetTile fetches a real tile and decodes it.
func TestGetTile(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	// 2048/512 = 4x4 grid at the finest level (11 for a 2048 pyramid).
	rec := doRequest(t, srv, http.MethodGet, "/slide_files/11/3_3.jpeg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	img, err := jpeg.Decode(rec.Body)
	require.NoError(t, err)
	require.Equal(t, 512, img.Bounds().Dx())
}

// TestGetTileNotFound enumerates the addressing errors that must map to 404
// and never to a 5xx.
func TestGetTileNotFound(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	paths := []string{
		"/ghost_files/11/0_0.jpeg",   // unknown slug
		"/slide_files/99/0_0.jpeg",   // level past the pyramid
		"/slide_files/-1/0_0.jpeg",   // negative level
		"/slide_files/11/4_0.jpeg",   // column past the grid
		"/slide_files/11/0_4.jpeg",   // row past the grid
		"/slide_files/11/0_0.webp",   // unsupported format
		"/slide_files/11/0_0.jpg",    // abbreviation not accepted
		"/slide_files/abc/0_0.jpeg",  // non-numeric level
		"/slide_files/11/x_y.jpeg",   // non-numeric coordinates
		"/slide_files/11/0-0.jpeg",   // wrong separator
		"/slide_files/11/00.jpeg",    // missing separator
	}
	for _, path := range paths {
		rec := doRequest(t, srv, http.MethodGet, path, nil)
		require.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

// TestAssociatedTileGrid verifies associated pyramids answer under their slug
// with their own geometry.
func TestAssociatedTileGrid(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	// 64x48 image: single-tile pyramid, 7 levels, finest is level 6.
	rec := doRequest(t, srv, http.MethodGet, "/macro-image_files/6/0_0.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = doRequest(t, srv, http.MethodGet, "/macro-image_files/6/1_0.png", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func statusPath(id string) string {
	return run.StatusPathPrefix + id + run.StatusPathSuffix
}

// TestPostStatusTransitions drives the full report lifecycle over HTTP,
// mirroring how a worker interacts with the host: initiation, progress,
// out-of-order progress, completion, and post-terminal rejection.
func TestPostStatusTransitions(t *testing.T) {
	t.Parallel()

	srv, registry := newTestServer(t)
	_, err := registry.Create("run-1")
	require.NoError(t, err)

	post := func(body string) *httptest.ResponseRecorder {
		return doRequest(t, srv, http.MethodPost, statusPath("run-1"), []byte(body))
	}

	rec := post(`{"status":"in_progress","progress":50}`)
	require.Equal(t, http.StatusOK, rec.Code)
	st, err := registry.Get("run-1")
	require.NoError(t, err)
	require.Equal(t, 50, st.Progress)

	// Progress may move backwards; the latest report wins.
	rec = post(`{"status":"in_progress","progress":30}`)
	require.Equal(t, http.StatusOK, rec.Code)
	st, _ = registry.Get("run-1")
	require.Equal(t, 30, st.Progress)

	result := `{"roi":[{"x":1024,"y":1024,"w":100,"h":100,"label":"Label 1","score":0.97}]}`
	rec = post(fmt.Sprintf(`{"status":"completed","result":%s}`, result))
	require.Equal(t, http.StatusOK, rec.Code)
	st, _ = registry.Get("run-1")
	require.Equal(t, run.StatusCompleted, st.Status)
	require.JSONEq(t, result, string(st.Result))

	// Terminal is a sink: any further report is a 400 and changes nothing.
	rec = post(`{"status":"in_progress","progress":10}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "already finished")
	after, _ := registry.Get("run-1")
	require.Equal(t, st, after)
}

// TestPostStatusRejections covers malformed payloads and protocol violations.
func TestPostStatusRejections(t *testing.T) {
	t.Parallel()

	srv, registry := newTestServer(t)
	_, err := registry.Create("run-1")
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		body    string
		wantMsg string
	}{
		{name: "unknown run", id: "ghost", body: `{"status":"in_progress","progress":1}`, wantMsg: "was not started"},
		{name: "not JSON", id: "run-1", body: `{{{`, wantMsg: "invalid JSON"},
		{name: "progress missing", id: "run-1", body: `{"status":"in_progress"}`, wantMsg: "progress"},
		{name: "result missing", id: "run-1", body: `{"status":"completed"}`, wantMsg: "result"},
		{name: "error missing", id: "run-1", body: `{"status":"error"}`, wantMsg: "error"},
		{name: "unknown status", id: "run-1", body: `{"status":"paused"}`, wantMsg: "unknown status"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, statusPath(tc.id), []byte(tc.body))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tc.wantMsg)

			st, err := registry.Get("run-1")
			require.NoError(t, err)
			require.Equal(t, run.StatusInProgress, st.Status)
			require.Zero(t, st.Progress)
		})
	}
}

// TestStatusResponseShape pins the JSON envelope of an accepted report.
func TestStatusResponseShape(t *testing.T) {
	t.Parallel()

	srv, registry := newTestServer(t)
	_, err := registry.Create("run-1")
	require.NoError(t, err)

	rec := doRequest(t, srv, http.MethodPost, statusPath("run-1"), []byte(`{"status":"in_progress","progress":7}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "in_progress", resp["status"])
}
