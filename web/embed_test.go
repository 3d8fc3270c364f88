package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":      {Data: []byte("<html>index</html>")},
		"assets/app-1.js": {Data: []byte("console.log(1)")},
	}
}

func TestSPAHandlerServesFiles(t *testing.T) {
	h := spaHandler(testFS())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets/app-1.js", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Cache-Control"), "immutable") {
		t.Errorf("Expected immutable cache header, got %q", w.Header().Get("Cache-Control"))
	}
}

func TestSPAHandlerFallsBackToIndex(t *testing.T) {
	h := spaHandler(testFS())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/faq/pricing", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "index") {
		t.Errorf("Expected index.html, got %q", w.Body.String())
	}
}

func TestSPAHandlerUnknownAPIRoute(t *testing.T) {
	h := spaHandler(testFS())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON, got %q", ct)
	}
}

func TestSPAHandlerEmbeddedIndex(t *testing.T) {
	w := httptest.NewRecorder()
	SPAHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ShikshAq") {
		t.Error("Expected embedded index.html")
	}
}
