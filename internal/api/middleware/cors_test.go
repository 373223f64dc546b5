package middleware

import (
	"bidding-engine/pkg/logger"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/peterldowns/testy/check"
)

func newRouter(origins []string) *mux.Router {
	r := mux.NewRouter()
	r.Use(CORS(origins, logger.NewNop()))
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet, http.MethodOptions)
	return r
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		method  string
		origin  string
		code    int
		allow   string
	}{
		{"any origin", nil, http.MethodGet, "https://shop.example", http.StatusOK, "*"},
		{"listed origin", []string{"https://shop.example"}, http.MethodGet, "https://shop.example", http.StatusOK, "https://shop.example"},
		{"unlisted origin", []string{"https://shop.example"}, http.MethodGet, "https://evil.example", http.StatusOK, ""},
		{"preflight", nil, http.MethodOptions, "https://shop.example", http.StatusNoContent, "*"},
		{"no origin", nil, http.MethodGet, "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			newRouter(tt.origins).ServeHTTP(rec, req)

			check.Equal(t, tt.code, rec.Code)
			check.Equal(t, tt.allow, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
