package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Fatal("Registry should not be nil")
	}
	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/top/anime", "/top/anime"},
		{"/anime/21", "/anime/{id}"},
		{"/anime/21/characters", "/anime/{id}/characters"},
		{"manga/13/recommendations/", "/manga/{id}/recommendations"},
		{"/seasons/2024/spring", "/seasons/{id}/spring"},
		{"/anime/21abc", "/anime/21abc"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := EndpointLabel(tt.path); got != tt.want {
				t.Errorf("EndpointLabel(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
