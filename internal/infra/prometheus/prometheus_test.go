package prometheus

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sifan077/linkbot/config"
)

func TestNewServer_ExposesBotMetrics(t *testing.T) {
	srv := NewServer(config.PrometheusConfig{})
	if srv.Addr != ":9090" {
		t.Fatalf("Addr = %q", srv.Addr)
	}

	UpdatesTotal.WithLabelValues("message", "ok").Inc()

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `linkbot_updates_total{kind="message",result="ok"}`) {
		t.Fatalf("metrics output misses linkbot_updates_total:\n%s", body)
	}
}

func TestObserveDuplicateFilter(t *testing.T) {
	if err := ObserveDuplicateFilter(func() uint32 { return 7 }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := ObserveDuplicateFilter(func() uint32 { return 8 }); err == nil {
		t.Fatal("second registration should fail")
	}

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "linkbot_duplicate_filter_pairs 7") {
		t.Fatalf("metrics output misses linkbot_duplicate_filter_pairs:\n%s", body)
	}
}
