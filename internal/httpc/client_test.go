package httpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostJSON(t *testing.T) {
	var got map[string]float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := PostJSON(context.Background(), nil, srv.URL, map[string]float64{"angle": 1.5}); err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if got["angle"] != 1.5 {
		t.Errorf("server got %v", got)
	}
}

func TestPostJSONStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := PostJSON(context.Background(), NewClient(DefaultTimeout), srv.URL, struct{}{}); err == nil {
		t.Fatal("expected error for 503")
	}
}
