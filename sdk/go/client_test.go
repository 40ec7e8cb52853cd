package wardlinesdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientRequestShape(t *testing.T) {
	var gotPath, gotAuth, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("X-Api-Key")
		json.NewEncoder(w).Encode(Calling{ID: "c-1", Title: "Ward Clerk"})
	}))
	defer srv.Close()

	// trailing slash on the base URL must not double up
	c := New(srv.URL + "/")
	c.BearerToken = "tok"

	calling, err := c.CreateCalling(context.Background(), "Ward Clerk", "")
	if err != nil {
		t.Fatalf("create calling: %v", err)
	}
	if calling.ID != "c-1" {
		t.Fatalf("unexpected calling %+v", calling)
	}
	if gotPath != "/v1/callings" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer tok" || gotKey != "" {
		t.Fatalf("unexpected auth headers %q / %q", gotAuth, gotKey)
	}

	// API key is used only when no bearer token is set
	c.BearerToken = ""
	c.APIKey = "wdk_secret"
	if _, err := c.Callings(context.Background(), 5, ""); err != nil {
		t.Fatalf("list callings: %v", err)
	}
	if gotKey != "wdk_secret" || gotAuth != "" {
		t.Fatalf("unexpected auth headers %q / %q", gotAuth, gotKey)
	}
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"not_found"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.ProcessTimeline(context.Background(), "missing")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status %d", apiErr.StatusCode)
	}
}
