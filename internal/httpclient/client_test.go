package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequest_GetDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing accept header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"4":{"Marketplace":["0x01"]}}`))
	}))
	defer srv.Close()

	c, err := NewInstrumentedClient(
		WithProviderName("artifacts"),
		WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out map[string]map[string][]string
	resp, err := c.NewRequest().SetResult(&out).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if out["4"]["Marketplace"][0] != "0x01" {
		t.Errorf("unexpected result %v", out)
	}
}

func TestRequest_ErrorHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewInstrumentedClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := c.NewRequest(WithResponseErrorHandler(StatusErrorHandler)).Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if resp == nil || !resp.IsError() {
		t.Errorf("expected error response, got %+v", resp)
	}
}

func TestStdClient_IsInstrumented(t *testing.T) {
	c, err := NewInstrumentedClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.StdClient() == nil || c.StdClient().Transport == nil {
		t.Error("expected instrumented transport")
	}
}
