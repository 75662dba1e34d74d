package e2e

import (
	"net/http"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "GET", "/health", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	services, ok := body["services"].(map[string]interface{})
	if !ok {
		t.Fatalf("no services map in response: %v", body)
	}
	if services["tts"] != false {
		t.Errorf("tts should report unconfigured in tests")
	}
}
