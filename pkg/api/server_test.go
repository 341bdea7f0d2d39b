package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"atm-ledger/pkg/directory"
	"atm-ledger/pkg/ledger"
	ledgermem "atm-ledger/pkg/ledger/memory"
	metricsmem "atm-ledger/pkg/metrics/memory"
	promcollector "atm-ledger/pkg/metrics/prometheus"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func setupTestServer(t *testing.T) (*Server, *directory.Directory) {
	t.Helper()

	collector := metricsmem.NewCollector()
	dir, err := directory.New(directory.Options{
		Store:   ledgermem.NewStore("memory"),
		Policy:  ledger.DefaultPolicy(),
		Metrics: collector,
	})
	if err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	for _, p := range []directory.Provision{
		{Number: "12345", Holder: "John Doe", Type: "Savings", Secret: "1234", InitialBalance: decimal.NewFromInt(5000)},
		{Number: "67890", Holder: "Jane Smith", Type: "Checking", Secret: "5678", InitialBalance: decimal.NewFromInt(3000)},
	} {
		if _, err := dir.AddAccount(context.Background(), p); err != nil {
			t.Fatalf("AddAccount %s failed: %v", p.Number, err)
		}
	}

	registry := prometheus.NewRegistry()
	pc := promcollector.NewCollector("atm")
	if err := pc.Register(registry); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	pc.RecordAuthOutcome("authenticated")

	config := DefaultServerConfig()
	config.Backend = "memory"
	return NewServer(dir, collector, registry, config), dir
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	server, dir := setupTestServer(t)
	defer dir.Close()

	w := serve(server, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(w.Body).Decode(&response)

	if response["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %v", response["status"])
	}
}

func TestServer_Status(t *testing.T) {
	server, dir := setupTestServer(t)
	defer dir.Close()

	w := serve(server, http.MethodGet, "/status")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(w.Body).Decode(&response)

	if response["status"] != "running" {
		t.Errorf("Expected status running, got %v", response["status"])
	}
	if response["accounts"] != float64(2) {
		t.Errorf("Expected 2 accounts, got %v", response["accounts"])
	}
	if response["backend"] != "memory" {
		t.Errorf("Expected backend memory, got %v", response["backend"])
	}
}

func TestServer_Accounts_NoSensitiveFields(t *testing.T) {
	server, dir := setupTestServer(t)
	defer dir.Close()

	w := serve(server, http.MethodGet, "/accounts")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, forbidden := range []string{"balance", "5000", "digest", "pin"} {
		if strings.Contains(strings.ToLower(body), forbidden) {
			t.Errorf("Response leaks %q: %s", forbidden, body)
		}
	}

	var response struct {
		Accounts []directory.Summary `json:"accounts"`
		Count    int                 `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Count != 2 || response.Accounts[0].Number != "12345" || response.Accounts[1].Holder != "Jane Smith" {
		t.Errorf("Unexpected accounts: %+v", response)
	}
}

func TestServer_Account(t *testing.T) {
	server, dir := setupTestServer(t)
	defer dir.Close()

	w := serve(server, http.MethodGet, "/accounts/67890")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var summary directory.Summary
	json.NewDecoder(w.Body).Decode(&summary)
	if summary.Type != "Checking" {
		t.Errorf("Expected Checking, got %q", summary.Type)
	}

	w = serve(server, http.MethodGet, "/accounts/00000")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_PrometheusMetrics(t *testing.T) {
	server, dir := setupTestServer(t)
	defer dir.Close()

	w := serve(server, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `atm_auth_sessions_total{outcome="authenticated"} 1`) {
		t.Errorf("Expected auth session counter in output:\n%s", w.Body.String())
	}
}

func TestServer_MetricsJSON(t *testing.T) {
	server, dir := setupTestServer(t)
	defer dir.Close()

	w := serve(server, http.MethodGet, "/metrics/json")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var snapshot metricsmem.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snapshot); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snapshot.Operations["restore"]["ok"] != 2 {
		t.Errorf("Expected 2 successful restores, got %v", snapshot.Operations)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	server, dir := setupTestServer(t)
	defer dir.Close()

	w := serve(server, http.MethodPost, "/health")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestServer_WithoutOptionalCollectors(t *testing.T) {
	dir, err := directory.New(directory.Options{Store: ledgermem.NewStore("")})
	if err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	server := NewServer(dir, nil, nil, DefaultServerConfig())

	if w := serve(server, http.MethodGet, "/metrics"); w.Code != http.StatusNotFound {
		t.Errorf("Expected /metrics 404 without gatherer, got %d", w.Code)
	}
	if w := serve(server, http.MethodGet, "/metrics/json"); w.Code != http.StatusNotFound {
		t.Errorf("Expected /metrics/json 404 without snapshots, got %d", w.Code)
	}
}
