package operatorhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99souls/atrwac/engine"
	"github.com/99souls/atrwac/engine/models"
)

type fakeHandle struct {
	id, name string
	profit   float64
}

func (h *fakeHandle) ID() string   { return h.id }
func (h *fakeHandle) Name() string { return h.name }
func (h *fakeHandle) Stats() (models.MetricRecord, error) {
	return models.MetricRecord{TotalProfit: h.profit, TotalTrades: 10}, nil
}

type fakeAccessor struct{ handles []*fakeHandle }

func (a *fakeAccessor) GetAllAgents() ([]engine.AgentHandle, error) {
	out := make([]engine.AgentHandle, 0, len(a.handles))
	for _, h := range a.handles {
		out = append(out, h)
	}
	return out, nil
}

func newTestServer(t *testing.T, secret []byte) (*httptest.Server, *engine.Engine) {
	t.Helper()
	acc := &fakeAccessor{handles: []*fakeHandle{{id: "a1", name: "a1", profit: 1}, {id: "a2", name: "a2", profit: 2}}}
	eng, err := engine.New(engine.Config{
		Initial:  engine.Defaults(),
		Accessor: acc,
		StopAgent: func(id string) (bool, error) { return true, nil },
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop() })

	_, handler := NewServer(Options{Engine: eng, JWTSecret: secret})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, eng
}

func signToken(t *testing.T, secret []byte, subject string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestStatusWithNoSecretRequiresNoAuth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestProtectedRouteRejectsMissingBearerTokenWhenSecretConfigured(t *testing.T) {
	srv, _ := newTestServer(t, []byte("shh"))
	resp, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a bearer token, got %d", resp.StatusCode)
	}
}

func TestProtectedRouteAcceptsValidBearerToken(t *testing.T) {
	secret := []byte("shh")
	srv, _ := newTestServer(t, secret)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "operator"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with a valid token, got %d", resp.StatusCode)
	}
}

func TestHealthzIsExemptFromAuth(t *testing.T) {
	srv, _ := newTestServer(t, []byte("shh"))
	resp, err := http.Get(srv.URL + "/api/v1/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected healthz to be reachable without auth, got %d", resp.StatusCode)
	}
}

func TestManualPruneUnknownAgentReturns404(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/agents/ghost/prune", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown agent, got %d", resp.StatusCode)
	}
}

func TestManualPruneKnownAgentSucceeds(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/agents/a1/prune?reason=test", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for a known agent, got %d", resp.StatusCode)
	}
}

func TestRankingsReturnsLiveAgents(t *testing.T) {
	srv, eng := newTestServer(t, nil)
	if _, err := eng.ForceEvaluation(context.Background()); err != nil {
		t.Fatalf("force evaluation: %v", err)
	}
	resp, err := http.Get(srv.URL + "/api/v1/rankings")
	if err != nil {
		t.Fatalf("get rankings: %v", err)
	}
	defer resp.Body.Close()
	var scores []models.AgentScore
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 ranked agents, got %d", len(scores))
	}
}

func TestTargetsListsAllCatalogEntries(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/api/v1/targets")
	if err != nil {
		t.Fatalf("get targets: %v", err)
	}
	defer resp.Body.Close()
	var got []targetInfo
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(targetCatalog) {
		t.Fatalf("expected %d targets, got %d", len(targetCatalog), len(got))
	}
}

func TestResourcesExposesPerSlotAllocations(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/api/v1/resources")
	if err != nil {
		t.Fatalf("get resources: %v", err)
	}
	defer resp.Body.Close()
	var got engine.ResourceSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Allocations) != 2 {
		t.Fatalf("expected 2 per-slot allocations, got %d", len(got.Allocations))
	}
	if got.LiveLanes != 2 {
		t.Fatalf("expected 2 live lanes in the aggregate stats, got %d", got.LiveLanes)
	}
	if got.TotalGPUSlots <= 0 {
		t.Fatalf("expected a positive total GPU slot count, got %d", got.TotalGPUSlots)
	}
}

func TestMetricsRouteBypassesAuth(t *testing.T) {
	srv, _ := newTestServer(t, []byte("s3cr3t"))
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	// No metrics provider is configured in this harness, so NewMetricsHandler's
	// nil fallback serves 404 — the point here is that it's reachable at all
	// without a bearer token (401 would mean it landed in the protected group).
	if resp.StatusCode == http.StatusUnauthorized {
		t.Fatalf("expected /metrics to bypass auth, got 401")
	}
}
