package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adslink/bridge"
	"adslink/config"
	"adslink/kafka"
	"adslink/mqtt"
	"adslink/valkey"
)

// testManagers implements the Managers interface for testing.
type testManagers struct {
	cfg    *config.Config
	bridge *bridge.Manager
}

func (m *testManagers) GetConfig() *config.Config      { return m.cfg }
func (m *testManagers) GetConfigPath() string          { return "/tmp/test.yaml" }
func (m *testManagers) GetBridge() *bridge.Manager     { return m.bridge }
func (m *testManagers) GetMQTTMgr() *mqtt.Manager      { return nil }
func (m *testManagers) GetValkeyMgr() *valkey.Manager  { return nil }
func (m *testManagers) GetKafkaMgr() *kafka.Manager    { return nil }

// seedValue plants a cached sample on a target that is not connected.
// The manager is idle in tests, so touching the map directly is safe.
func seedValue(target *bridge.ManagedTarget, symbol string, data []byte) {
	target.Values[symbol] = &bridge.SymbolValue{
		Symbol:    symbol,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *testManagers) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Targets = []config.TargetConfig{{
		Name:    "plc1",
		Enabled: false,
		Address: "192.168.1.100",
		Subscriptions: []config.SubscriptionConfig{
			{Symbol: "MAIN.nCount", Length: 4},
		},
	}}

	b := bridge.NewManager()
	b.LoadFromConfig(cfg)

	managers := &testManagers{cfg: cfg, bridge: b}
	server := httptest.NewServer(NewRouter(managers))
	t.Cleanup(server.Close)
	return server, managers
}

func TestListTargets(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var targets []TargetResponse
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}
	if targets[0].Name != "plc1" {
		t.Errorf("expected name 'plc1', got %q", targets[0].Name)
	}
	if targets[0].Status != "Disconnected" {
		t.Errorf("expected status 'Disconnected', got %q", targets[0].Status)
	}
	if targets[0].Subscriptions != 1 {
		t.Errorf("expected 1 subscription, got %d", targets[0].Subscriptions)
	}
}

func TestTargetDetails(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/plc1/")
	if err != nil {
		t.Fatalf("GET /plc1/: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var target TargetResponse
	if err := json.NewDecoder(resp.Body).Decode(&target); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if target.Name != "plc1" || target.Address != "192.168.1.100" {
		t.Errorf("unexpected target: %+v", target)
	}
}

func TestTargetNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/nope/")
	if err != nil {
		t.Fatalf("GET /nope/: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestTargetHealth(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/plc1/health")
	if err != nil {
		t.Fatalf("GET /plc1/health: %v", err)
	}
	defer resp.Body.Close()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Online {
		t.Error("disconnected target should not report online")
	}
	if health.Status != "Disconnected" {
		t.Errorf("expected status 'Disconnected', got %q", health.Status)
	}
	if _, err := time.Parse(time.RFC3339, health.Timestamp); err != nil {
		t.Errorf("invalid timestamp %q: %v", health.Timestamp, err)
	}
}

func TestAllSymbols(t *testing.T) {
	server, managers := newTestServer(t)

	// Seed a cached value directly
	target := managers.bridge.GetTarget("plc1")
	seedValue(target, "MAIN.nCount", []byte{42, 0, 0, 0})

	resp, err := http.Get(server.URL + "/plc1/symbols")
	if err != nil {
		t.Fatalf("GET /plc1/symbols: %v", err)
	}
	defer resp.Body.Close()

	var symbols map[string]SymbolResponse
	if err := json.NewDecoder(resp.Body).Decode(&symbols); err != nil {
		t.Fatalf("decode: %v", err)
	}

	sym, ok := symbols["plc1.MAIN.nCount"]
	if !ok {
		t.Fatalf("expected key 'plc1.MAIN.nCount', got %v", symbols)
	}
	if !bytes.Equal(sym.Data, []byte{42, 0, 0, 0}) {
		t.Errorf("unexpected data: %v", sym.Data)
	}
	if sym.Size != 4 {
		t.Errorf("expected size 4, got %d", sym.Size)
	}
}

func TestSingleSymbol(t *testing.T) {
	server, managers := newTestServer(t)

	target := managers.bridge.GetTarget("plc1")
	seedValue(target, "MAIN.nCount", []byte{7, 0, 0, 0})

	resp, err := http.Get(server.URL + "/plc1/symbols/MAIN.nCount")
	if err != nil {
		t.Fatalf("GET symbol: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var sym SymbolResponse
	if err := json.NewDecoder(resp.Body).Decode(&sym); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sym.Symbol != "MAIN.nCount" || !bytes.Equal(sym.Data, []byte{7, 0, 0, 0}) {
		t.Errorf("unexpected symbol: %+v", sym)
	}
}

func TestSingleSymbolNotSubscribed(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/plc1/symbols/MAIN.sOther")
	if err != nil {
		t.Fatalf("GET symbol: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestWriteValidation(t *testing.T) {
	server, _ := newTestServer(t)

	post := func(body string) *http.Response {
		resp, err := http.Post(server.URL+"/plc1/write", "application/json", bytes.NewReader([]byte(body)))
		if err != nil {
			t.Fatalf("POST /plc1/write: %v", err)
		}
		return resp
	}

	t.Run("invalid JSON", func(t *testing.T) {
		resp := post(`{"target":`)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("target mismatch", func(t *testing.T) {
		resp := post(`{"target":"other","symbol":"MAIN.nCount","data":"AQ=="}`)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("target not connected", func(t *testing.T) {
		resp := post(`{"target":"plc1","symbol":"MAIN.nCount","data":"AQ=="}`)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", resp.StatusCode)
		}

		var wr WriteResponse
		if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if wr.Success {
			t.Error("write should not succeed on disconnected target")
		}
		if wr.Error != "target not connected" {
			t.Errorf("unexpected error: %q", wr.Error)
		}
	})

	t.Run("unknown target", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/nope/write", "application/json",
			bytes.NewReader([]byte(`{"target":"nope","symbol":"x","data":"AQ=="}`)))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})
}
