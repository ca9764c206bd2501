package bridge

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"adslink/config"
)

func testTargetConfig(name string) *config.TargetConfig {
	return &config.TargetConfig{
		Name:    name,
		Enabled: true,
		Address: "192.168.1.100",
		Subscriptions: []config.SubscriptionConfig{
			{Symbol: "MAIN.nCount", Length: 4},
			{Symbol: "MAIN.bEnable", Length: 1, Mode: config.SubscriptionModeCyclic, CycleTime: 100 * time.Millisecond},
		},
	}
}

func TestConnectionStatusString(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "Disconnected"},
		{StatusConnecting, "Connecting"},
		{StatusConnected, "Connected"},
		{StatusError, "Error"},
		{ConnectionStatus(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("status %d: expected %q, got %q", tt.status, tt.want, got)
		}
	}
}

func TestManagerTargetOperations(t *testing.T) {
	m := NewManager()

	if err := m.AddTarget(testTargetConfig("plc1")); err != nil {
		t.Fatalf("AddTarget: %v", err)
	}

	target := m.GetTarget("plc1")
	if target == nil {
		t.Fatal("expected target after add")
	}
	if target.GetStatus() != StatusDisconnected {
		t.Errorf("new target should be disconnected, got %v", target.GetStatus())
	}

	// Duplicate add is a no-op
	if err := m.AddTarget(testTargetConfig("plc1")); err != nil {
		t.Fatalf("duplicate AddTarget: %v", err)
	}
	if len(m.ListTargets()) != 1 {
		t.Errorf("expected 1 target, got %d", len(m.ListTargets()))
	}

	if err := m.RemoveTarget("plc1"); err != nil {
		t.Fatalf("RemoveTarget: %v", err)
	}
	if m.GetTarget("plc1") != nil {
		t.Error("expected nil target after removal")
	}
}

func TestManagerLoadFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Targets = []config.TargetConfig{
		*testTargetConfig("plc1"),
		*testTargetConfig("plc2"),
	}

	m := NewManager()
	m.LoadFromConfig(cfg)

	if len(m.ListTargets()) != 2 {
		t.Errorf("expected 2 targets, got %d", len(m.ListTargets()))
	}
}

func TestSymbolWritable(t *testing.T) {
	m := NewManager()
	m.AddTarget(testTargetConfig("plc1"))

	if !m.SymbolWritable("plc1", "MAIN.nCount") {
		t.Error("subscribed symbol should be writable")
	}
	if m.SymbolWritable("plc1", "MAIN.sOther") {
		t.Error("unsubscribed symbol should not be writable")
	}
	if m.SymbolWritable("nope", "MAIN.nCount") {
		t.Error("unknown target should not be writable")
	}
}

func TestWriteSymbolNotConnected(t *testing.T) {
	m := NewManager()
	m.AddTarget(testTargetConfig("plc1"))

	if err := m.WriteSymbol("plc1", "MAIN.nCount", []byte{1, 0, 0, 0}); err == nil {
		t.Error("expected error writing to disconnected target")
	}
	if err := m.WriteSymbol("nope", "MAIN.nCount", []byte{1}); err == nil {
		t.Error("expected error writing to unknown target")
	}
}

func TestReadSymbolNotConnected(t *testing.T) {
	m := NewManager()
	m.AddTarget(testTargetConfig("plc1"))

	if _, err := m.ReadSymbol("plc1", "MAIN.nCount", 4); err == nil {
		t.Error("expected error reading from disconnected target")
	}
}

func TestBatchedValueChanges(t *testing.T) {
	m := NewManager()
	m.AddTarget(testTargetConfig("plc1"))

	var mu sync.Mutex
	var received []ValueChange
	m.SetOnValueChange(func(changes []ValueChange) {
		mu.Lock()
		received = append(received, changes...)
		mu.Unlock()
	})

	m.Start()
	defer m.Stop()

	ts := time.Now()
	m.sendChanges([]ValueChange{
		{Target: "plc1", Symbol: "MAIN.nCount", Data: []byte{1, 0, 0, 0}, Timestamp: ts},
	})
	m.sendChanges([]ValueChange{
		{Target: "plc1", Symbol: "MAIN.bEnable", Data: []byte{1}, Timestamp: ts},
	})

	// Changes are flushed on the batch interval
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected 2 changes, got %d", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if received[0].Symbol != "MAIN.nCount" || !bytes.Equal(received[0].Data, []byte{1, 0, 0, 0}) {
		t.Errorf("unexpected first change: %+v", received[0])
	}
	if received[1].Symbol != "MAIN.bEnable" {
		t.Errorf("unexpected second change: %+v", received[1])
	}
}

func TestGetAllCurrentValues(t *testing.T) {
	m := NewManager()
	m.AddTarget(testTargetConfig("plc1"))

	target := m.GetTarget("plc1")
	ts := time.Now()
	target.mu.Lock()
	target.Values["MAIN.nCount"] = &SymbolValue{
		Symbol:    "MAIN.nCount",
		Data:      []byte{42, 0, 0, 0},
		Timestamp: ts,
	}
	target.mu.Unlock()

	values := m.GetAllCurrentValues()
	if len(values) != 1 {
		t.Fatalf("expected 1 value, got %d", len(values))
	}
	if values[0].Target != "plc1" || values[0].Symbol != "MAIN.nCount" {
		t.Errorf("unexpected value: %+v", values[0])
	}
	if !bytes.Equal(values[0].Data, []byte{42, 0, 0, 0}) {
		t.Errorf("unexpected data: %v", values[0].Data)
	}
}

func TestHealthCallback(t *testing.T) {
	m := NewManager()
	m.AddTarget(testTargetConfig("plc1"))

	var mu sync.Mutex
	type health struct {
		target string
		online bool
		status string
	}
	var events []health
	m.SetOnHealthChange(func(target string, online bool, status, errMsg string) {
		mu.Lock()
		events = append(events, health{target, online, status})
		mu.Unlock()
	})

	// Disconnecting an already-disconnected target still reports offline
	m.Disconnect("plc1")

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("expected 1 health event, got %d", len(events))
	}
	if events[0].target != "plc1" || events[0].online {
		t.Errorf("unexpected health event: %+v", events[0])
	}
	if events[0].status != "Disconnected" {
		t.Errorf("expected status 'Disconnected', got %q", events[0].status)
	}
}

func TestSampleStatsAggregation(t *testing.T) {
	m := NewManager()
	m.AddTarget(testTargetConfig("plc1"))

	target := m.GetTarget("plc1")
	ts := time.Now()
	target.mu.Lock()
	target.Values["MAIN.nCount"] = &SymbolValue{Symbol: "MAIN.nCount", Data: []byte{1}, Timestamp: ts}
	target.LastSample = ts
	target.mu.Unlock()

	m.aggregateStats()

	stats := m.GetSampleStats()
	if stats.SamplesSeen != 1 {
		t.Errorf("expected 1 sample seen, got %d", stats.SamplesSeen)
	}
	if !stats.LastSampleTime.Equal(ts) {
		t.Errorf("expected last sample time %v, got %v", ts, stats.LastSampleTime)
	}
}
