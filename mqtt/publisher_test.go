package mqtt

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"adslink/config"
)

// TestChangeDetectionLogic tests the core change detection logic directly.
func TestChangeDetectionLogic(t *testing.T) {
	t.Run("identical values should not republish", func(t *testing.T) {
		cache := make(map[string][]byte)
		cache["plc1/MAIN.nCount"] = []byte{1, 0, 0, 0}

		cacheKey := "plc1/MAIN.nCount"
		value := []byte{1, 0, 0, 0}
		force := false

		lastValue, exists := cache[cacheKey]
		shouldPublish := !exists || force || !bytes.Equal(lastValue, value)

		if shouldPublish {
			t.Error("identical value should not republish")
		}
	})

	t.Run("different values should republish", func(t *testing.T) {
		cache := make(map[string][]byte)
		cache["plc1/MAIN.nCount"] = []byte{1, 0, 0, 0}

		cacheKey := "plc1/MAIN.nCount"
		value := []byte{2, 0, 0, 0}
		force := false

		lastValue, exists := cache[cacheKey]
		shouldPublish := !exists || force || !bytes.Equal(lastValue, value)

		if !shouldPublish {
			t.Error("different value should republish")
		}
	})

	t.Run("force flag should override change detection", func(t *testing.T) {
		cache := make(map[string][]byte)
		cache["plc1/MAIN.nCount"] = []byte{1, 0, 0, 0}

		cacheKey := "plc1/MAIN.nCount"
		value := []byte{1, 0, 0, 0}
		force := true

		lastValue, exists := cache[cacheKey]
		shouldPublish := !exists || force || !bytes.Equal(lastValue, value)

		if !shouldPublish {
			t.Error("force flag should override change detection")
		}
	})

	t.Run("new key should always publish", func(t *testing.T) {
		cache := make(map[string][]byte)

		cacheKey := "plc1/MAIN.nCount"
		force := false

		_, exists := cache[cacheKey]
		shouldPublish := !exists || force

		if !shouldPublish {
			t.Error("new key should always publish")
		}
	})

	t.Run("different targets are tracked separately", func(t *testing.T) {
		cache := make(map[string][]byte)
		cache["plc1/MAIN.nCount"] = []byte{1, 0, 0, 0}

		// Different target, same symbol and value
		cacheKey := "plc2/MAIN.nCount"

		_, exists := cache[cacheKey]
		shouldPublish := !exists

		if !shouldPublish {
			t.Error("different targets should be tracked separately")
		}
	})

	t.Run("different symbols are tracked separately", func(t *testing.T) {
		cache := make(map[string][]byte)
		cache["plc1/MAIN.nCount"] = []byte{1, 0, 0, 0}

		// Same target, different symbol
		cacheKey := "plc1/MAIN.fTemp"

		_, exists := cache[cacheKey]
		shouldPublish := !exists

		if !shouldPublish {
			t.Error("different symbols should be tracked separately")
		}
	})
}

// TestSampleMessagePayload tests that the JSON message payload is correct.
func TestSampleMessagePayload(t *testing.T) {
	t.Run("message includes all fields", func(t *testing.T) {
		msg := SampleMessage{
			Namespace: "plant-1",
			Target:    "plc1",
			Symbol:    "MAIN.nCount",
			Data:      []byte{0x2A, 0, 0, 0},
			Size:      4,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}

		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal error: %v", err)
		}

		var decoded map[string]interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal error: %v", err)
		}

		requiredFields := []string{"namespace", "target", "symbol", "data", "size", "timestamp"}
		for _, field := range requiredFields {
			if _, ok := decoded[field]; !ok {
				t.Errorf("missing required field: %s", field)
			}
		}
	})

	t.Run("data is base64 encoded", func(t *testing.T) {
		raw := []byte{0x2A, 0, 0, 0}
		msg := SampleMessage{
			Namespace: "plant-1",
			Target:    "plc1",
			Symbol:    "MAIN.nCount",
			Data:      raw,
			Size:      4,
		}

		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal error: %v", err)
		}

		var decoded map[string]interface{}
		json.Unmarshal(data, &decoded)

		encoded, ok := decoded["data"].(string)
		if !ok {
			t.Fatalf("expected data as string, got %T", decoded["data"])
		}
		if encoded != base64.StdEncoding.EncodeToString(raw) {
			t.Errorf("unexpected encoding: %q", encoded)
		}

		var roundTrip SampleMessage
		if err := json.Unmarshal(data, &roundTrip); err != nil {
			t.Fatalf("unmarshal error: %v", err)
		}
		if !bytes.Equal(roundTrip.Data, raw) {
			t.Errorf("data round trip mismatch: %v", roundTrip.Data)
		}
	})
}

// TestWriteRequestParsing tests decoding of incoming write requests.
func TestWriteRequestParsing(t *testing.T) {
	t.Run("valid request", func(t *testing.T) {
		payload := fmt.Sprintf(`{"target":"plc1","symbol":"MAIN.nCount","data":"%s"}`,
			base64.StdEncoding.EncodeToString([]byte{5, 0, 0, 0}))

		var req WriteRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			t.Fatalf("unmarshal error: %v", err)
		}

		if req.Target != "plc1" || req.Symbol != "MAIN.nCount" {
			t.Errorf("unexpected request: %+v", req)
		}
		if !bytes.Equal(req.Data, []byte{5, 0, 0, 0}) {
			t.Errorf("unexpected data: %v", req.Data)
		}
	})

	t.Run("invalid base64 rejected", func(t *testing.T) {
		var req WriteRequest
		err := json.Unmarshal([]byte(`{"target":"plc1","symbol":"x","data":"!!!"}`), &req)
		if err == nil {
			t.Error("expected error for invalid base64 data")
		}
	})
}

// TestBuildTopic tests topic construction with and without selector.
func TestBuildTopic(t *testing.T) {
	t.Run("without selector", func(t *testing.T) {
		cfg := &config.MQTTConfig{Name: "test"}
		pub := NewPublisher(cfg, "plant-1")

		topic := pub.BuildTopic("plc1", "MAIN.nCount")
		if topic != "plant-1/plc1/symbols/MAIN.nCount" {
			t.Errorf("unexpected topic: %q", topic)
		}
	})

	t.Run("with selector", func(t *testing.T) {
		cfg := &config.MQTTConfig{Name: "test", Selector: "line-2"}
		pub := NewPublisher(cfg, "plant-1")

		topic := pub.BuildTopic("plc1", "MAIN.nCount")
		if topic != "plant-1/line-2/plc1/symbols/MAIN.nCount" {
			t.Errorf("unexpected topic: %q", topic)
		}
	})
}

// TestConcurrentCacheAccess tests thread safety of cache operations.
func TestConcurrentCacheAccess(t *testing.T) {
	cache := make(map[string][]byte)
	var mu sync.RWMutex

	var wg sync.WaitGroup
	targets := []string{"plc1", "plc2", "plc3"}
	symbols := []string{"MAIN.a", "MAIN.b", "MAIN.c"}

	// Write all combinations concurrently
	for _, target := range targets {
		for _, symbol := range symbols {
			wg.Add(1)
			go func(target, symbol string) {
				defer wg.Done()
				key := fmt.Sprintf("%s/%s", target, symbol)

				mu.Lock()
				cache[key] = []byte{1, 0, 0, 0}
				mu.Unlock()
			}(target, symbol)
		}
	}

	wg.Wait()

	mu.RLock()
	defer mu.RUnlock()

	expectedKeys := len(targets) * len(symbols)
	if len(cache) != expectedKeys {
		t.Errorf("expected %d cache entries, got %d", expectedKeys, len(cache))
	}
}

// TestPublisher_NewPublisher tests publisher creation.
func TestPublisher_NewPublisher(t *testing.T) {
	cfg := &config.MQTTConfig{
		Name:    "test",
		Broker:  "localhost",
		Port:    1883,
		Enabled: true,
	}
	pub := NewPublisher(cfg, "plant-1")

	if pub == nil {
		t.Fatal("expected non-nil publisher")
	}
	if pub.Name() != "test" {
		t.Errorf("expected name 'test', got %q", pub.Name())
	}
	if pub.IsRunning() {
		t.Error("new publisher should not be running")
	}
}

// TestPublisher_Address tests address formatting.
func TestPublisher_Address(t *testing.T) {
	t.Run("tcp address", func(t *testing.T) {
		cfg := &config.MQTTConfig{
			Broker: "localhost",
			Port:   1883,
			UseTLS: false,
		}
		pub := NewPublisher(cfg, "test")
		addr := pub.Address()

		if addr != "tcp://localhost:1883" {
			t.Errorf("expected 'tcp://localhost:1883', got %q", addr)
		}
	})

	t.Run("ssl address", func(t *testing.T) {
		cfg := &config.MQTTConfig{
			Broker: "localhost",
			Port:   8883,
			UseTLS: true,
		}
		pub := NewPublisher(cfg, "test")
		addr := pub.Address()

		if addr != "ssl://localhost:8883" {
			t.Errorf("expected 'ssl://localhost:8883', got %q", addr)
		}
	})
}

// TestManagerOperations tests adding, finding, and removing publishers.
func TestManagerOperations(t *testing.T) {
	m := NewManager()

	cfg := &config.MQTTConfig{Name: "broker1", Broker: "localhost", Port: 1883}
	m.Add(NewPublisher(cfg, "plant-1"))

	if m.Get("broker1") == nil {
		t.Fatal("Get returned nil for added publisher")
	}
	if len(m.List()) != 1 {
		t.Errorf("expected 1 publisher, got %d", len(m.List()))
	}
	if m.AnyRunning() {
		t.Error("no publisher should be running")
	}

	m.Remove("broker1")
	if m.Get("broker1") != nil {
		t.Error("publisher not removed")
	}
}

// TestManagerLoadFromConfig tests creating publishers from configuration.
func TestManagerLoadFromConfig(t *testing.T) {
	m := NewManager()
	cfgs := []config.MQTTConfig{
		{Name: "a", Broker: "localhost", Port: 1883},
		{Name: "b", Broker: "mqtt.local", Port: 8883, UseTLS: true},
	}

	m.LoadFromConfig(cfgs, "plant-1")

	if len(m.List()) != 2 {
		t.Fatalf("expected 2 publishers, got %d", len(m.List()))
	}
	if m.Get("b").Address() != "ssl://mqtt.local:8883" {
		t.Errorf("unexpected address: %s", m.Get("b").Address())
	}
}
