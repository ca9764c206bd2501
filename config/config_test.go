package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if !cfg.Web.Enabled {
		t.Error("expected Web.Enabled true by default")
	}
	if !cfg.Web.UI.Enabled {
		t.Error("expected Web.UI.Enabled true by default")
	}
	if !cfg.Web.API.Enabled {
		t.Error("expected Web.API.Enabled true by default")
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected Web port 8080, got %d", cfg.Web.Port)
	}
	if cfg.Web.Host != "0.0.0.0" {
		t.Errorf("expected Web host 0.0.0.0, got %s", cfg.Web.Host)
	}
	if len(cfg.Targets) != 0 {
		t.Errorf("expected empty Targets slice")
	}
}

func TestLoadAndSave(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("returns default for nonexistent file", func(t *testing.T) {
		cfg, err := Load(filepath.Join(tmpDir, "nonexistent.yaml"))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if !cfg.Web.Enabled {
			t.Error("expected default config")
		}
	})

	t.Run("save and load roundtrip", func(t *testing.T) {
		path := filepath.Join(tmpDir, "test.yaml")

		cfg := &Config{
			Namespace: "plant-1",
			Targets: []TargetConfig{
				{
					Name:    "TestPLC",
					Address: "192.168.1.100",
					NetId:   "192.168.1.100.1.1",
					Port:    851,
					Enabled: true,
					Subscriptions: []SubscriptionConfig{
						{Symbol: "MAIN.nCount", Length: 4, CycleTime: 10 * time.Millisecond},
					},
				},
			},
			MQTT: []MQTTConfig{
				{Name: "TestMQTT", Broker: "mqtt.local", Port: 1883},
			},
		}

		if err := cfg.Save(path); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if loaded.Namespace != "plant-1" {
			t.Errorf("expected namespace 'plant-1', got %s", loaded.Namespace)
		}
		if len(loaded.Targets) != 1 || loaded.Targets[0].Name != "TestPLC" {
			t.Fatal("target config not preserved")
		}
		if loaded.Targets[0].NetId != "192.168.1.100.1.1" {
			t.Errorf("expected NetId '192.168.1.100.1.1', got %s", loaded.Targets[0].NetId)
		}
		subs := loaded.Targets[0].Subscriptions
		if len(subs) != 1 || subs[0].Symbol != "MAIN.nCount" || subs[0].Length != 4 {
			t.Error("subscription config not preserved")
		}
		if subs[0].CycleTime != 10*time.Millisecond {
			t.Errorf("expected 10ms cycle time, got %v", subs[0].CycleTime)
		}
		if len(loaded.MQTT) != 1 || loaded.MQTT[0].Broker != "mqtt.local" {
			t.Error("MQTT config not preserved")
		}
	})

	t.Run("creates directory if needed", func(t *testing.T) {
		path := filepath.Join(tmpDir, "subdir", "nested", "config.yaml")
		cfg := DefaultConfig()

		if err := cfg.Save(path); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Error("config file was not created")
		}
	})

	t.Run("returns error for invalid yaml", func(t *testing.T) {
		path := filepath.Join(tmpDir, "invalid.yaml")
		os.WriteFile(path, []byte("invalid: yaml: content: ["), 0644)

		_, err := Load(path)
		if err == nil {
			t.Error("expected error for invalid YAML")
		}
	})
}

func TestTargetOperations(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("AddTarget and FindTarget", func(t *testing.T) {
		target := TargetConfig{Name: "PLC1", Address: "192.168.1.1"}
		cfg.AddTarget(target)

		found := cfg.FindTarget("PLC1")
		if found == nil {
			t.Fatal("FindTarget returned nil")
		}
		if found.Address != "192.168.1.1" {
			t.Errorf("expected address '192.168.1.1', got %s", found.Address)
		}
	})

	t.Run("FindTarget returns nil for nonexistent", func(t *testing.T) {
		if cfg.FindTarget("nonexistent") != nil {
			t.Error("expected nil for nonexistent target")
		}
	})

	t.Run("UpdateTarget", func(t *testing.T) {
		updated := TargetConfig{Name: "PLC1", Address: "192.168.1.2", Enabled: true}
		if !cfg.UpdateTarget("PLC1", updated) {
			t.Error("UpdateTarget returned false")
		}

		found := cfg.FindTarget("PLC1")
		if found.Address != "192.168.1.2" {
			t.Error("target not updated")
		}
	})

	t.Run("UpdateTarget returns false for nonexistent", func(t *testing.T) {
		if cfg.UpdateTarget("nonexistent", TargetConfig{}) {
			t.Error("expected false for nonexistent target")
		}
	})

	t.Run("RemoveTarget", func(t *testing.T) {
		if !cfg.RemoveTarget("PLC1") {
			t.Error("RemoveTarget returned false")
		}
		if cfg.FindTarget("PLC1") != nil {
			t.Error("target not removed")
		}
	})

	t.Run("RemoveTarget returns false for nonexistent", func(t *testing.T) {
		if cfg.RemoveTarget("nonexistent") {
			t.Error("expected false for nonexistent target")
		}
	})
}

func TestMQTTOperations(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("AddMQTT and FindMQTT", func(t *testing.T) {
		mqtt := MQTTConfig{Name: "Broker1", Broker: "mqtt.local"}
		cfg.AddMQTT(mqtt)

		found := cfg.FindMQTT("Broker1")
		if found == nil {
			t.Fatal("FindMQTT returned nil")
		}
		if found.Broker != "mqtt.local" {
			t.Errorf("expected broker 'mqtt.local', got %s", found.Broker)
		}
	})

	t.Run("UpdateMQTT", func(t *testing.T) {
		updated := MQTTConfig{Name: "Broker1", Broker: "mqtt2.local", Port: 8883}
		if !cfg.UpdateMQTT("Broker1", updated) {
			t.Error("UpdateMQTT returned false")
		}

		found := cfg.FindMQTT("Broker1")
		if found.Port != 8883 {
			t.Error("MQTT not updated")
		}
	})

	t.Run("RemoveMQTT", func(t *testing.T) {
		if !cfg.RemoveMQTT("Broker1") {
			t.Error("RemoveMQTT returned false")
		}
		if cfg.FindMQTT("Broker1") != nil {
			t.Error("MQTT not removed")
		}
	})
}

func TestValkeyOperations(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("AddValkey and FindValkey", func(t *testing.T) {
		valkey := ValkeyConfig{Name: "Redis1", Address: "localhost:6379"}
		cfg.AddValkey(valkey)

		found := cfg.FindValkey("Redis1")
		if found == nil {
			t.Fatal("FindValkey returned nil")
		}
		if found.Address != "localhost:6379" {
			t.Errorf("expected address 'localhost:6379', got %s", found.Address)
		}
	})

	t.Run("UpdateValkey", func(t *testing.T) {
		updated := ValkeyConfig{Name: "Redis1", Address: "redis.local:6380"}
		if !cfg.UpdateValkey("Redis1", updated) {
			t.Error("UpdateValkey returned false")
		}

		found := cfg.FindValkey("Redis1")
		if found.Address != "redis.local:6380" {
			t.Error("Valkey not updated")
		}
	})

	t.Run("RemoveValkey", func(t *testing.T) {
		if !cfg.RemoveValkey("Redis1") {
			t.Error("RemoveValkey returned false")
		}
		if cfg.FindValkey("Redis1") != nil {
			t.Error("Valkey not removed")
		}
	})
}

func TestKafkaOperations(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("AddKafka and FindKafka", func(t *testing.T) {
		kafka := KafkaConfig{Name: "Cluster1", Brokers: []string{"kafka:9092"}}
		cfg.AddKafka(kafka)

		found := cfg.FindKafka("Cluster1")
		if found == nil {
			t.Fatal("FindKafka returned nil")
		}
		if len(found.Brokers) != 1 || found.Brokers[0] != "kafka:9092" {
			t.Errorf("expected brokers ['kafka:9092'], got %v", found.Brokers)
		}
	})

	t.Run("UpdateKafka", func(t *testing.T) {
		updated := KafkaConfig{Name: "Cluster1", Brokers: []string{"kafka1:9092", "kafka2:9092"}}
		if !cfg.UpdateKafka("Cluster1", updated) {
			t.Error("UpdateKafka returned false")
		}

		found := cfg.FindKafka("Cluster1")
		if len(found.Brokers) != 2 {
			t.Error("Kafka not updated")
		}
	})

	t.Run("RemoveKafka", func(t *testing.T) {
		if !cfg.RemoveKafka("Cluster1") {
			t.Error("RemoveKafka returned false")
		}
		if cfg.FindKafka("Cluster1") != nil {
			t.Error("Kafka not removed")
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Namespace = "plant-1"
		cfg.AddTarget(TargetConfig{Name: "PLC1", Address: "192.168.1.1"})
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})

	t.Run("invalid namespace", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Namespace = "has spaces"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for invalid namespace")
		}
	})

	t.Run("target missing name", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AddTarget(TargetConfig{Address: "192.168.1.1"})
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for unnamed target")
		}
	})

	t.Run("target missing address", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AddTarget(TargetConfig{Name: "PLC1"})
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for target without address")
		}
	})
}

func TestNoAutoAdminCreation(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "autoadmin.yaml")

	// Write a config with no users
	os.WriteFile(path, []byte(`
namespace: test
web:
  enabled: true
  host: "0.0.0.0"
  port: 8080
  ui:
    enabled: true
`), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// No auto-admin should be created (setup wizard handles first user)
	if len(cfg.Web.UI.Users) != 0 {
		t.Fatalf("expected 0 users (no auto-admin), got %d", len(cfg.Web.UI.Users))
	}

	// Session secret should still be generated
	if cfg.Web.UI.SessionSecret == "" {
		t.Error("expected session secret to be generated")
	}
}

func TestWebUserOperations(t *testing.T) {
	cfg := DefaultConfig()

	cfg.AddWebUser(WebUser{Username: "alice", Role: RoleAdmin})
	if cfg.FindWebUser("alice") == nil {
		t.Fatal("FindWebUser returned nil")
	}

	if !cfg.UpdateWebUser("alice", WebUser{Username: "alice", Role: RoleViewer}) {
		t.Error("UpdateWebUser returned false")
	}
	if cfg.FindWebUser("alice").Role != RoleViewer {
		t.Error("user not updated")
	}

	if !cfg.RemoveWebUser("alice") {
		t.Error("RemoveWebUser returned false")
	}
	if cfg.FindWebUser("alice") != nil {
		t.Error("user not removed")
	}
}

func TestDefaultPath(t *testing.T) {
	path := DefaultPath()
	if path == "" {
		t.Error("DefaultPath returned empty string")
	}
	if !filepath.IsAbs(path) && path != "config.yaml" {
		t.Error("expected absolute path or 'config.yaml'")
	}
}
