package main

import (
	"context"
	"testing"

	"github.com/INT-devs/mining-pool/internal/config"
	"github.com/INT-devs/mining-pool/internal/messaging"
	"github.com/INT-devs/mining-pool/pkg/log"
)

func testLogger() *log.Logger {
	return log.New("mining-pool-test", "dev", "error", "text")
}

func TestNewBlockArchiver(t *testing.T) {
	cfg := &config.Config{KafkaGroupID: "test"}
	kafkaClient := messaging.NewKafkaClient([]string{"localhost:9092"}, testLogger().Logger)
	bs := NewBlockArchiver(cfg, testLogger(), nil, kafkaClient)

	if bs.userCache == nil {
		t.Error("expected user cache to be initialized")
	}
}

func TestBlockArchiver_resolveUser_cacheHit(t *testing.T) {
	cfg := &config.Config{KafkaGroupID: "test"}
	kafkaClient := messaging.NewKafkaClient([]string{"localhost:9092"}, testLogger().Logger)
	bs := NewBlockArchiver(cfg, testLogger(), nil, kafkaClient)
	bs.userCache["1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"] = 9

	id, err := bs.resolveUser(context.Background(), "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	if err != nil {
		t.Fatalf("resolveUser() error = %v", err)
	}
	if id != 9 {
		t.Errorf("resolveUser() = %v, want 9 (cached)", id)
	}
}

func TestBlockArchiver_Shutdown(t *testing.T) {
	cfg := &config.Config{KafkaGroupID: "test"}
	kafkaClient := messaging.NewKafkaClient([]string{"localhost:9092"}, testLogger().Logger)
	bs := NewBlockArchiver(cfg, testLogger(), nil, kafkaClient)

	if err := bs.Shutdown(nil); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	select {
	case <-bs.done:
	default:
		t.Error("expected done channel to be closed")
	}
}
