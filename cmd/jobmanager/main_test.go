package main

import (
	"testing"

	"github.com/INT-devs/mining-pool/internal/config"
	"github.com/INT-devs/mining-pool/internal/messaging"
	"github.com/INT-devs/mining-pool/pkg/log"
)

func testLogger() *log.Logger {
	return log.New("mining-pool-test", "dev", "error", "text")
}

func TestNewJobManager(t *testing.T) {
	cfg := &config.Config{KafkaGroupID: "test"}
	kafkaClient := messaging.NewKafkaClient([]string{"localhost:9092"}, testLogger().Logger)
	jm := NewJobManager(cfg, testLogger(), nil, kafkaClient)

	if jm.cfg != cfg {
		t.Error("expected config to be stored")
	}
	if jm.done == nil {
		t.Error("expected done channel to be initialized")
	}
}

func TestJobManager_Shutdown(t *testing.T) {
	cfg := &config.Config{KafkaGroupID: "test"}
	kafkaClient := messaging.NewKafkaClient([]string{"localhost:9092"}, testLogger().Logger)
	jm := NewJobManager(cfg, testLogger(), nil, kafkaClient)

	if err := jm.Shutdown(nil); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	select {
	case <-jm.done:
	default:
		t.Error("expected done channel to be closed")
	}
}

func TestJobManager_archiveJob_requiresRedis(t *testing.T) {
	t.Skip("requires a live Redis connection")
}
