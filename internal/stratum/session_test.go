package stratum

import (
	"net"
	"testing"
	"time"

	"github.com/INT-devs/mining-pool/pkg/log"
)

func testConn(t *testing.T) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return server
}

func testSessionLogger() *log.Logger {
	return log.New("mining-pool-test", "dev", "error", "text")
}

func TestSession_SubscribedAndAuthorizedDefaultsFalse(t *testing.T) {
	s := NewSession("s1", testConn(t), testSessionLogger(), time.Second, time.Second)

	if s.IsSubscribed() {
		t.Error("expected new session to be unsubscribed")
	}
	if s.IsAuthorized() {
		t.Error("expected new session to be unauthorized")
	}
	if s.Difficulty() != 1.0 {
		t.Errorf("expected default difficulty 1.0, got %v", s.Difficulty())
	}
}

func TestSession_SettersRoundtrip(t *testing.T) {
	s := NewSession("s1", testConn(t), testSessionLogger(), time.Second, time.Second)

	s.SetSubscribed(true)
	s.SetAuthorized(true)
	s.SetUsername("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	s.SetWorkerName("rig1")
	s.SetExtraNonce1("deadbeef")
	s.SetDifficulty(512)
	s.SetMinerID(7)
	s.SetWorkerID(9)

	if !s.IsSubscribed() || !s.IsAuthorized() {
		t.Error("expected subscribed and authorized to be true")
	}
	if s.Username() != "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa" {
		t.Errorf("unexpected username %v", s.Username())
	}
	if s.WorkerName() != "rig1" {
		t.Errorf("unexpected worker name %v", s.WorkerName())
	}
	if s.ExtraNonce1() != "deadbeef" {
		t.Errorf("unexpected extranonce1 %v", s.ExtraNonce1())
	}
	if s.Difficulty() != 512 {
		t.Errorf("unexpected difficulty %v", s.Difficulty())
	}
	if s.MinerID() != 7 || s.WorkerID() != 9 {
		t.Errorf("unexpected miner/worker id %v/%v", s.MinerID(), s.WorkerID())
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s := NewSession("s1", testConn(t), testSessionLogger(), time.Second, time.Second)
	s.Close()
	s.Close() // must not panic on double-close
}
