package gateway_test

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"groupgate/internal/gateway"
)

func TestRegistry_PutTake(t *testing.T) {
	r := gateway.NewRegistry(time.Minute, zap.NewNop())
	defer r.Close()

	conn := &fakeConn{}
	handle := r.Put("+15550001111", conn)
	if handle == "" {
		t.Fatal("expected a handle")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	login, ok := r.Take(handle)
	if !ok {
		t.Fatal("Take() did not find the login")
	}
	if login.Phone != "+15550001111" {
		t.Errorf("Phone = %q, want %q", login.Phone, "+15550001111")
	}
	if login.Conn != conn {
		t.Error("Take() returned a different connection")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Take, want 0", r.Len())
	}

	// The handle is gone for good.
	if _, ok := r.Take(handle); ok {
		t.Error("second Take() found a consumed handle")
	}
}

func TestRegistry_UniqueHandles(t *testing.T) {
	r := gateway.NewRegistry(time.Minute, zap.NewNop())
	defer r.Close()

	a := r.Put("+1", &fakeConn{})
	b := r.Put("+1", &fakeConn{})
	if a == b {
		t.Error("handles for separate logins must differ")
	}
}

func TestRegistry_Expiry(t *testing.T) {
	r := gateway.NewRegistry(20*time.Millisecond, zap.NewNop())
	defer r.Close()

	conn := &fakeConn{}
	handle := r.Put("+15550001111", conn)

	deadline := time.Now().Add(time.Second)
	for r.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("entry never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if !closed {
		t.Error("expired login's connection not closed")
	}
	if _, ok := r.Take(handle); ok {
		t.Error("Take() found an expired handle")
	}
}

func TestRegistry_TakeStopsEviction(t *testing.T) {
	r := gateway.NewRegistry(30*time.Millisecond, zap.NewNop())
	defer r.Close()

	conn := &fakeConn{}
	handle := r.Put("+15550001111", conn)
	if _, ok := r.Take(handle); !ok {
		t.Fatal("Take() did not find the login")
	}

	time.Sleep(60 * time.Millisecond)
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if closed {
		t.Error("taken login's connection was closed by the stale timer")
	}
}

func TestRegistry_Restore(t *testing.T) {
	r := gateway.NewRegistry(time.Minute, zap.NewNop())
	defer r.Close()

	conn := &fakeConn{}
	handle := r.Put("+15550001111", conn)

	login, ok := r.Take(handle)
	if !ok {
		t.Fatal("Take() did not find the login")
	}

	r.Restore(login)
	if r.Len() != 1 {
		t.Errorf("Len() = %d after Restore, want 1", r.Len())
	}

	again, ok := r.Take(handle)
	if !ok {
		t.Fatal("Take() did not find the restored login")
	}
	if again.Conn != conn {
		t.Error("restored login carries a different connection")
	}
}

func TestRegistry_RestoreKeepsDeadline(t *testing.T) {
	r := gateway.NewRegistry(40*time.Millisecond, zap.NewNop())
	defer r.Close()

	conn := &fakeConn{}
	handle := r.Put("+15550001111", conn)

	login, ok := r.Take(handle)
	if !ok {
		t.Fatal("Take() did not find the login")
	}
	r.Restore(login)

	// The restored entry expires on the original deadline, not a fresh TTL.
	deadline := time.Now().Add(time.Second)
	for r.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("restored entry never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if !closed {
		t.Error("restored login's connection not closed on expiry")
	}
}

func TestRegistry_RestorePastDeadlineCloses(t *testing.T) {
	r := gateway.NewRegistry(10*time.Millisecond, zap.NewNop())
	defer r.Close()

	conn := &fakeConn{}
	handle := r.Put("+15550001111", conn)
	login, ok := r.Take(handle)
	if !ok {
		t.Fatal("Take() did not find the login")
	}

	time.Sleep(20 * time.Millisecond)
	r.Restore(login)

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (deadline already passed)", r.Len())
	}
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if !closed {
		t.Error("overdue login's connection not closed")
	}
}

func TestRegistry_Close(t *testing.T) {
	r := gateway.NewRegistry(time.Minute, zap.NewNop())

	conns := []*fakeConn{{}, {}, {}}
	for _, c := range conns {
		r.Put("+1", c)
	}
	r.Close()

	if r.Len() != 0 {
		t.Errorf("Len() = %d after Close, want 0", r.Len())
	}
	for i, c := range conns {
		if !c.closed {
			t.Errorf("connection %d not closed", i)
		}
	}
}
