package conversation

import (
	"testing"
	"time"

	"github.com/zhouzirui/z-helpdesk/backend/internal/model/helpdesk"
)

func TestNewSessionStartsAwaitingID(t *testing.T) {
	s := NewSession("abc", time.Now())
	if s.State != StateAwaitID {
		t.Fatalf("expected %s, got %s", StateAwaitID, s.State)
	}
	if s.Authenticated() {
		t.Fatal("new session must not be authenticated")
	}
}

func TestStateValid(t *testing.T) {
	if !StateFAQ.Valid() {
		t.Fatal("FAQ should be valid")
	}
	if State("WAIT_MATRICULA").Valid() {
		t.Fatal("unexpected state accepted")
	}
}

func TestAuthenticateClearsPending(t *testing.T) {
	s := NewSession("abc", time.Now())
	s.SetPending(PendingEmployeeID, "1234")
	s.Authenticate(helpdesk.Profile{EmployeeID: "1234", Name: "Ana"})

	if !s.Authenticated() || s.EmployeeID != "1234" {
		t.Fatalf("unexpected auth state: %+v", s)
	}
	if len(s.PendingFields) != 0 {
		t.Fatalf("pending fields not cleared: %v", s.PendingFields)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSession("abc", time.Now())
	s.Authenticate(helpdesk.Profile{EmployeeID: "1", Name: "Ana"})
	s.SetPending("k", "v")

	c := s.Clone()
	c.Profile.Name = "Bia"
	c.PendingFields["k"] = "changed"

	if s.Profile.Name != "Ana" || s.PendingFields["k"] != "v" {
		t.Fatal("clone shares state with original")
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	s := NewSession("abc", now.Add(-16*time.Minute))
	if !s.Expired(now, 15*time.Minute) {
		t.Fatal("expected expired")
	}
	if s.Expired(now, 0) {
		t.Fatal("zero ttl never expires")
	}
}
