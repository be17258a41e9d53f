package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestSessions(t *testing.T) *Sessions {
	t.Helper()
	hash, err := HashPassword("opensesame")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return NewSessions("test-secret", "admin@example.com", hash, time.Hour)
}

func TestLoginAndVerify(t *testing.T) {
	s := newTestSessions(t)

	token, err := s.Login("Admin@Example.com", "opensesame")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Email != "admin@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestSessions(t)

	if _, err := s.Login("admin@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v", err)
	}
	if _, err := s.Login("other@example.com", "opensesame"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong email: err = %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	s := newTestSessions(t)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	s.SetClock(func() time.Time { return base })
	token, err := s.Login("admin@example.com", "opensesame")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	s.SetClock(func() time.Time { return base.Add(2 * time.Hour) })
	if _, err := s.Verify(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	s := newTestSessions(t)
	other := NewSessions("other-secret", "admin@example.com", "x", time.Hour)

	token, err := s.Login("admin@example.com", "opensesame")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := other.Verify(token); err == nil {
		t.Fatal("token signed with a different secret accepted")
	}
	if _, err := s.Verify("garbage"); err == nil {
		t.Fatal("garbage token accepted")
	}
}
