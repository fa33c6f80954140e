package keyring

import (
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestSetAndGetConnectionString(t *testing.T) {
	gokeyring.MockInit()

	testConnStr := "postgres://testuser@localhost:5432/testdb?sslmode=disable"

	if err := SetConnectionString(testConnStr); err != nil {
		t.Fatalf("SetConnectionString() failed: %v", err)
	}

	retrieved, err := GetConnectionString()
	if err != nil {
		t.Fatalf("GetConnectionString() failed: %v", err)
	}

	if retrieved != testConnStr {
		t.Errorf("GetConnectionString() = %q, want %q", retrieved, testConnStr)
	}
}

func TestSetConnectionStringEmpty(t *testing.T) {
	gokeyring.MockInit()

	if err := SetConnectionString(""); err == nil {
		t.Error("SetConnectionString(\"\") should return an error")
	}
}

func TestDeleteConnectionStringNotFound(t *testing.T) {
	gokeyring.MockInit()

	_ = DeleteConnectionString()

	if err := DeleteConnectionString(); err != ErrNotFound {
		t.Errorf("DeleteConnectionString() error = %v, want %v", err, ErrNotFound)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	gokeyring.MockInit()

	if err := SetSession("sqlite", "token-123"); err != nil {
		t.Fatalf("SetSession() failed: %v", err)
	}

	got, err := GetSession("sqlite")
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if got != "token-123" {
		t.Errorf("GetSession() = %q, want %q", got, "token-123")
	}

	// Sessions are scoped per gateway
	if _, err := GetSession("supabase"); err != ErrNotFound {
		t.Errorf("GetSession(other gateway) error = %v, want %v", err, ErrNotFound)
	}

	if err := DeleteSession("sqlite"); err != nil {
		t.Fatalf("DeleteSession() failed: %v", err)
	}
	if _, err := GetSession("sqlite"); err != ErrNotFound {
		t.Errorf("After DeleteSession(), GetSession() error = %v, want %v", err, ErrNotFound)
	}
}

func TestSetSessionEmpty(t *testing.T) {
	gokeyring.MockInit()

	if err := SetSession("sqlite", ""); err == nil {
		t.Error("SetSession with empty blob should return an error")
	}
}

func TestIsAvailable(t *testing.T) {
	gokeyring.MockInit()

	if !IsAvailable() {
		t.Error("IsAvailable() = false, want true in mock mode")
	}
}
