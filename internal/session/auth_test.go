package session

import (
	"path/filepath"
	"testing"

	"github.com/SrClauss/agapp-messaging/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestAuthRoundTrip(t *testing.T) {
	db := testDB(t)

	want := &Auth{Token: "tok-abc", UserID: "client-001", ActiveRole: "client"}
	if err := SaveAuth(db, want); err != nil {
		t.Fatalf("SaveAuth() error = %v", err)
	}

	got, err := LoadAuth(db)
	if err != nil {
		t.Fatalf("LoadAuth() error = %v", err)
	}
	if got == nil || *got != *want {
		t.Errorf("LoadAuth() = %+v, want %+v", got, want)
	}
}

func TestLoadAuthEmpty(t *testing.T) {
	db := testDB(t)

	got, err := LoadAuth(db)
	if err != nil {
		t.Fatalf("LoadAuth() error = %v", err)
	}
	if got != nil {
		t.Errorf("LoadAuth() = %+v, want nil when nothing stored", got)
	}
}

func TestClearAuth(t *testing.T) {
	db := testDB(t)

	if err := SaveAuth(db, &Auth{Token: "t", UserID: "u", ActiveRole: "professional"}); err != nil {
		t.Fatal(err)
	}
	if err := ClearAuth(db); err != nil {
		t.Fatalf("ClearAuth() error = %v", err)
	}

	got, err := LoadAuth(db)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("LoadAuth() after clear = %+v, want nil", got)
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"main", "work-1", "a_b"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) error = %v", name, err)
		}
	}

	invalid := []string{"", "UPPER", "has space", "dot.dot"}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) expected error", name)
		}
	}
}
