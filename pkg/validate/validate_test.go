package validate

import (
	"strings"
	"testing"
)

func TestEmail(t *testing.T) {
	good := []string{"a@b.co", "user.name+tag@example.com", "x_y-z@sub.domain.org"}
	bad := []string{"", "plain", "@example.com", "a@b", "a b@c.com"}
	for _, s := range good {
		if err := Email(s); err != nil {
			t.Errorf("Email(%q) = %v, want nil", s, err)
		}
	}
	for _, s := range bad {
		if err := Email(s); err == nil {
			t.Errorf("Email(%q) = nil, want error", s)
		}
	}
}

func TestUsername(t *testing.T) {
	if err := Username("admin_01"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range []string{"", "ab", "has space", strings.Repeat("x", 33)} {
		if err := Username(s); err == nil {
			t.Errorf("Username(%q) = nil, want error", s)
		}
	}
}

func TestPhoneOptional(t *testing.T) {
	if err := Phone(""); err != nil {
		t.Fatalf("empty phone should pass: %v", err)
	}
	if err := Phone("+1 (555) 010-2345"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Phone("abc"); err == nil {
		t.Fatal("expected error for letters")
	}
}

func TestName(t *testing.T) {
	if err := Name("Main Drive"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Name("   "); err == nil {
		t.Fatal("expected error for blank name")
	}
	if err := Name(strings.Repeat("n", 65)); err == nil {
		t.Fatal("expected error for overlong name")
	}
}

func TestPassword(t *testing.T) {
	if err := Password("Abcdef1!"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range []string{"", "short1!", "alllower1!", "ALLUPPER1!", "NoDigits!!", "NoSpecial11"} {
		if err := Password(s); err == nil {
			t.Errorf("Password(%q) = nil, want error", s)
		}
	}
}
