package hash

import (
	"strings"
	"testing"
)

func TestPasswordVerify(t *testing.T) {
	phc, err := Password("Str0ng!pass")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if !strings.HasPrefix(phc, "$argon2id$v=19$") {
		t.Fatalf("unexpected phc form: %s", phc)
	}
	if !Verify(phc, "Str0ng!pass") {
		t.Fatal("expected verify success")
	}
	if Verify(phc, "wrong") {
		t.Fatal("expected verify failure for wrong password")
	}
}

func TestHashesAreSalted(t *testing.T) {
	a, err := Password("same")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Password("same")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	for _, phc := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=3,p=1$YWJj$YWJj",
		"$argon2id$v=18$m=65536,t=3,p=1$YWJj$YWJj",
		"$argon2id$v=19$m=0,t=0,p=0$YWJj$YWJj",
		"$argon2id$v=19$m=65536,t=3,p=1$!!$YWJj",
	} {
		if Verify(phc, "anything") {
			t.Fatalf("verify accepted malformed phc: %s", phc)
		}
	}
}
