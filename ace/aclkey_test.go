package ace

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewAclKey_RejectsEmpty(t *testing.T) {
	if _, err := NewAclKey(); !errors.Is(err, ErrEmptyAclKey) {
		t.Fatalf("expected ErrEmptyAclKey, got %v", err)
	}
}

func TestAclKey_IndexRoundTrip(t *testing.T) {
	key := MustAclKey(uuid.New(), uuid.New())

	parsed, err := ParseAclKeyIndex(key.Index())
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.Equal(key) {
		t.Fatalf("round trip lost identity: %s vs %s", parsed, key)
	}
}

func TestParseAclKeyIndex_Invalid(t *testing.T) {
	for _, s := range []string{"", "not-a-uuid", uuid.New().String() + "/nope"} {
		if _, err := ParseAclKeyIndex(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestAclKey_EqualIsStructural(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	if !MustAclKey(a, b).Equal(MustAclKey(a, b)) {
		t.Fatal("identical keys must be equal")
	}
	if MustAclKey(a, b).Equal(MustAclKey(b, a)) {
		t.Fatal("order must matter")
	}
	if MustAclKey(a).Equal(MustAclKey(a, b)) {
		t.Fatal("prefix must not equal longer key")
	}
}

func TestAceExpired(t *testing.T) {
	now := time.Now()
	a := Ace{Value: Value{Permissions: Permissions(Read)}}
	if a.Expired(now) {
		t.Fatal("zero expiry must never expire")
	}
	a.Value.ExpiresAt = now.Add(-time.Second)
	if !a.Expired(now) {
		t.Fatal("past expiry must be expired")
	}
}
