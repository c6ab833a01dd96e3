package util

import "testing"

func TestOwnerKey(t *testing.T) {
	got := OwnerKey("user-42")
	if got != OwnerKey("  user-42 ") {
		t.Fatalf("expected key to ignore surrounding space, got %s", got)
	}
	if len(got) != ownerKeyLen {
		t.Fatalf("expected %d hex characters, got %d", ownerKeyLen, len(got))
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("key contains non-hex character: %c", ch)
		}
	}
	if got == OwnerKey("user-43") {
		t.Fatalf("distinct users must not share a key")
	}
	if OwnerKey("") != AnonymousOwner || OwnerKey("   ") != AnonymousOwner {
		t.Fatalf("blank ids should map to %q", AnonymousOwner)
	}
}
