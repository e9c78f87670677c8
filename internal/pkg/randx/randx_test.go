package randx

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUserIDFormat(t *testing.T) {
	id, err := UserID()
	if err != nil {
		t.Fatalf("UserID() failed: %v", err)
	}

	if !strings.HasPrefix(id, UserIDPrefix) {
		t.Errorf("Expected prefix %q in %q", UserIDPrefix, id)
	}

	raw := strings.TrimPrefix(id, UserIDPrefix)
	if len(raw) != UserIDRawLength {
		t.Errorf("Expected %d random characters, got %d", UserIDRawLength, len(raw))
	}
	for _, c := range raw {
		if !strings.ContainsRune(Base62Chars, c) {
			t.Errorf("Unexpected character %q in %q", c, id)
		}
	}
}

func TestUserIDsDiffer(t *testing.T) {
	first, _ := UserID()
	second, _ := UserID()

	if first == second {
		t.Errorf("Two generated IDs collided: %s", first)
	}
}

func TestNicknameFormat(t *testing.T) {
	name, err := Nickname()
	if err != nil {
		t.Fatalf("Nickname() failed: %v", err)
	}

	if !strings.HasPrefix(name, NicknamePrefix) || len(name) != len(NicknamePrefix)+NicknameRawLength {
		t.Errorf("Unexpected nickname %q", name)
	}
}

func TestPeerIDIsUUID(t *testing.T) {
	if _, err := uuid.Parse(PeerID()); err != nil {
		t.Errorf("PeerID() is not a UUID: %v", err)
	}
}
