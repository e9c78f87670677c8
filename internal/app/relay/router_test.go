package relay

import (
	"slices"
	"testing"
	"time"

	"relaychat/internal/app/protocol"
)

func TestJoinAnnouncesPresenceToEveryConnection(t *testing.T) {
	registry, router := newTestRouter()
	alice, bob := newFakePeer("a"), newFakePeer("b")

	sa := openSession(registry, router, alice)
	openSession(registry, router, bob)

	sa.HandleFrame([]byte(`{"type":"join","userId":"u1","username":"alice"}`))

	for _, p := range []*fakePeer{alice, bob} {
		lists := p.received(t, "userList")
		if len(lists) != 1 {
			t.Fatalf("Peer %s expected 1 userList, got %d", p.id, len(lists))
		}
		if got := users(t, lists[0]); !slices.Equal(got, []string{"u1"}) {
			t.Errorf("Peer %s expected users [u1], got %v", p.id, got)
		}
		if count(lists[0]) != 2 {
			t.Errorf("Peer %s expected count 2, got %d", p.id, count(lists[0]))
		}
	}

	id, ok := sa.Identity()
	if !ok || id.UserID != "u1" || id.DisplayName != "alice" {
		t.Errorf("Session identity not bound: %+v", id)
	}
}

func TestMessageIsStampedAndRelayedToSender(t *testing.T) {
	registry, router := newTestRouter()
	fixed := time.Date(2026, 10, 16, 9, 30, 0, 123456789, time.UTC)
	router.now = func() time.Time { return fixed }

	alice, bob := newFakePeer("a"), newFakePeer("b")
	sa := openSession(registry, router, alice)
	openSession(registry, router, bob)

	sa.HandleFrame([]byte(`{"type":"message","userId":"u1","username":"alice","text":"hi","timestamp":"1999-01-01T00:00:00.000Z"}`))

	for _, p := range []*fakePeer{alice, bob} {
		msgs := p.received(t, "message")
		if len(msgs) != 1 {
			t.Fatalf("Peer %s expected 1 message, got %d", p.id, len(msgs))
		}
		m := msgs[0]
		if m["text"] != "hi" || m["userId"] != "u1" || m["username"] != "alice" {
			t.Errorf("Peer %s got unexpected message %v", p.id, m)
		}
		if m["timestamp"] != "2026-10-16T09:30:00.123Z" {
			t.Errorf("Client timestamp must be replaced by server time, got %v", m["timestamp"])
		}
	}
}

func TestMessageTimestampIsNotBeforeReceipt(t *testing.T) {
	registry, router := newTestRouter()
	alice := newFakePeer("a")
	sa := openSession(registry, router, alice)

	before := time.Now().Truncate(time.Millisecond)
	sa.HandleFrame([]byte(`{"type":"message","userId":"u1","username":"alice","text":"hi"}`))

	msgs := alice.received(t, "message")
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}

	ts, err := protocol.ParseTimestamp(msgs[0]["timestamp"].(string))
	if err != nil {
		t.Fatalf("Invalid timestamp: %v", err)
	}
	if ts.Before(before) {
		t.Errorf("Timestamp %v is before receipt %v", ts, before)
	}
}

func TestMessageFromUnjoinedConnectionIsRelayed(t *testing.T) {
	registry, router := newTestRouter()
	silent, other := newFakePeer("s"), newFakePeer("o")

	ss := openSession(registry, router, silent)
	openSession(registry, router, other)

	ss.HandleFrame([]byte(`{"type":"message","userId":"ghost","username":"ghost","text":"boo"}`))

	if len(other.received(t, "message")) != 1 {
		t.Error("Message from an unjoined connection should still be relayed")
	}
}

func TestEncryptedFieldsPassThrough(t *testing.T) {
	registry, router := newTestRouter()
	alice := newFakePeer("a")
	sa := openSession(registry, router, alice)

	sa.HandleFrame([]byte(`{"type":"message","userId":"u1","username":"alice","text":"","encrypted":"Y2lwaGVy","senderPublicKey":"cGs="}`))

	msgs := alice.received(t, "message")
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	if msgs[0]["encrypted"] != "Y2lwaGVy" || msgs[0]["senderPublicKey"] != "cGs=" {
		t.Errorf("Encrypted payload altered: %v", msgs[0])
	}
}

func TestTypingRelayedInOrder(t *testing.T) {
	registry, router := newTestRouter()
	alice, bob := newFakePeer("a"), newFakePeer("b")
	sa := openSession(registry, router, alice)
	openSession(registry, router, bob)

	sa.HandleFrame([]byte(`{"type":"typing","userId":"u1","username":"alice","isTyping":true}`))
	sa.HandleFrame([]byte(`{"type":"typing","userId":"u1","username":"alice","isTyping":false}`))

	frames := bob.received(t, "typing")
	if len(frames) != 2 {
		t.Fatalf("Expected 2 typing frames, got %d", len(frames))
	}
	if frames[0]["isTyping"] != true || frames[1]["isTyping"] != false {
		t.Errorf("Typing frames out of order: %v", frames)
	}
	if _, stamped := frames[0]["timestamp"]; stamped {
		t.Error("Typing frames must not carry a timestamp")
	}
}

func TestMalformedFramesAreIgnored(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `not json`},
		{"join without userId", `{"type":"join","username":"x"}`},
		{"typing without isTyping", `{"type":"typing","userId":"u1"}`},
		{"typing with string isTyping", `{"type":"typing","userId":"u1","isTyping":"yes"}`},
		{"unknown type", `{"type":"shout","text":"HEY"}`},
		{"missing type", `{"text":"hi"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, router := newTestRouter()
			p := newFakePeer("p")
			s := openSession(registry, router, p)

			s.HandleFrame([]byte(tt.raw))

			if len(p.frames) != 0 {
				t.Errorf("Expected no frames, got %d", len(p.frames))
			}
			if registry.Joined() != 0 {
				t.Errorf("Expected no joined users, got %d", registry.Joined())
			}
			if _, ok := s.Identity(); ok {
				t.Error("Malformed frame bound an identity")
			}
		})
	}
}

func TestCloseWithoutJoinDoesNotAnnounce(t *testing.T) {
	registry, router := newTestRouter()
	silent, watcher := newFakePeer("s"), newFakePeer("w")
	ss := openSession(registry, router, silent)
	openSession(registry, router, watcher)

	registry.Detach(silent)
	ss.Close()

	if n := len(watcher.received(t, "userList")); n != 0 {
		t.Errorf("Expected no presence broadcast, got %d", n)
	}
}

func TestCloseAfterJoinAnnouncesOnce(t *testing.T) {
	registry, router := newTestRouter()
	alice, bob := newFakePeer("a"), newFakePeer("b")
	sa := openSession(registry, router, alice)
	sb := openSession(registry, router, bob)

	sa.HandleFrame([]byte(`{"type":"join","userId":"u1","username":"alice"}`))
	sb.HandleFrame([]byte(`{"type":"join","userId":"u2","username":"bob"}`))

	registry.Detach(alice)
	sa.Close()
	sa.Close()

	lists := bob.received(t, "userList")
	if len(lists) != 3 {
		t.Fatalf("Expected 3 userList frames (two joins, one leave), got %d", len(lists))
	}

	last := lists[2]
	if got := users(t, last); !slices.Equal(got, []string{"u2"}) {
		t.Errorf("Expected [u2] after alice left, got %v", got)
	}
	if count(last) != 1 {
		t.Errorf("Expected count 1 after alice left, got %d", count(last))
	}
}

func TestRejoinReplacesIdentity(t *testing.T) {
	registry, router := newTestRouter()
	p := newFakePeer("p")
	s := openSession(registry, router, p)

	s.HandleFrame([]byte(`{"type":"join","userId":"u1","username":"first"}`))
	s.HandleFrame([]byte(`{"type":"join","userId":"u2","username":"second"}`))

	id, _ := s.Identity()
	if id.UserID != "u2" {
		t.Errorf("Expected the latest join to win, got %s", id.UserID)
	}

	registry.Detach(p)
	s.Close()

	if registry.Joined() != 0 {
		t.Errorf("Every user ID bound to the connection should be released, %d remain", registry.Joined())
	}
}

func TestFanOutSkipsClosedAndFailingPeers(t *testing.T) {
	registry, router := newTestRouter()
	ok, closed, failing := newFakePeer("ok"), newFakePeer("closed"), newFakePeer("failing")

	openSession(registry, router, ok)
	openSession(registry, router, closed)
	openSession(registry, router, failing)

	closed.setOpen(false)
	failing.setFailSend(true)

	delivered := router.presence.FanOut([]byte(`{"type":"message","text":"x"}`))

	if delivered != 1 {
		t.Errorf("Expected 1 delivery, got %d", delivered)
	}
	if len(ok.frames) != 1 || len(closed.frames) != 0 || len(failing.frames) != 0 {
		t.Errorf("Unexpected deliveries: ok=%d closed=%d failing=%d",
			len(ok.frames), len(closed.frames), len(failing.frames))
	}
}

func TestAnnounceWithNoUsersSendsEmptyArray(t *testing.T) {
	registry, router := newTestRouter()
	p := newFakePeer("p")
	openSession(registry, router, p)

	router.presence.Announce()

	lists := p.received(t, "userList")
	if len(lists) != 1 {
		t.Fatalf("Expected 1 userList, got %d", len(lists))
	}
	if got := users(t, lists[0]); len(got) != 0 {
		t.Errorf("Expected empty users, got %v", got)
	}
}
