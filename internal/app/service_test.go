package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/syncpad/syncpad/internal/core"
	"github.com/syncpad/syncpad/internal/domain"
	"github.com/syncpad/syncpad/internal/store"
)

// fakeConn records every frame fanned out to it.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(core.Frame, len(f))
	copy(cp, f)
	c.frames = append(c.frames, cp)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("Bad frame %q: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) lastOfType(t *testing.T, typ string) map[string]any {
	t.Helper()
	var found map[string]any
	for _, ev := range c.events(t) {
		if ev["type"] == typ {
			found = ev
		}
	}
	return found
}

func (c *fakeConn) countOfType(t *testing.T, typ string) int {
	t.Helper()
	n := 0
	for _, ev := range c.events(t) {
		if ev["type"] == typ {
			n++
		}
	}
	return n
}

func setupService(t *testing.T) (*Service, *store.SQLite) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewService(st, core.NewRegistry(), 100), st
}

func join(t *testing.T, svc *Service, connID, username string, room domain.RoomID) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	id := domain.Identity{UserID: domain.UserID("uid-" + username), Username: username}
	if err := svc.Join(context.Background(), connID, id, room, conn); err != nil {
		t.Fatalf("Join(%s): %v", username, err)
	}
	return conn
}

func rosterNames(t *testing.T, ev map[string]any) []string {
	t.Helper()
	if ev == nil {
		t.Fatal("No roster event received")
	}
	raw, ok := ev["participants"].([]any)
	if !ok {
		t.Fatalf("Bad roster payload: %+v", ev)
	}
	names := make([]string, 0, len(raw))
	for _, p := range raw {
		names = append(names, p.(map[string]any)["username"].(string))
	}
	return names
}

func TestJoinDeliversInitialState(t *testing.T) {
	svc, _ := setupService(t)

	alice := join(t, svc, "c1", "alice", "r1")
	evs := alice.events(t)
	if len(evs) != 4 {
		t.Fatalf("Expected 4 events on join, got %d: %+v", len(evs), evs)
	}

	if evs[0]["type"] != "code-snapshot" || evs[0]["code"] != domain.DefaultCode {
		t.Errorf("Bad code-snapshot: %+v", evs[0])
	}
	if evs[1]["type"] != "language-update" || evs[1]["language"] != domain.DefaultLanguage {
		t.Errorf("Bad language-update: %+v", evs[1])
	}
	if evs[2]["type"] != "chat-history" {
		t.Errorf("Bad chat-history: %+v", evs[2])
	}
	if msgs := evs[2]["messages"].([]any); len(msgs) != 0 {
		t.Errorf("Expected empty history, got %d", len(msgs))
	}
	if got := rosterNames(t, evs[3]); len(got) != 1 || got[0] != "alice" {
		t.Errorf("Expected roster [alice], got %v", got)
	}
}

func TestJoinBroadcastsFullRoster(t *testing.T) {
	svc, _ := setupService(t)

	alice := join(t, svc, "c1", "alice", "r1")
	bob := join(t, svc, "c2", "bob", "r1")

	got := rosterNames(t, alice.lastOfType(t, "room-joined"))
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("Alice sees roster %v, want [alice bob]", got)
	}
	got = rosterNames(t, bob.lastOfType(t, "room-joined"))
	if len(got) != 2 {
		t.Errorf("Bob sees roster %v, want 2 entries", got)
	}
}

func TestDistinctJoinsGrowRosterUniquely(t *testing.T) {
	svc, _ := setupService(t)

	names := []string{"alice", "bob", "carol", "dave"}
	var last *fakeConn
	for _, n := range names {
		last = join(t, svc, "c"+n, n, "r1")
	}

	got := rosterNames(t, last.lastOfType(t, "room-joined"))
	if len(got) != len(names) {
		t.Fatalf("Expected %d roster entries, got %d", len(names), len(got))
	}
	seen := map[string]bool{}
	for _, n := range got {
		if seen[n] {
			t.Errorf("Duplicate roster entry %q", n)
		}
		seen[n] = true
	}
}

func TestRejoinReplacesEntry(t *testing.T) {
	svc, st := setupService(t)

	join(t, svc, "c1", "alice", "r1")
	rejoined := join(t, svc, "c9", "alice", "r1")

	ev := rejoined.lastOfType(t, "room-joined")
	got := rosterNames(t, ev)
	if len(got) != 1 {
		t.Fatalf("Rejoin duplicated roster: %v", got)
	}

	ps, err := st.Participants(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Participants: %v", err)
	}
	if len(ps) != 1 || ps[0].ConnID != "c9" {
		t.Errorf("Expected single entry under conn c9, got %+v", ps)
	}
}

func TestCodeChangeRelaysAndBumpsVersion(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	alice := join(t, svc, "c1", "alice", "r1")
	bob := join(t, svc, "c2", "bob", "r1")

	svc.CodeChange(ctx, "c1", "r1", "print(1)")

	ev := bob.lastOfType(t, "code-update")
	if ev == nil || ev["code"] != "print(1)" {
		t.Errorf("Bob missed code-update: %+v", ev)
	}
	if alice.countOfType(t, "code-update") != 0 {
		t.Error("Originator must not receive its own code-update")
	}

	room, err := st.Room(ctx, "r1")
	if err != nil {
		t.Fatalf("Room: %v", err)
	}
	if room.Version != 1 || room.Code != "print(1)" {
		t.Errorf("Stored state version=%d code=%q", room.Version, room.Code)
	}

	svc.CodeChange(ctx, "c2", "r1", "print(2)")
	room, _ = st.Room(ctx, "r1")
	if room.Version != 2 {
		t.Errorf("Expected version 2 after second change, got %d", room.Version)
	}
}

func TestCodeChangeUnknownRoomIsSilent(t *testing.T) {
	svc, _ := setupService(t)

	alice := join(t, svc, "c1", "alice", "r1")
	before := len(alice.events(t))

	svc.CodeChange(context.Background(), "c1", "ghost", "x")

	if got := len(alice.events(t)); got != before {
		t.Errorf("Unknown-room failure leaked %d events to client", got-before)
	}
}

func TestLanguageChangeRelaysWithoutVersion(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	join(t, svc, "c1", "alice", "r1")
	bob := join(t, svc, "c2", "bob", "r1")

	svc.LanguageChange(ctx, "c1", "r1", "python")

	ev := bob.lastOfType(t, "language-update")
	if ev == nil || ev["language"] != "python" {
		t.Errorf("Bob missed language-update: %+v", ev)
	}

	room, _ := st.Room(ctx, "r1")
	if room.Version != 0 {
		t.Errorf("Language change advanced version to %d", room.Version)
	}
}

func TestChatBroadcastsStoredFormToAll(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	alice := join(t, svc, "c1", "alice", "r1")
	bob := join(t, svc, "c2", "bob", "r1")

	ts := time.Now().UTC().Truncate(time.Millisecond)
	svc.Chat(ctx, domain.Identity{UserID: "uid-bob", Username: "bob"}, "r1", "hi", ts)

	for name, conn := range map[string]*fakeConn{"alice": alice, "bob": bob} {
		ev := conn.lastOfType(t, "chat-message")
		if ev == nil {
			t.Fatalf("%s missed chat-message", name)
		}
		msg := ev["message"].(map[string]any)
		if msg["text"] != "hi" || msg["username"] != "bob" {
			t.Errorf("%s got wrong message: %+v", name, msg)
		}
		if msg["id"].(float64) == 0 {
			t.Errorf("%s got message without stored id", name)
		}
	}
}

func TestChatHistoryReplayOnJoin(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	join(t, svc, "c1", "alice", "r1")
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		svc.Chat(ctx, domain.Identity{UserID: "uid-alice", Username: "alice"}, "r1", "m", base.Add(time.Duration(i)*time.Second))
	}

	bob := join(t, svc, "c2", "bob", "r1")
	ev := bob.lastOfType(t, "chat-history")
	msgs := ev["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 replayed messages, got %d", len(msgs))
	}
	prev := ""
	for i, raw := range msgs {
		ts := raw.(map[string]any)["timestamp"].(string)
		if prev != "" && ts < prev {
			t.Errorf("Replay out of order at %d", i)
		}
		prev = ts
	}
}

func TestCursorRelaysOnlyToOthers(t *testing.T) {
	svc, st := setupService(t)

	alice := join(t, svc, "c1", "alice", "r1")
	bob := join(t, svc, "c2", "bob", "r1")

	svc.Cursor("c1", domain.Identity{UserID: "uid-alice", Username: "alice"}, "r1", json.RawMessage(`{"line":3,"column":7}`))

	ev := bob.lastOfType(t, "cursor-update")
	if ev == nil {
		t.Fatal("Bob missed cursor-update")
	}
	if ev["username"] != "alice" || ev["userId"] != "c1" {
		t.Errorf("Bad cursor attribution: %+v", ev)
	}
	if alice.countOfType(t, "cursor-update") != 0 {
		t.Error("Originator must not receive its own cursor-update")
	}

	// Cursor traffic never reaches the store.
	msgs, _ := st.RecentMessages(context.Background(), "r1", 10)
	if len(msgs) != 0 {
		t.Errorf("Cursor event was persisted: %+v", msgs)
	}
}

func TestSnapshotAcksRequesterOnly(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	alice := join(t, svc, "c1", "alice", "r1")
	bob := join(t, svc, "c2", "bob", "r1")

	svc.Snapshot(ctx, "c1", domain.Identity{UserID: "uid-alice", Username: "alice"}, "r1")
	svc.Snapshot(ctx, "c1", domain.Identity{UserID: "uid-alice", Username: "alice"}, "r1")

	if n := alice.countOfType(t, "snapshot-saved"); n != 2 {
		t.Errorf("Expected 2 acks for requester, got %d", n)
	}
	if ev := alice.lastOfType(t, "snapshot-saved"); ev["success"] != true {
		t.Errorf("Expected success ack, got %+v", ev)
	}
	if n := bob.countOfType(t, "snapshot-saved"); n != 0 {
		t.Errorf("Snapshot ack leaked to the room: %d", n)
	}

	snaps, err := st.SnapshotsByRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("SnapshotsByRoom: %v", err)
	}
	if len(snaps) != 2 {
		t.Errorf("Expected 2 distinct snapshots, got %d", len(snaps))
	}
	if snaps[0].CreatedBy != "alice" {
		t.Errorf("Snapshot attribution %q", snaps[0].CreatedBy)
	}
}

func TestSnapshotFailureIsAcked(t *testing.T) {
	svc, _ := setupService(t)

	alice := join(t, svc, "c1", "alice", "r1")

	svc.Snapshot(context.Background(), "c1", domain.Identity{UserID: "uid-alice", Username: "alice"}, "ghost")

	ev := alice.lastOfType(t, "snapshot-saved")
	if ev == nil {
		t.Fatal("Failure ack was dropped")
	}
	if ev["success"] != false {
		t.Errorf("Expected failure ack, got %+v", ev)
	}
	if msg, _ := ev["error"].(string); msg == "" {
		t.Error("Failure ack missing error description")
	}
}

func TestLeaveRebroadcastsRoster(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	alice := join(t, svc, "c1", "alice", "r1")
	bob := join(t, svc, "c2", "bob", "r1")

	beforeAlice := alice.countOfType(t, "room-joined")
	svc.Leave(ctx, "c1", "r1")

	got := rosterNames(t, bob.lastOfType(t, "room-joined"))
	if len(got) != 1 || got[0] != "bob" {
		t.Errorf("Bob sees roster %v after leave, want [bob]", got)
	}
	if alice.countOfType(t, "room-joined") != beforeAlice {
		t.Error("Departed connection received roster rebroadcast")
	}

	// Last participant out leaves the room record in place.
	svc.Leave(ctx, "c2", "r1")
	room, err := st.Room(ctx, "r1")
	if err != nil {
		t.Fatalf("Room after everyone left: %v", err)
	}
	if len(room.Participants) != 0 {
		t.Errorf("Expected empty roster, got %d", len(room.Participants))
	}
}

func TestStaleDisconnectIsNoOp(t *testing.T) {
	svc, st := setupService(t)
	ctx := context.Background()

	join(t, svc, "c1", "alice", "r1")
	// Reconnect replaces the roster entry under a new connection.
	rejoined := join(t, svc, "c9", "alice", "r1")

	// The old transport finally closes; it must not evict the fresh entry.
	svc.Leave(ctx, "c1", "r1")

	ps, err := st.Participants(ctx, "r1")
	if err != nil {
		t.Fatalf("Participants: %v", err)
	}
	if len(ps) != 1 || ps[0].ConnID != "c9" {
		t.Errorf("Stale disconnect evicted live entry: %+v", ps)
	}
	got := rosterNames(t, rejoined.lastOfType(t, "room-joined"))
	if len(got) != 1 || got[0] != "alice" {
		t.Errorf("Expected roster [alice], got %v", got)
	}
}
