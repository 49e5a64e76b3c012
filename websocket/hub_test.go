package websocket

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tutorlinkhq/tutorlink/models"
)

// fakeConn records every event written to it.
type fakeConn struct {
	mu     sync.Mutex
	events []Event
	fail   bool
	closed bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.events = append(f.events, v.(Event))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) received() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

func (f *fakeConn) names() []string {
	var out []string
	for _, ev := range f.received() {
		out = append(out, ev.Event)
	}
	return out
}

func connect(h *Hub) (*Client, *fakeConn) {
	conn := &fakeConn{}
	c := &Client{UserID: uuid.New(), Conn: conn}
	h.Register(c)
	return c, conn
}

func TestEmitIsRoomScoped(t *testing.T) {
	h := NewHub()
	sessionID, otherSession := uuid.New(), uuid.New()

	member, memberConn := connect(h)
	outsider, outsiderConn := connect(h)
	h.Join(sessionID, member)
	h.Join(otherSession, outsider)

	h.Emit(sessionID, uuid.Nil, Event{Event: EventNewMessage, Payload: "hi"})

	got := memberConn.names()
	if len(got) != 1 || got[0] != EventNewMessage {
		t.Fatalf("member received %v, want [%s]", got, EventNewMessage)
	}
	for _, ev := range outsiderConn.names() {
		if ev == EventNewMessage {
			t.Fatal("event leaked into another session's room")
		}
	}
}

func TestEmitExcludesSender(t *testing.T) {
	h := NewHub()
	sessionID := uuid.New()

	sender, senderConn := connect(h)
	peer, peerConn := connect(h)
	h.Join(sessionID, sender)
	h.Join(sessionID, peer)

	h.Emit(sessionID, sender.UserID, Event{Event: EventUserTyping, Payload: "..."})

	for _, ev := range senderConn.names() {
		if ev == EventUserTyping {
			t.Fatal("sender received its own event")
		}
	}
	found := false
	for _, ev := range peerConn.names() {
		if ev == EventUserTyping {
			found = true
		}
	}
	if !found {
		t.Fatalf("peer received %v, want %s among them", peerConn.names(), EventUserTyping)
	}
}

func TestJoinLeaveAnnouncements(t *testing.T) {
	h := NewHub()
	sessionID := uuid.New()

	first, firstConn := connect(h)
	second, _ := connect(h)
	h.Join(sessionID, first)
	h.Join(sessionID, second)

	names := firstConn.names()
	if len(names) != 1 || names[0] != EventUserJoined {
		t.Fatalf("first member saw %v, want [%s]", names, EventUserJoined)
	}

	h.Leave(sessionID, second)
	names = firstConn.names()
	if len(names) != 2 || names[1] != EventUserLeft {
		t.Fatalf("first member saw %v, want leave announcement", names)
	}
}

func TestEmitToUserWithoutRoom(t *testing.T) {
	h := NewHub()
	c, conn := connect(h)

	h.EmitToUser(c.UserID, Event{Event: EventNewSessionRequest, Payload: "req"})
	if got := conn.names(); len(got) != 1 || got[0] != EventNewSessionRequest {
		t.Fatalf("got %v, want [%s]", got, EventNewSessionRequest)
	}

	// Emitting to a user who never connected is a no-op.
	h.EmitToUser(uuid.New(), Event{Event: EventNewSessionRequest})
}

func TestDeadConnectionEvicted(t *testing.T) {
	h := NewHub()
	sessionID := uuid.New()

	dead, deadConn := connect(h)
	deadConn.fail = true
	live, liveConn := connect(h)
	h.Join(sessionID, dead)
	h.Join(sessionID, live)

	h.Emit(sessionID, uuid.Nil, Event{Event: EventNewMessage, Payload: "hi"})

	if !deadConn.closed {
		t.Fatal("failed connection should be closed")
	}
	// The dead client is out of the room: further emits only reach the
	// live one, with no repeated write attempts.
	h.Emit(sessionID, uuid.Nil, Event{Event: EventNewMessage, Payload: "again"})

	count := 0
	for _, ev := range liveConn.names() {
		if ev == EventNewMessage {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("live member got %d messages, want 2", count)
	}
}

func TestUnregisterLeavesAllRooms(t *testing.T) {
	h := NewHub()
	sessionA, sessionB := uuid.New(), uuid.New()

	c, _ := connect(h)
	peerA, peerAConn := connect(h)
	peerB, peerBConn := connect(h)
	h.Join(sessionA, c)
	h.Join(sessionA, peerA)
	h.Join(sessionB, c)
	h.Join(sessionB, peerB)

	h.Unregister(c)

	for name, conn := range map[string]*fakeConn{"peerA": peerAConn, "peerB": peerBConn} {
		found := false
		for _, ev := range conn.names() {
			if ev == EventUserLeft {
				found = true
			}
		}
		if !found {
			t.Errorf("%s did not see the leave announcement: %v", name, conn.names())
		}
	}

	// A stale unregister for a replaced connection leaves the new one alone.
	fresh := &fakeConn{}
	replacement := &Client{UserID: peerA.UserID, Conn: fresh}
	h.Register(replacement)
	h.Unregister(peerA)
	h.EmitToUser(peerA.UserID, Event{Event: EventNewMessage})
	if got := fresh.names(); len(got) != 1 {
		t.Fatalf("replacement connection got %v, want the message", got)
	}
}

// overlapConn detects concurrent writers: the transport allows one
// writer per connection, so any overlap is a defect.
type overlapConn struct {
	active   int32
	overlaps int32
	writes   int32
}

func (o *overlapConn) WriteJSON(interface{}) error {
	if atomic.AddInt32(&o.active, 1) > 1 {
		atomic.StoreInt32(&o.overlaps, 1)
	}
	time.Sleep(50 * time.Microsecond)
	atomic.AddInt32(&o.active, -1)
	atomic.AddInt32(&o.writes, 1)
	return nil
}

func (o *overlapConn) Close() error { return nil }

func TestConcurrentWritesSerialized(t *testing.T) {
	h := NewHub()
	sessionID := uuid.New()

	conn := &overlapConn{}
	member := &Client{UserID: uuid.New(), Conn: conn}
	h.Register(member)
	h.Join(sessionID, member)

	// Hub fan-out, direct user delivery and a watch-style Send all
	// target the same connection at once.
	const perWriter = 25
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < perWriter; i++ {
			h.Emit(sessionID, uuid.Nil, Event{Event: EventNewMessage, Payload: i})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perWriter; i++ {
			h.EmitToUser(member.UserID, Event{Event: EventSessionStatusUpdated, Payload: i})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perWriter; i++ {
			_ = member.Send(Event{Event: EventSessionStatusUpdated, Payload: i})
		}
	}()
	wg.Wait()

	if atomic.LoadInt32(&conn.overlaps) != 0 {
		t.Fatal("two writers reached the connection at the same time")
	}
	if got := atomic.LoadInt32(&conn.writes); got != 3*perWriter {
		t.Fatalf("writes = %d, want %d", got, 3*perWriter)
	}
}

func TestLifecycleEventFanout(t *testing.T) {
	h := NewHub()
	studentID, tutorID := uuid.New(), uuid.New()
	recordID := uuid.New()

	studentConn := &fakeConn{}
	tutorConn := &fakeConn{}
	h.Register(&Client{UserID: studentID, Conn: studentConn})
	h.Register(&Client{UserID: tutorID, Conn: tutorConn})

	req := &models.SessionRequest{ID: recordID, StudentID: studentID, TutorID: tutorID, Subject: "Physics"}
	h.RequestCreated(req)
	if got := tutorConn.names(); len(got) != 1 || got[0] != EventNewSessionRequest {
		t.Fatalf("tutor saw %v, want [%s]", got, EventNewSessionRequest)
	}

	sess := &models.Session{ID: recordID, StudentID: studentID, TutorID: tutorID, Subject: "Physics"}
	h.RequestResolved(req, sess)
	if got := studentConn.names(); len(got) != 1 || got[0] != EventSessionStatusUpdated {
		t.Fatalf("student saw %v, want [%s]", got, EventSessionStatusUpdated)
	}

	h.SessionStatusUpdated(sess)
	studentEvents := studentConn.names()
	if studentEvents[len(studentEvents)-1] != EventSessionStatusUpdated {
		t.Fatalf("student saw %v, want a trailing %s", studentEvents, EventSessionStatusUpdated)
	}
	tutorEvents := tutorConn.names()
	if tutorEvents[len(tutorEvents)-1] != EventSessionStatusUpdated {
		t.Fatalf("tutor saw %v, want a trailing %s", tutorEvents, EventSessionStatusUpdated)
	}
}
