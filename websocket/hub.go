package websocket

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/tutorlinkhq/tutorlink/models"
)

// The closed event vocabulary pushed over the channel. Receivers must
// treat every event as a hint to re-check state, never as the sole
// source of truth; duplicate delivery is always safe.
const (
	EventNewSessionRequest    = "newSessionRequest"
	EventSessionStatusUpdated = "sessionStatusUpdated"
	EventNewMessage           = "newMessage"
	EventUserTyping           = "userTyping"
	EventUserStoppedTyping    = "userStoppedTyping"
	EventVideoCallStarted     = "videoCallStarted"
	EventVideoCallEnded       = "videoCallEnded"
	EventUserJoined           = "userJoined"
	EventUserLeft             = "userLeft"
)

type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Conn is the write side of a client connection. Kept minimal so the
// hub can be exercised without a live socket.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	UserID uuid.UUID
	Conn   Conn

	mu sync.Mutex
}

// Send writes one frame to the connection. The transport permits a
// single concurrent writer, so every write to a client - hub fan-out,
// watch callbacks, read-loop replies - must go through here.
func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteJSON(v)
}

// Hub tracks connected clients and session-scoped rooms. Join, leave
// and emit are fire-and-forget: correctness does not depend on
// delivery, the reconciliation poller backstops lost events.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	rooms   map[uuid.UUID]map[uuid.UUID]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		rooms:   make(map[uuid.UUID]map[uuid.UUID]*Client),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.UserID] = c
	h.mu.Unlock()
	log.Printf("Client registered: %s", c.UserID)
}

// Unregister drops the client and removes it from every room it joined.
// A stale client (already replaced by a newer connection for the same
// user) is left alone.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if current, ok := h.clients[c.UserID]; ok && current == c {
		delete(h.clients, c.UserID)
	}
	var left []uuid.UUID
	for sessionID, members := range h.rooms {
		if members[c.UserID] == c {
			delete(members, c.UserID)
			if len(members) == 0 {
				delete(h.rooms, sessionID)
			}
			left = append(left, sessionID)
		}
	}
	h.mu.Unlock()

	for _, sessionID := range left {
		h.Emit(sessionID, c.UserID, Event{Event: EventUserLeft, Payload: roomPayload(sessionID, c.UserID)})
	}
	log.Printf("Client unregistered: %s", c.UserID)
}

func (h *Hub) Join(sessionID uuid.UUID, c *Client) {
	h.mu.Lock()
	members, ok := h.rooms[sessionID]
	if !ok {
		members = make(map[uuid.UUID]*Client)
		h.rooms[sessionID] = members
	}
	members[c.UserID] = c
	h.mu.Unlock()

	h.Emit(sessionID, c.UserID, Event{Event: EventUserJoined, Payload: roomPayload(sessionID, c.UserID)})
}

func (h *Hub) Leave(sessionID uuid.UUID, c *Client) {
	h.mu.Lock()
	if members, ok := h.rooms[sessionID]; ok && members[c.UserID] == c {
		delete(members, c.UserID)
		if len(members) == 0 {
			delete(h.rooms, sessionID)
		}
	}
	h.mu.Unlock()

	h.Emit(sessionID, c.UserID, Event{Event: EventUserLeft, Payload: roomPayload(sessionID, c.UserID)})
}

// Emit pushes an event to every room member except exclude (uuid.Nil to
// include everyone). Dead connections are evicted on write failure.
func (h *Hub) Emit(sessionID, exclude uuid.UUID, ev Event) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[sessionID]))
	for userID, c := range h.rooms[sessionID] {
		if userID == exclude {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.write(c, ev)
	}
}

// EmitToUser delivers directly to a connected user, whether or not they
// joined a room. Used for events that precede room membership, like a
// brand new request landing on a tutor.
func (h *Hub) EmitToUser(userID uuid.UUID, ev Event) {
	h.mu.RLock()
	c := h.clients[userID]
	h.mu.RUnlock()
	if c != nil {
		h.write(c, ev)
	}
}

func (h *Hub) write(c *Client, ev Event) {
	if err := c.Send(ev); err != nil {
		log.Printf("Error sending event %s to client %s: %v", ev.Event, c.UserID, err)
		c.Conn.Close()
		h.Unregister(c)
	}
}

func roomPayload(sessionID, userID uuid.UUID) map[string]string {
	return map[string]string{
		"session_id": sessionID.String(),
		"user_id":    userID.String(),
	}
}

// The hub implements persistence.Events: each applied lifecycle
// transition is pushed to the session room and to the counterpart
// directly, since the counterpart may not have a room open yet.

func (h *Hub) RequestCreated(req *models.SessionRequest) {
	ev := Event{Event: EventNewSessionRequest, Payload: req}
	h.EmitToUser(req.TutorID, ev)
	h.Emit(req.ID, uuid.Nil, ev)
}

func (h *Hub) RequestResolved(req *models.SessionRequest, sess *models.Session) {
	payload := map[string]interface{}{"request": req}
	if sess != nil {
		payload["session"] = sess
	}
	ev := Event{Event: EventSessionStatusUpdated, Payload: payload}
	h.EmitToUser(req.StudentID, ev)
	h.Emit(req.ID, uuid.Nil, ev)
}

func (h *Hub) SessionStatusUpdated(sess *models.Session) {
	ev := Event{Event: EventSessionStatusUpdated, Payload: map[string]interface{}{"session": sess}}
	h.EmitToUser(sess.StudentID, ev)
	h.EmitToUser(sess.TutorID, ev)
	h.Emit(sess.ID, uuid.Nil, ev)
}
