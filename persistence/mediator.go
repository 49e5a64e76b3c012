package persistence

import (
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tutorlinkhq/tutorlink/lifecycle"
	"github.com/tutorlinkhq/tutorlink/models"
)

// Events receives lifecycle transitions that actually took effect, for
// realtime fan-out. Emission happens exactly once per applied mutation,
// from whichever path performed it; no-ops do not emit.
type Events interface {
	RequestCreated(req *models.SessionRequest)
	RequestResolved(req *models.SessionRequest, sess *models.Session)
	SessionStatusUpdated(sess *models.Session)
}

// Mediator fronts the two persistence paths. Every mutating operation is
// attempted against the primary first; the classified outcome - not a
// race - decides whether the mirror services it instead. Exactly one
// path mutates per logical operation.
type Mediator struct {
	primary  Backend
	fallback Backend
	events   Events
}

func NewMediator(primary, fallback Backend, events Events) *Mediator {
	return &Mediator{primary: primary, fallback: fallback, events: events}
}

type CreateRequestInput struct {
	TutorID       uuid.UUID
	Subject       string
	ProposedDate  time.Time
	StartTime     string
	EndTime       string
	DurationHours float64
	SessionType   string
	Description   *string
	HourlyRate    float64
}

// CreateRequest books a new pending request for a student. The price is
// locked here: TotalCost is computed once from the rate snapshot and
// never recomputed by any later transition.
func (m *Mediator) CreateRequest(actor lifecycle.Actor, in CreateRequestInput) (*models.SessionRequest, error) {
	if actor.Role != lifecycle.RoleStudent {
		return nil, lifecycle.Rejection(lifecycle.ReasonRoleNotAllowed, "only students can create session requests")
	}
	if in.DurationHours <= 0 {
		return nil, lifecycle.Rejection(lifecycle.ReasonInvalidTransition, "duration must be positive")
	}
	if in.SessionType != "online" && in.SessionType != "in-person" {
		return nil, lifecycle.Rejection(lifecycle.ReasonInvalidTransition, "session type must be online or in-person")
	}

	req := &models.SessionRequest{
		ID:            uuid.New(),
		StudentID:     actor.ID,
		TutorID:       in.TutorID,
		Subject:       in.Subject,
		ProposedDate:  in.ProposedDate,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		DurationHours: in.DurationHours,
		SessionType:   in.SessionType,
		Description:   in.Description,
		HourlyRate:    in.HourlyRate,
		TotalCost:     in.DurationHours * in.HourlyRate,
	}

	err := m.primary.CreateRequest(req)
	switch classify(err) {
	case outcomeOK:
		m.emitRequestCreated(req)
		return req, nil
	case outcomeUnavailable:
		log.Printf("primary unavailable for create request %s, using mirror: %v", req.ID, err)
	default:
		return nil, err
	}

	if err := m.fallback.CreateRequest(req); err != nil {
		return nil, err
	}
	m.emitRequestCreated(req)
	return req, nil
}

// ResolveRequest is the tutor's approve/reject action. An approval that
// already took effect is absorbed as a no-op without a second session or
// notification.
func (m *Mediator) ResolveRequest(actor lifecycle.Actor, id uuid.UUID, approve bool, reason string) (*models.SessionRequest, *models.Session, error) {
	req, sess, applied, err := m.primary.ResolveRequest(id, actor, approve, reason)
	switch classify(err) {
	case outcomeOK:
		if applied {
			m.emitRequestResolved(req, sess)
		}
		return req, sess, nil
	case outcomeUnavailable:
		log.Printf("primary unavailable for resolve request %s, using mirror: %v", id, err)
	default:
		return nil, nil, err
	}

	req, sess, applied, err = m.fallback.ResolveRequest(id, actor, approve, reason)
	if err != nil {
		return nil, nil, err
	}
	if applied {
		m.emitRequestResolved(req, sess)
	}
	return req, sess, nil
}

func (m *Mediator) UpdateSessionStatus(actor lifecycle.Actor, id uuid.UUID, status lifecycle.Status, reason string) (*models.Session, error) {
	sess, applied, err := m.primary.UpdateSessionStatus(id, actor, status, reason)
	switch classify(err) {
	case outcomeOK:
		if applied {
			m.emitSessionStatusUpdated(sess)
		}
		return sess, nil
	case outcomeUnavailable:
		log.Printf("primary unavailable for session %s status update, using mirror: %v", id, err)
	default:
		return nil, err
	}

	sess, applied, err = m.fallback.UpdateSessionStatus(id, actor, status, reason)
	if err != nil {
		return nil, err
	}
	if applied {
		m.emitSessionStatusUpdated(sess)
	}
	return sess, nil
}

func (m *Mediator) RateSession(actor lifecycle.Actor, id uuid.UUID, rating int) (*models.Session, error) {
	sess, err := m.primary.RateSession(id, actor, rating)
	switch classify(err) {
	case outcomeOK:
		return sess, nil
	case outcomeUnavailable:
		log.Printf("primary unavailable for rating session %s, using mirror: %v", id, err)
	default:
		return nil, err
	}
	return m.fallback.RateSession(id, actor, rating)
}

// SetMeetingLink stores or clears the opaque meeting reference on the
// session record, wherever that record lives.
func (m *Mediator) SetMeetingLink(id uuid.UUID, link *string) (*models.Session, error) {
	sess, err := m.primary.SetMeetingLink(id, link)
	switch classify(err) {
	case outcomeOK:
		return sess, nil
	case outcomeUnavailable:
		log.Printf("primary unavailable for meeting link on %s, using mirror: %v", id, err)
	default:
		return nil, err
	}
	return m.fallback.SetMeetingLink(id, link)
}

func (m *Mediator) CreateMessage(msg *models.Message) error {
	err := m.primary.CreateMessage(msg)
	switch classify(err) {
	case outcomeOK:
		return nil
	case outcomeUnavailable:
		log.Printf("primary unavailable for message in session %s, using mirror: %v", msg.SessionID, err)
	default:
		return err
	}
	return m.fallback.CreateMessage(msg)
}

// CreateNotification records a standalone notification (chat messages,
// system nudges) through whichever path is reachable.
func (m *Mediator) CreateNotification(n *models.Notification) error {
	err := m.primary.CreateNotification(n)
	switch classify(err) {
	case outcomeOK:
		return nil
	case outcomeUnavailable:
		log.Printf("primary unavailable for notification to %s, using mirror: %v", n.RecipientID, err)
	default:
		return err
	}
	return m.fallback.CreateNotification(n)
}

// CurrentStatus resolves the freshest lifecycle state of a record id,
// consulting both paths. A confirmed session shadows the request it was
// created from; between paths the more advanced state wins.
func (m *Mediator) CurrentStatus(id uuid.UUID) (lifecycle.Status, error) {
	var (
		best  lifecycle.Status
		found bool
	)
	for _, b := range []Backend{m.primary, m.fallback} {
		if sess, err := b.SessionByID(id); err == nil {
			if !found || lifecycle.Rank(sess.Status) >= lifecycle.Rank(best) {
				best = sess.Status
				found = true
			}
			continue
		}
		if req, err := b.RequestByID(id); err == nil {
			if !found || lifecycle.Rank(req.Status) > lifecycle.Rank(best) {
				best = req.Status
				found = true
			}
		}
	}
	if !found {
		return "", lifecycle.Reject(lifecycle.ReasonNotFound)
	}
	return best, nil
}

func (m *Mediator) GetRequest(id uuid.UUID) (*models.SessionRequest, error) {
	primary, pErr := m.primary.RequestByID(id)
	fallback, fErr := m.fallback.RequestByID(id)
	switch {
	case pErr == nil && fErr == nil:
		if lifecycle.Rank(fallback.Status) > lifecycle.Rank(primary.Status) {
			return fallback, nil
		}
		return primary, nil
	case pErr == nil:
		return primary, nil
	case fErr == nil:
		return fallback, nil
	case classify(pErr) == outcomePolicy:
		return nil, pErr
	default:
		return nil, fErr
	}
}

func (m *Mediator) GetSession(id uuid.UUID) (*models.Session, error) {
	primary, pErr := m.primary.SessionByID(id)
	fallback, fErr := m.fallback.SessionByID(id)
	switch {
	case pErr == nil && fErr == nil:
		if lifecycle.Rank(fallback.Status) > lifecycle.Rank(primary.Status) {
			return fallback, nil
		}
		return primary, nil
	case pErr == nil:
		return primary, nil
	case fErr == nil:
		return fallback, nil
	case classify(pErr) == outcomePolicy:
		return nil, pErr
	default:
		return nil, fErr
	}
}

// List reads union the two paths: a record lives on exactly one of them,
// so the union (deduplicated by id, ordered by creation time) is the
// user-visible truth. When the primary is unreachable the mirror alone
// answers.
func (m *Mediator) RequestsForTutor(tutorID uuid.UUID) ([]models.SessionRequest, error) {
	primary, err := m.primary.RequestsForTutor(tutorID)
	if classify(err) == outcomeUnavailable {
		return m.fallback.RequestsForTutor(tutorID)
	}
	if err != nil {
		return nil, err
	}
	mirrored, err := m.fallback.RequestsForTutor(tutorID)
	if err != nil {
		return primary, nil
	}
	return mergeRequests(primary, mirrored), nil
}

func (m *Mediator) RequestsForStudent(studentID uuid.UUID) ([]models.SessionRequest, error) {
	primary, err := m.primary.RequestsForStudent(studentID)
	if classify(err) == outcomeUnavailable {
		return m.fallback.RequestsForStudent(studentID)
	}
	if err != nil {
		return nil, err
	}
	mirrored, err := m.fallback.RequestsForStudent(studentID)
	if err != nil {
		return primary, nil
	}
	return mergeRequests(primary, mirrored), nil
}

func (m *Mediator) SessionsForUser(userID uuid.UUID) ([]models.Session, error) {
	primary, err := m.primary.SessionsForUser(userID)
	if classify(err) == outcomeUnavailable {
		return m.fallback.SessionsForUser(userID)
	}
	if err != nil {
		return nil, err
	}
	mirrored, err := m.fallback.SessionsForUser(userID)
	if err != nil {
		return primary, nil
	}
	return mergeSessions(primary, mirrored), nil
}

func (m *Mediator) MessagesForSession(sessionID uuid.UUID) ([]models.Message, error) {
	primary, err := m.primary.MessagesForSession(sessionID)
	if classify(err) == outcomeUnavailable {
		return m.fallback.MessagesForSession(sessionID)
	}
	if err != nil {
		return nil, err
	}
	mirrored, err := m.fallback.MessagesForSession(sessionID)
	if err != nil {
		return primary, nil
	}
	return mergeMessages(primary, mirrored), nil
}

func (m *Mediator) NotificationsFor(recipient uuid.UUID) ([]models.Notification, error) {
	primary, err := m.primary.NotificationsFor(recipient)
	if classify(err) == outcomeUnavailable {
		return m.fallback.NotificationsFor(recipient)
	}
	if err != nil {
		return nil, err
	}
	mirrored, err := m.fallback.NotificationsFor(recipient)
	if err != nil {
		return primary, nil
	}
	return mergeNotifications(primary, mirrored), nil
}

// UnreadCount is recomputed from the underlying rows on every call. A
// notification row lives on exactly one path, so the counts add.
func (m *Mediator) UnreadCount(recipient uuid.UUID) (int64, error) {
	primary, err := m.primary.UnreadCount(recipient)
	if classify(err) == outcomeUnavailable {
		return m.fallback.UnreadCount(recipient)
	}
	if err != nil {
		return 0, err
	}
	mirrored, err := m.fallback.UnreadCount(recipient)
	if err != nil {
		return primary, nil
	}
	return primary + mirrored, nil
}

func (m *Mediator) MarkRead(id, recipient uuid.UUID) error {
	matched, err := m.primary.MarkRead(id, recipient)
	if classify(err) == outcomeOK && matched {
		return nil
	}
	matched, err = m.fallback.MarkRead(id, recipient)
	if err != nil {
		return err
	}
	if !matched {
		return lifecycle.Rejection(lifecycle.ReasonNotFound, "notification not found")
	}
	return nil
}

// MarkAllRead touches both paths: each holds a disjoint subset of the
// recipient's notifications, and all of them should flip.
func (m *Mediator) MarkAllRead(recipient uuid.UUID) error {
	if _, err := m.primary.MarkAllRead(recipient); classify(err) == outcomeUnavailable {
		log.Printf("primary unavailable for mark-all-read %s: %v", recipient, err)
	} else if err != nil {
		return err
	}
	_, err := m.fallback.MarkAllRead(recipient)
	return err
}

func (m *Mediator) emitRequestCreated(req *models.SessionRequest) {
	if m.events != nil {
		m.events.RequestCreated(req)
	}
}

func (m *Mediator) emitRequestResolved(req *models.SessionRequest, sess *models.Session) {
	if m.events != nil {
		m.events.RequestResolved(req, sess)
	}
}

func (m *Mediator) emitSessionStatusUpdated(sess *models.Session) {
	if m.events != nil {
		m.events.SessionStatusUpdated(sess)
	}
}

func mergeRequests(primary, mirrored []models.SessionRequest) []models.SessionRequest {
	seen := make(map[uuid.UUID]bool, len(primary))
	out := append([]models.SessionRequest(nil), primary...)
	for _, r := range primary {
		seen[r.ID] = true
	}
	for _, r := range mirrored {
		if !seen[r.ID] {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func mergeSessions(primary, mirrored []models.Session) []models.Session {
	seen := make(map[uuid.UUID]bool, len(primary))
	out := append([]models.Session(nil), primary...)
	for _, s := range primary {
		seen[s.ID] = true
	}
	for _, s := range mirrored {
		if !seen[s.ID] {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func mergeMessages(primary, mirrored []models.Message) []models.Message {
	seen := make(map[uuid.UUID]bool, len(primary))
	out := append([]models.Message(nil), primary...)
	for _, m := range primary {
		seen[m.ID] = true
	}
	for _, m := range mirrored {
		if !seen[m.ID] {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func mergeNotifications(primary, mirrored []models.Notification) []models.Notification {
	seen := make(map[uuid.UUID]bool, len(primary))
	out := append([]models.Notification(nil), primary...)
	for _, n := range primary {
		seen[n.ID] = true
	}
	for _, n := range mirrored {
		if !seen[n.ID] {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
