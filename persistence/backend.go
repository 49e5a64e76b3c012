package persistence

import (
	"github.com/google/uuid"
	"github.com/tutorlinkhq/tutorlink/lifecycle"
	"github.com/tutorlinkhq/tutorlink/models"
)

// Backend is the operation surface both persistence paths expose. The
// primary (Postgres) implementation and the mirror store satisfy it with
// identical semantics: lifecycle writes and their notification side
// effects are a single commit, and an already-applied transition is a
// no-op reported with applied=false.
type Backend interface {
	CreateRequest(req *models.SessionRequest) error
	RequestByID(id uuid.UUID) (*models.SessionRequest, error)
	RequestsForTutor(tutorID uuid.UUID) ([]models.SessionRequest, error)
	RequestsForStudent(studentID uuid.UUID) ([]models.SessionRequest, error)
	ResolveRequest(id uuid.UUID, actor lifecycle.Actor, approve bool, reason string) (*models.SessionRequest, *models.Session, bool, error)

	SessionByID(id uuid.UUID) (*models.Session, error)
	SessionsForUser(userID uuid.UUID) ([]models.Session, error)
	UpdateSessionStatus(id uuid.UUID, actor lifecycle.Actor, status lifecycle.Status, reason string) (*models.Session, bool, error)
	SetMeetingLink(id uuid.UUID, link *string) (*models.Session, error)
	RateSession(id uuid.UUID, actor lifecycle.Actor, rating int) (*models.Session, error)

	CreateMessage(m *models.Message) error
	MessagesForSession(sessionID uuid.UUID) ([]models.Message, error)

	CreateNotification(n *models.Notification) error
	NotificationsFor(recipient uuid.UUID) ([]models.Notification, error)
	UnreadCount(recipient uuid.UUID) (int64, error)
	MarkRead(id, recipient uuid.UUID) (bool, error)
	MarkAllRead(recipient uuid.UUID) (int64, error)
}
