package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tutorlinkhq/tutorlink/lifecycle"
)

// Notification templates shared by both persistence paths, so a record
// created via the mirror store reads exactly like one created via the
// primary backend.

func RequestCreatedNotification(req *SessionRequest, now time.Time) *Notification {
	return &Notification{
		RecipientID: req.TutorID,
		Type:        NotificationRequestCreated,
		Title:       "New Session Request",
		Message:     fmt.Sprintf("You have a new %s session request for %s.", req.SessionType, req.Subject),
		RelatedID:   &req.ID,
		CreatedAt:   now,
	}
}

func RequestResolvedNotification(req *SessionRequest, approved bool, reason string, now time.Time) *Notification {
	n := &Notification{
		RecipientID: req.StudentID,
		RelatedID:   &req.ID,
		CreatedAt:   now,
	}
	if approved {
		n.Type = NotificationApproved
		n.Title = "Session Request Approved"
		n.Message = fmt.Sprintf("Your %s session request was approved.", req.Subject)
	} else {
		n.Type = NotificationRejected
		n.Title = "Session Request Declined"
		n.Message = fmt.Sprintf("Your %s session request was declined: %s", req.Subject, reason)
	}
	return n
}

// SessionStatusNotification derives the notification for a session
// transition; the recipient is the participant who did not act. Returns
// nil for transitions that carry no notification.
func SessionStatusNotification(sess *Session, actorID uuid.UUID, status lifecycle.Status, reason string, now time.Time) *Notification {
	recipient := sess.StudentID
	if actorID == sess.StudentID {
		recipient = sess.TutorID
	}
	n := &Notification{RecipientID: recipient, RelatedID: &sess.ID, CreatedAt: now}
	switch status {
	case lifecycle.StatusCancelled:
		n.Type = NotificationCancelled
		n.Title = "Session Cancelled"
		n.Message = fmt.Sprintf("Your %s session was cancelled: %s", sess.Subject, reason)
	case lifecycle.StatusCompleted:
		n.Type = NotificationCompleted
		n.Title = "Session Completed"
		n.Message = fmt.Sprintf("Your %s session was marked as completed.", sess.Subject)
	case lifecycle.StatusNoShow:
		n.Type = NotificationSystem
		n.Title = "Session Marked No-Show"
		n.Message = fmt.Sprintf("Your %s session was marked as a no-show.", sess.Subject)
	default:
		return nil
	}
	return n
}

func RatingNotification(sess *Session, rating int, now time.Time) *Notification {
	return &Notification{
		RecipientID: sess.TutorID,
		Type:        NotificationRatingReceived,
		Title:       "New Rating",
		Message:     fmt.Sprintf("A student rated your %s session %d/5.", sess.Subject, rating),
		RelatedID:   &sess.ID,
		CreatedAt:   now,
	}
}
