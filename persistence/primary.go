package persistence

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tutorlinkhq/tutorlink/lifecycle"
	"github.com/tutorlinkhq/tutorlink/models"
)

// GormBackend is the primary path: Postgres through GORM. Infrastructure
// errors (connectivity, missing rows) bubble up raw so the mediator can
// classify them as unavailable; policy decisions come back as
// lifecycle.PolicyError and are never retried.
type GormBackend struct {
	db *gorm.DB
}

func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

func (b *GormBackend) CreateRequest(req *models.SessionRequest) error {
	req.Status = lifecycle.StatusPending
	return b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		return tx.Create(models.RequestCreatedNotification(req, req.CreatedAt)).Error
	})
}

func (b *GormBackend) RequestByID(id uuid.UUID) (*models.SessionRequest, error) {
	var req models.SessionRequest
	if err := b.db.First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (b *GormBackend) RequestsForTutor(tutorID uuid.UUID) ([]models.SessionRequest, error) {
	var reqs []models.SessionRequest
	err := b.db.Where("tutor_id = ?", tutorID).Order("created_at asc").Find(&reqs).Error
	return reqs, err
}

func (b *GormBackend) RequestsForStudent(studentID uuid.UUID) ([]models.SessionRequest, error) {
	var reqs []models.SessionRequest
	err := b.db.Where("student_id = ?", studentID).Order("created_at asc").Find(&reqs).Error
	return reqs, err
}

func (b *GormBackend) ResolveRequest(id uuid.UUID, actor lifecycle.Actor, approve bool, reason string) (*models.SessionRequest, *models.Session, bool, error) {
	requested := lifecycle.StatusApproved
	if !approve {
		requested = lifecycle.StatusRejected
	}

	var (
		req     models.SessionRequest
		sess    *models.Session
		applied bool
	)
	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, "id = ?", id).Error; err != nil {
			return err
		}
		if actor.Role == lifecycle.RoleTutor && req.TutorID != actor.ID {
			return lifecycle.Rejection(lifecycle.ReasonRoleNotAllowed, "you are not the tutor for this request")
		}

		switch d := lifecycle.Decide(req.Status, requested, actor.Role, reason); d.Outcome {
		case lifecycle.OutcomeRejected:
			return lifecycle.Reject(d.Reason)
		case lifecycle.OutcomeNoOp:
			if req.Status == lifecycle.StatusApproved {
				var existing models.Session
				if err := tx.First(&existing, "id = ?", id).Error; err == nil {
					sess = &existing
				}
			}
			return nil
		}
		applied = true

		req.Status = requested
		req.ResolvedBy = &actor.ID
		if !approve {
			req.RejectionReason = &reason
		}
		if err := tx.Save(&req).Error; err != nil {
			return err
		}

		if approve {
			sess = &models.Session{
				ID:            req.ID,
				StudentID:     req.StudentID,
				TutorID:       req.TutorID,
				Subject:       req.Subject,
				ScheduledDate: req.ProposedDate,
				StartTime:     req.StartTime,
				EndTime:       req.EndTime,
				Status:        lifecycle.StatusApproved,
			}
			if err := tx.Create(sess).Error; err != nil {
				return err
			}
		}
		return tx.Create(models.RequestResolvedNotification(&req, approve, reason, req.UpdatedAt)).Error
	})
	if err != nil {
		return nil, nil, false, err
	}
	return &req, sess, applied, nil
}

func (b *GormBackend) SessionByID(id uuid.UUID) (*models.Session, error) {
	var sess models.Session
	if err := b.db.First(&sess, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sess, nil
}

func (b *GormBackend) SessionsForUser(userID uuid.UUID) ([]models.Session, error) {
	var sessions []models.Session
	err := b.db.Where("student_id = ? OR tutor_id = ?", userID, userID).
		Order("created_at asc").Find(&sessions).Error
	return sessions, err
}

func (b *GormBackend) UpdateSessionStatus(id uuid.UUID, actor lifecycle.Actor, requested lifecycle.Status, reason string) (*models.Session, bool, error) {
	var (
		sess    models.Session
		applied bool
	)
	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sess, "id = ?", id).Error; err != nil {
			return err
		}
		if err := checkSessionActor(&sess, actor); err != nil {
			return err
		}

		switch d := lifecycle.Decide(sess.Status, requested, actor.Role, reason); d.Outcome {
		case lifecycle.OutcomeRejected:
			return lifecycle.Reject(d.Reason)
		case lifecycle.OutcomeNoOp:
			return nil
		}
		applied = true

		sess.Status = requested
		if requested == lifecycle.StatusCancelled {
			sess.CancellationReason = &reason
		}
		if err := tx.Save(&sess).Error; err != nil {
			return err
		}

		if notif := models.SessionStatusNotification(&sess, actor.ID, requested, reason, sess.UpdatedAt); notif != nil {
			return tx.Create(notif).Error
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &sess, applied, nil
}

func (b *GormBackend) SetMeetingLink(id uuid.UUID, link *string) (*models.Session, error) {
	var sess models.Session
	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sess, "id = ?", id).Error; err != nil {
			return err
		}
		sess.MeetingLink = link
		return tx.Save(&sess).Error
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (b *GormBackend) RateSession(id uuid.UUID, actor lifecycle.Actor, rating int) (*models.Session, error) {
	if rating < 1 || rating > 5 {
		return nil, lifecycle.Rejection(lifecycle.ReasonInvalidTransition, "rating must be between 1 and 5")
	}

	var sess models.Session
	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sess, "id = ?", id).Error; err != nil {
			return err
		}
		if actor.Role == lifecycle.RoleStudent && sess.StudentID != actor.ID {
			return lifecycle.Rejection(lifecycle.ReasonRoleNotAllowed, "this is not your session")
		}
		if d := lifecycle.DecideRating(sess.Status, actor.Role, sess.Rating != nil); d.Outcome == lifecycle.OutcomeRejected {
			return lifecycle.Reject(d.Reason)
		}

		sess.Rating = &rating
		if err := tx.Save(&sess).Error; err != nil {
			return err
		}
		return tx.Create(models.RatingNotification(&sess, rating, sess.UpdatedAt)).Error
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (b *GormBackend) CreateMessage(m *models.Message) error {
	return b.db.Create(m).Error
}

func (b *GormBackend) MessagesForSession(sessionID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := b.db.Where("session_id = ?", sessionID).Order("created_at asc").Find(&messages).Error
	return messages, err
}

func (b *GormBackend) CreateNotification(n *models.Notification) error {
	return b.db.Create(n).Error
}

func (b *GormBackend) NotificationsFor(recipient uuid.UUID) ([]models.Notification, error) {
	var notifications []models.Notification
	err := b.db.Where("recipient_id = ?", recipient).Order("created_at asc").Find(&notifications).Error
	return notifications, err
}

func (b *GormBackend) UnreadCount(recipient uuid.UUID) (int64, error) {
	var count int64
	err := b.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipient, false).Count(&count).Error
	return count, err
}

func (b *GormBackend) MarkRead(id, recipient uuid.UUID) (bool, error) {
	res := b.db.Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipient).Update("is_read", true)
	return res.RowsAffected > 0, res.Error
}

func (b *GormBackend) MarkAllRead(recipient uuid.UUID) (int64, error) {
	res := b.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipient, false).Update("is_read", true)
	return res.RowsAffected, res.Error
}

func checkSessionActor(sess *models.Session, actor lifecycle.Actor) error {
	switch actor.Role {
	case lifecycle.RoleStudent:
		if sess.StudentID != actor.ID {
			return lifecycle.Rejection(lifecycle.ReasonRoleNotAllowed, "this is not your session")
		}
	case lifecycle.RoleTutor:
		if sess.TutorID != actor.ID {
			return lifecycle.Rejection(lifecycle.ReasonRoleNotAllowed, "you are not the tutor for this session")
		}
	}
	return nil
}
