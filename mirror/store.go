package mirror

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tutorlinkhq/tutorlink/lifecycle"
	"github.com/tutorlinkhq/tutorlink/models"
)

// Store is the local fallback record store. It maintains the same three
// collections as the primary backend and performs the same notification
// side effects, so an operation serviced here is indistinguishable to
// the caller from one serviced by the primary.
//
// Every update is a read-modify-write inside an immediate transaction
// against the latest persisted snapshot; the store is safe to share
// between processes pointed at the same file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// ErrStorage wraps write failures of the store itself. There is no
// further fallback beneath this store, so callers surface these.
var ErrStorage = errors.New("mirror: storage failure")

func storagef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrStorage, fmt.Sprintf(format, args...))
}

const schema = `
CREATE TABLE IF NOT EXISTS session_requests (
	id               TEXT PRIMARY KEY,
	student_id       TEXT NOT NULL,
	tutor_id         TEXT NOT NULL,
	subject          TEXT NOT NULL,
	proposed_date    DATETIME NOT NULL,
	start_time       TEXT NOT NULL,
	end_time         TEXT NOT NULL,
	duration_hours   REAL NOT NULL,
	session_type     TEXT NOT NULL,
	description      TEXT,
	hourly_rate      REAL NOT NULL,
	total_cost       REAL NOT NULL,
	status           TEXT NOT NULL,
	resolved_by      TEXT,
	rejection_reason TEXT,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	id                  TEXT PRIMARY KEY,
	student_id          TEXT NOT NULL,
	tutor_id            TEXT NOT NULL,
	subject             TEXT NOT NULL,
	scheduled_date      DATETIME NOT NULL,
	start_time          TEXT NOT NULL,
	end_time            TEXT NOT NULL,
	status              TEXT NOT NULL,
	meeting_link        TEXT,
	rating              INTEGER,
	cancellation_reason TEXT,
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS notifications (
	id           TEXT PRIMARY KEY,
	recipient_id TEXT NOT NULL,
	type         TEXT NOT NULL,
	title        TEXT NOT NULL,
	message      TEXT NOT NULL,
	related_id   TEXT,
	is_read      INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	sender_id  TEXT NOT NULL,
	content    TEXT NOT NULL,
	read_at    DATETIME,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_tutor ON session_requests(tutor_id);
CREATE INDEX IF NOT EXISTS idx_requests_student ON session_requests(student_id);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
`

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, storagef("open %s: %v", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, storagef("init schema: %v", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreateRequest appends a new pending request and, in the same commit,
// the request-created notification for the tutor.
func (s *Store) CreateRequest(req *models.SessionRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	now := s.now().UTC()
	req.Status = lifecycle.StatusPending
	req.CreatedAt = now
	req.UpdatedAt = now

	tx, err := s.db.Begin()
	if err != nil {
		return storagef("begin: %v", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO session_requests
		(id, student_id, tutor_id, subject, proposed_date, start_time, end_time,
		 duration_hours, session_type, description, hourly_rate, total_cost,
		 status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID.String(), req.StudentID.String(), req.TutorID.String(),
		req.Subject, req.ProposedDate, req.StartTime, req.EndTime,
		req.DurationHours, req.SessionType, nullString(req.Description),
		req.HourlyRate, req.TotalCost, string(req.Status), req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return storagef("insert request: %v", err)
	}

	if err := insertNotification(tx, models.RequestCreatedNotification(req, now)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storagef("commit: %v", err)
	}
	return nil
}

func (s *Store) RequestByID(id uuid.UUID) (*models.SessionRequest, error) {
	row := s.db.QueryRow(selectRequest+` WHERE id = ?`, id.String())
	return scanRequest(row)
}

// RequestsForTutor returns the tutor's requests in insertion order.
func (s *Store) RequestsForTutor(tutorID uuid.UUID) ([]models.SessionRequest, error) {
	return s.queryRequests(`WHERE tutor_id = ?`, tutorID.String())
}

func (s *Store) RequestsForStudent(studentID uuid.UUID) ([]models.SessionRequest, error) {
	return s.queryRequests(`WHERE student_id = ?`, studentID.String())
}

// ResolveRequest applies an approve/reject transition. On approval the
// request flip, the confirmed session insert and the approval
// notification are one commit; partial application cannot be observed.
// A transition that already took effect is reported with applied=false
// and no error.
func (s *Store) ResolveRequest(id uuid.UUID, actor lifecycle.Actor, approve bool, reason string) (*models.SessionRequest, *models.Session, bool, error) {
	requested := lifecycle.StatusApproved
	if !approve {
		requested = lifecycle.StatusRejected
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, false, storagef("begin: %v", err)
	}
	defer tx.Rollback()

	req, err := scanRequest(tx.QueryRow(selectRequest+` WHERE id = ?`, id.String()))
	if err != nil {
		return nil, nil, false, err
	}
	if actor.Role == lifecycle.RoleTutor && req.TutorID != actor.ID {
		return nil, nil, false, lifecycle.Rejection(lifecycle.ReasonRoleNotAllowed, "you are not the tutor for this request")
	}

	switch d := lifecycle.Decide(req.Status, requested, actor.Role, reason); d.Outcome {
	case lifecycle.OutcomeRejected:
		return nil, nil, false, lifecycle.Reject(d.Reason)
	case lifecycle.OutcomeNoOp:
		var sess *models.Session
		if req.Status == lifecycle.StatusApproved {
			sess, _ = scanSession(tx.QueryRow(selectSession+` WHERE id = ?`, id.String()))
		}
		return req, sess, false, nil
	}

	now := s.now().UTC()
	req.Status = requested
	req.ResolvedBy = &actor.ID
	if !approve {
		req.RejectionReason = &reason
	}
	req.UpdatedAt = now

	_, err = tx.Exec(`UPDATE session_requests
		SET status = ?, resolved_by = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ?`,
		string(req.Status), actor.ID.String(), nullString(req.RejectionReason), now, id.String())
	if err != nil {
		return nil, nil, false, storagef("update request: %v", err)
	}

	var sess *models.Session
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
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		_, err = tx.Exec(`INSERT INTO sessions
			(id, student_id, tutor_id, subject, scheduled_date, start_time, end_time,
			 status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID.String(), sess.StudentID.String(), sess.TutorID.String(),
			sess.Subject, sess.ScheduledDate, sess.StartTime, sess.EndTime,
			string(sess.Status), sess.CreatedAt, sess.UpdatedAt)
		if err != nil {
			return nil, nil, false, storagef("insert session: %v", err)
		}
	}
	if err := insertNotification(tx, models.RequestResolvedNotification(req, approve, reason, now)); err != nil {
		return nil, nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, false, storagef("commit: %v", err)
	}
	return req, sess, true, nil
}

func (s *Store) SessionByID(id uuid.UUID) (*models.Session, error) {
	return scanSession(s.db.QueryRow(selectSession+` WHERE id = ?`, id.String()))
}

func (s *Store) SessionsForUser(userID uuid.UUID) ([]models.Session, error) {
	rows, err := s.db.Query(selectSession+` WHERE student_id = ? OR tutor_id = ? ORDER BY rowid`,
		userID.String(), userID.String())
	if err != nil {
		return nil, storagef("query sessions: %v", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		sess, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// UpdateSessionStatus applies a role-gated transition on a confirmed
// session and records the matching notification for the counterpart in
// the same commit.
func (s *Store) UpdateSessionStatus(id uuid.UUID, actor lifecycle.Actor, requested lifecycle.Status, reason string) (*models.Session, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, storagef("begin: %v", err)
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRow(selectSession+` WHERE id = ?`, id.String()))
	if err != nil {
		return nil, false, err
	}
	if err := checkParticipant(sess, actor); err != nil {
		return nil, false, err
	}

	switch d := lifecycle.Decide(sess.Status, requested, actor.Role, reason); d.Outcome {
	case lifecycle.OutcomeRejected:
		return nil, false, lifecycle.Reject(d.Reason)
	case lifecycle.OutcomeNoOp:
		return sess, false, nil
	}

	now := s.now().UTC()
	sess.Status = requested
	if requested == lifecycle.StatusCancelled {
		sess.CancellationReason = &reason
	}
	sess.UpdatedAt = now

	_, err = tx.Exec(`UPDATE sessions SET status = ?, cancellation_reason = ?, updated_at = ? WHERE id = ?`,
		string(sess.Status), nullString(sess.CancellationReason), now, id.String())
	if err != nil {
		return nil, false, storagef("update session: %v", err)
	}

	if notif := models.SessionStatusNotification(sess, actor.ID, requested, reason, now); notif != nil {
		if err := insertNotification(tx, notif); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, storagef("commit: %v", err)
	}
	return sess, true, nil
}

// SetMeetingLink stores (or clears) the opaque meeting reference.
func (s *Store) SetMeetingLink(id uuid.UUID, link *string) (*models.Session, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, storagef("begin: %v", err)
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRow(selectSession+` WHERE id = ?`, id.String()))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess.MeetingLink = link
	sess.UpdatedAt = now
	if _, err := tx.Exec(`UPDATE sessions SET meeting_link = ?, updated_at = ? WHERE id = ?`,
		nullString(link), now, id.String()); err != nil {
		return nil, storagef("update session: %v", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storagef("commit: %v", err)
	}
	return sess, nil
}

// RateSession attaches the student's one-time rating to a completed
// session and notifies the tutor in the same commit.
func (s *Store) RateSession(id uuid.UUID, actor lifecycle.Actor, rating int) (*models.Session, error) {
	if rating < 1 || rating > 5 {
		return nil, lifecycle.Rejection(lifecycle.ReasonInvalidTransition, "rating must be between 1 and 5")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, storagef("begin: %v", err)
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRow(selectSession+` WHERE id = ?`, id.String()))
	if err != nil {
		return nil, err
	}
	if actor.Role == lifecycle.RoleStudent && sess.StudentID != actor.ID {
		return nil, lifecycle.Rejection(lifecycle.ReasonRoleNotAllowed, "this is not your session")
	}
	if d := lifecycle.DecideRating(sess.Status, actor.Role, sess.Rating != nil); d.Outcome == lifecycle.OutcomeRejected {
		return nil, lifecycle.Reject(d.Reason)
	}

	now := s.now().UTC()
	sess.Rating = &rating
	sess.UpdatedAt = now
	if _, err := tx.Exec(`UPDATE sessions SET rating = ?, updated_at = ? WHERE id = ?`,
		rating, now, id.String()); err != nil {
		return nil, storagef("update session: %v", err)
	}

	if err := insertNotification(tx, models.RatingNotification(sess, rating, now)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storagef("commit: %v", err)
	}
	return sess, nil
}

func checkParticipant(sess *models.Session, actor lifecycle.Actor) error {
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
