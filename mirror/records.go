package mirror

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tutorlinkhq/tutorlink/lifecycle"
	"github.com/tutorlinkhq/tutorlink/models"
)

const selectRequest = `SELECT id, student_id, tutor_id, subject, proposed_date,
	start_time, end_time, duration_hours, session_type, description,
	hourly_rate, total_cost, status, resolved_by, rejection_reason,
	created_at, updated_at FROM session_requests`

const selectSession = `SELECT id, student_id, tutor_id, subject, scheduled_date,
	start_time, end_time, status, meeting_link, rating, cancellation_reason,
	created_at, updated_at FROM sessions`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row scanner) (*models.SessionRequest, error) {
	var (
		req                     models.SessionRequest
		id, studentID, tutorID  string
		status                  string
		description, resolvedBy sql.NullString
		rejectionReason         sql.NullString
	)
	err := row.Scan(&id, &studentID, &tutorID, &req.Subject, &req.ProposedDate,
		&req.StartTime, &req.EndTime, &req.DurationHours, &req.SessionType,
		&description, &req.HourlyRate, &req.TotalCost, &status,
		&resolvedBy, &rejectionReason, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lifecycle.Rejection(lifecycle.ReasonNotFound, "session request not found")
	}
	if err != nil {
		return nil, storagef("scan request: %v", err)
	}
	req.ID = uuid.MustParse(id)
	req.StudentID = uuid.MustParse(studentID)
	req.TutorID = uuid.MustParse(tutorID)
	req.Status = lifecycle.Status(status)
	req.Description = fromNull(description)
	req.RejectionReason = fromNull(rejectionReason)
	if resolvedBy.Valid {
		u, err := uuid.Parse(resolvedBy.String)
		if err == nil {
			req.ResolvedBy = &u
		}
	}
	return &req, nil
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		sess                   models.Session
		id, studentID, tutorID string
		status                 string
		meetingLink, reason    sql.NullString
		rating                 sql.NullInt64
	)
	err := row.Scan(&id, &studentID, &tutorID, &sess.Subject, &sess.ScheduledDate,
		&sess.StartTime, &sess.EndTime, &status, &meetingLink, &rating,
		&reason, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lifecycle.Rejection(lifecycle.ReasonNotFound, "session not found")
	}
	if err != nil {
		return nil, storagef("scan session: %v", err)
	}
	sess.ID = uuid.MustParse(id)
	sess.StudentID = uuid.MustParse(studentID)
	sess.TutorID = uuid.MustParse(tutorID)
	sess.Status = lifecycle.Status(status)
	sess.MeetingLink = fromNull(meetingLink)
	sess.CancellationReason = fromNull(reason)
	if rating.Valid {
		r := int(rating.Int64)
		sess.Rating = &r
	}
	return &sess, nil
}

func scanSessionRows(rows *sql.Rows) (*models.Session, error) {
	return scanSession(rows)
}

func (s *Store) queryRequests(where string, args ...interface{}) ([]models.SessionRequest, error) {
	rows, err := s.db.Query(selectRequest+` `+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, storagef("query requests: %v", err)
	}
	defer rows.Close()

	var out []models.SessionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func fromNull(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
