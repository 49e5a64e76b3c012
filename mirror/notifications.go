package mirror

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/tutorlinkhq/tutorlink/models"
)

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func insertNotification(tx execer, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	var related interface{}
	if n.RelatedID != nil {
		related = n.RelatedID.String()
	}
	_, err := tx.Exec(`INSERT INTO notifications
		(id, recipient_id, type, title, message, related_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		n.ID.String(), n.RecipientID.String(), n.Type, n.Title, n.Message, related, n.CreatedAt)
	if err != nil {
		return storagef("insert notification: %v", err)
	}
	return nil
}

func (s *Store) CreateNotification(n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	return insertNotification(s.db, n)
}

func (s *Store) NotificationsFor(recipient uuid.UUID) ([]models.Notification, error) {
	rows, err := s.db.Query(`SELECT id, recipient_id, type, title, message,
		related_id, is_read, created_at
		FROM notifications WHERE recipient_id = ? ORDER BY rowid`, recipient.String())
	if err != nil {
		return nil, storagef("query notifications: %v", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n        models.Notification
			id, rcpt string
			related  sql.NullString
		)
		if err := rows.Scan(&id, &rcpt, &n.Type, &n.Title, &n.Message,
			&related, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, storagef("scan notification: %v", err)
		}
		n.ID = uuid.MustParse(id)
		n.RecipientID = uuid.MustParse(rcpt)
		if related.Valid {
			if u, err := uuid.Parse(related.String); err == nil {
				n.RelatedID = &u
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount is always recomputed from the rows, never cached.
func (s *Store) UnreadCount(recipient uuid.UUID) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM notifications
		WHERE recipient_id = ? AND is_read = 0`, recipient.String()).Scan(&count)
	if err != nil {
		return 0, storagef("count unread: %v", err)
	}
	return count, nil
}

// MarkRead marks one notification read; only its recipient may do so.
func (s *Store) MarkRead(id, recipient uuid.UUID) (bool, error) {
	res, err := s.db.Exec(`UPDATE notifications SET is_read = 1
		WHERE id = ? AND recipient_id = ?`, id.String(), recipient.String())
	if err != nil {
		return false, storagef("mark read: %v", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) MarkAllRead(recipient uuid.UUID) (int64, error) {
	res, err := s.db.Exec(`UPDATE notifications SET is_read = 1
		WHERE recipient_id = ? AND is_read = 0`, recipient.String())
	if err != nil {
		return 0, storagef("mark all read: %v", err)
	}
	return res.RowsAffected()
}

func (s *Store) CreateMessage(m *models.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO messages (id, session_id, sender_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID.String(), m.SessionID.String(), m.SenderID.String(), m.Content, m.CreatedAt)
	if err != nil {
		return storagef("insert message: %v", err)
	}
	return nil
}

func (s *Store) MessagesForSession(sessionID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, session_id, sender_id, content, read_at, created_at
		FROM messages WHERE session_id = ? ORDER BY rowid`, sessionID.String())
	if err != nil {
		return nil, storagef("query messages: %v", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var (
			m                  models.Message
			id, sessID, sender string
			readAt             sql.NullTime
		)
		if err := rows.Scan(&id, &sessID, &sender, &m.Content, &readAt, &m.CreatedAt); err != nil {
			return nil, storagef("scan message: %v", err)
		}
		m.ID = uuid.MustParse(id)
		m.SessionID = uuid.MustParse(sessID)
		m.SenderID = uuid.MustParse(sender)
		if readAt.Valid {
			t := readAt.Time
			m.ReadAt = &t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
