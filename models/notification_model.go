package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationRequestCreated = "request-created"
	NotificationApproved       = "approved"
	NotificationRejected       = "rejected"
	NotificationCancelled      = "cancelled"
	NotificationCompleted      = "completed"
	NotificationRatingReceived = "rating-received"
	NotificationNewMessage     = "new-message"
	NotificationSystem         = "system"
)

type Notification struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	RecipientID uuid.UUID  `gorm:"not null" json:"recipient_id"`
	Type        string     `gorm:"size:30;not null" json:"type"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Message     string     `gorm:"type:text" json:"message"`
	RelatedID   *uuid.UUID `json:"related_id"`
	IsRead      bool       `gorm:"not null;default:false" json:"is_read"`

	CreatedAt time.Time `json:"created_at"`
}
