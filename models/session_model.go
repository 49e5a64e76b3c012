package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/tutorlinkhq/tutorlink/lifecycle"
)

// Session is a confirmed, schedulable session. Its ID is carried over
// from the originating SessionRequest so either persistence path can
// find the record by the same key.
type Session struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	StudentID     uuid.UUID `gorm:"not null" json:"student_id"`
	TutorID       uuid.UUID `gorm:"not null" json:"tutor_id"`
	Subject       string    `gorm:"size:100;not null" json:"subject"`
	ScheduledDate time.Time `gorm:"not null" json:"scheduled_date"`
	StartTime     string    `gorm:"size:5;not null" json:"start_time"`
	EndTime       string    `gorm:"size:5;not null" json:"end_time"`

	Status             lifecycle.Status `gorm:"size:20;not null;default:'approved'" json:"status"`
	MeetingLink        *string          `gorm:"size:255" json:"meeting_link"`
	Rating             *int             `json:"rating"`
	CancellationReason *string          `gorm:"size:500" json:"cancellation_reason"`

	Student User `gorm:"foreignkey:StudentID" json:"student,omitempty"`
	Tutor   User `gorm:"foreignkey:TutorID" json:"tutor,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
