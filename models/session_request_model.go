package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/tutorlinkhq/tutorlink/lifecycle"
)

type SessionRequest struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	StudentID     uuid.UUID `gorm:"not null" json:"student_id"`
	TutorID       uuid.UUID `gorm:"not null" json:"tutor_id"`
	Subject       string    `gorm:"size:100;not null" json:"subject"`
	ProposedDate  time.Time `gorm:"not null" json:"proposed_date"`
	StartTime     string    `gorm:"size:5;not null" json:"start_time"`
	EndTime       string    `gorm:"size:5;not null" json:"end_time"`
	DurationHours float64   `gorm:"type:numeric(4,2);not null" json:"duration_hours"`
	SessionType   string    `gorm:"size:20;not null;default:'online'" json:"session_type"`
	Description   *string   `gorm:"size:500" json:"description"`

	// Price is locked when the request is created and never recomputed:
	// TotalCost == DurationHours * HourlyRate as of creation time.
	HourlyRate float64 `gorm:"type:numeric(10,2);not null" json:"hourly_rate"`
	TotalCost  float64 `gorm:"type:numeric(10,2);not null" json:"total_cost"`

	Status          lifecycle.Status `gorm:"size:20;not null;default:'pending'" json:"status"`
	ResolvedBy      *uuid.UUID       `json:"resolved_by"`
	RejectionReason *string          `gorm:"size:500" json:"rejection_reason"`

	Student User `gorm:"foreignkey:StudentID" json:"student,omitempty"`
	Tutor   User `gorm:"foreignkey:TutorID" json:"tutor,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
