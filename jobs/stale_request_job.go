package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/tutorlinkhq/tutorlink/database"
	"github.com/tutorlinkhq/tutorlink/lifecycle"
	"github.com/tutorlinkhq/tutorlink/models"
	"github.com/tutorlinkhq/tutorlink/notifications"
)

// NudgeStaleRequests notifies tutors about requests that have sat
// pending for a day. The one hour window matches the cron cadence so a
// tutor is nudged once per request. Requests are never expired here;
// only the tutor or student can resolve them.
func NudgeStaleRequests() {
	log.Println("Running job: NudgeStaleRequests...")

	upperBound := time.Now().Add(-24 * time.Hour)
	lowerBound := time.Now().Add(-25 * time.Hour)

	var stale []models.SessionRequest
	err := database.DB.
		Preload("Student").
		Preload("Tutor").
		Where("status = ? AND created_at BETWEEN ? AND ?", string(lifecycle.StatusPending), lowerBound, upperBound).
		Find(&stale).Error
	if err != nil {
		log.Printf("Error checking for stale requests: %v", err)
		return
	}

	for _, req := range stale {
		log.Printf("Nudging tutor %s about stale request ID: %s", req.TutorID, req.ID)

		notification := models.Notification{
			RecipientID: req.TutorID,
			Type:        models.NotificationSystem,
			Title:       "Request Awaiting Your Response",
			Message:     fmt.Sprintf("%s's request for a %s session has been waiting for a day. Please approve or reject it.", req.Student.FullName, req.Subject),
			RelatedID:   &req.ID,
		}
		if err := database.DB.Create(&notification).Error; err != nil {
			log.Printf("Error creating nudge notification: %v", err)
		}

		emailBody := fmt.Sprintf(
			"<h1>Pending Session Request</h1><p>Hi %s,</p><p>%s requested a %s session over a day ago and is still waiting for your answer.</p><p>Please log in and respond.</p>",
			req.Tutor.FullName, req.Student.FullName, req.Subject,
		)
		go notifications.SendEmail(req.Tutor.FullName, req.Tutor.Email, "A session request is waiting for you", emailBody)
	}
}
