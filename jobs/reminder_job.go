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

// SendSessionReminders mails both parties of sessions starting in about
// an hour. The window matches the cron cadence so each session is
// reminded once.
func SendSessionReminders() {
	log.Println("Running job: SendSessionReminders...")

	now := time.Now()
	lowerBound := now.Add(60 * time.Minute)
	upperBound := now.Add(65 * time.Minute)

	var upcoming []models.Session
	err := database.DB.
		Preload("Student").
		Preload("Tutor").
		Where("status = ? AND scheduled_date BETWEEN ? AND ?",
			string(lifecycle.StatusApproved), now.Add(-24*time.Hour), now.Add(24*time.Hour)).
		Find(&upcoming).Error
	if err != nil {
		log.Printf("Error checking for upcoming sessions: %v", err)
		return
	}

	for _, sess := range upcoming {
		start, err := sessionStart(sess)
		if err != nil || start.Before(lowerBound) || start.After(upperBound) {
			continue
		}

		log.Printf("Sending reminder for session ID: %s", sess.ID)

		joinLine := ""
		if sess.MeetingLink != nil {
			joinLine = fmt.Sprintf("<p><b>Meeting Link:</b> <a href='%s'>Join Session</a></p>", *sess.MeetingLink)
		}
		emailSubject := "Reminder: Your Session Starts in 1 Hour!"
		emailBody := fmt.Sprintf(
			"<h1>Session Reminder</h1><p>Hi there,</p><p>This is a friendly reminder that your %s session is scheduled to start at %s.</p>%s",
			sess.Subject, start.Format(time.Kitchen), joinLine,
		)

		go notifications.SendEmail(sess.Student.FullName, sess.Student.Email, emailSubject, emailBody)
		go notifications.SendEmail(sess.Tutor.FullName, sess.Tutor.Email, emailSubject, emailBody)
	}
}

// sessionStart combines the scheduled date with the HH:MM start time.
func sessionStart(sess models.Session) (time.Time, error) {
	t, err := time.ParseInLocation("15:04", sess.StartTime, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	d := sess.ScheduledDate
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.Local), nil
}
