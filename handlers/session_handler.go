package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/tutorlinkhq/tutorlink/database"
	"github.com/tutorlinkhq/tutorlink/lifecycle"
	"github.com/tutorlinkhq/tutorlink/middleware"
	"github.com/tutorlinkhq/tutorlink/mirror"
	"github.com/tutorlinkhq/tutorlink/models"
	"github.com/tutorlinkhq/tutorlink/notifications"
	"github.com/tutorlinkhq/tutorlink/persistence"
	"github.com/tutorlinkhq/tutorlink/video"
	ws "github.com/tutorlinkhq/tutorlink/websocket"
)

var validate = validator.New()

var (
	mediator *persistence.Mediator
	hub      *ws.Hub
)

// Setup wires the shared mediator and hub into the handler package.
func Setup(m *persistence.Mediator, h *ws.Hub) {
	mediator = m
	hub = h
}

// respondError maps the error taxonomy onto HTTP. Policy rejections and
// storage failures reach the user; unavailable never appears here - the
// mediator absorbs it.
func respondError(c *fiber.Ctx, err error) error {
	var pe *lifecycle.PolicyError
	if errors.As(err, &pe) {
		code := fiber.StatusBadRequest
		switch pe.Code {
		case lifecycle.ReasonNotFound:
			code = fiber.StatusNotFound
		case lifecycle.ReasonRoleNotAllowed:
			code = fiber.StatusForbidden
		}
		return c.Status(code).JSON(fiber.Map{"error": pe.Message, "code": pe.Code})
	}
	if errors.Is(err, mirror.ErrStorage) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Local storage failure, please retry"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Something went wrong"})
}

type CreateSessionRequestBody struct {
	TutorID       string  `json:"tutor_id" validate:"required,uuid"`
	Subject       string  `json:"subject" validate:"required,max=100"`
	ProposedDate  string  `json:"proposed_date" validate:"required,datetime=2006-01-02"`
	StartTime     string  `json:"start_time" validate:"required,datetime=15:04"`
	EndTime       string  `json:"end_time" validate:"required,datetime=15:04"`
	DurationHours float64 `json:"duration_hours" validate:"required,gt=0"`
	SessionType   string  `json:"session_type" validate:"required,oneof=online in-person"`
	Description   *string `json:"description" validate:"omitempty,max=500"`
	HourlyRate    float64 `json:"hourly_rate" validate:"gte=0"`
}

func CreateSessionRequest(c *fiber.Ctx) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}

	var body CreateSessionRequestBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	tutorID, _ := uuid.Parse(body.TutorID)
	proposedDate, _ := time.Parse("2006-01-02", body.ProposedDate)

	// Snapshot the tutor's advertised rate when the profile is
	// reachable; otherwise the client-supplied rate stands.
	rate := body.HourlyRate
	var tutor models.User
	if err := database.DB.First(&tutor, "id = ? AND role = ?", tutorID, "tutor").Error; err == nil {
		rate = tutor.HourlyRate
	}

	req, err := mediator.CreateRequest(actor, persistence.CreateRequestInput{
		TutorID:       tutorID,
		Subject:       body.Subject,
		ProposedDate:  proposedDate,
		StartTime:     body.StartTime,
		EndTime:       body.EndTime,
		DurationHours: body.DurationHours,
		SessionType:   body.SessionType,
		Description:   body.Description,
		HourlyRate:    rate,
	})
	if err != nil {
		return respondError(c, err)
	}

	go emailUser(req.TutorID, "New Session Request",
		fmt.Sprintf("<h1>New Session Request</h1><p>A student has requested a %s session for %s on %s.</p>",
			req.SessionType, req.Subject, req.ProposedDate.Format("2006-01-02")))

	return c.Status(fiber.StatusCreated).JSON(req)
}

func GetMyRequests(c *fiber.Ctx) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}
	reqs, err := mediator.RequestsForStudent(actor.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reqs)
}

func GetIncomingRequests(c *fiber.Ctx) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}
	reqs, err := mediator.RequestsForTutor(actor.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reqs)
}

func ApproveSessionRequest(c *fiber.Ctx) error {
	return resolveRequest(c, true)
}

func RejectSessionRequest(c *fiber.Ctx) error {
	return resolveRequest(c, false)
}

type ResolveRequestBody struct {
	Reason string `json:"reason"`
}

func resolveRequest(c *fiber.Ctx, approve bool) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}
	requestID, err := uuid.Parse(c.Params("requestId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request id"})
	}

	var body ResolveRequestBody
	if err := c.BodyParser(&body); err != nil && !approve {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	req, sess, err := mediator.ResolveRequest(actor, requestID, approve, body.Reason)
	if err != nil {
		return respondError(c, err)
	}

	if approve {
		go emailUser(req.StudentID, "Your Session Request Was Approved",
			fmt.Sprintf("<h1>Request Approved</h1><p>Your %s session on %s has been confirmed.</p>",
				req.Subject, req.ProposedDate.Format("2006-01-02")))
		return c.JSON(fiber.Map{"request": req, "session": sess})
	}
	go emailUser(req.StudentID, "Your Session Request Was Declined",
		fmt.Sprintf("<h1>Request Declined</h1><p>Your %s session request was declined: %s</p>",
			req.Subject, body.Reason))
	return c.JSON(fiber.Map{"request": req})
}

func GetMySessions(c *fiber.Ctx) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}
	sessions, err := mediator.SessionsForUser(actor.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sessions)
}

type CancelSessionBody struct {
	Reason string `json:"reason" validate:"required"`
}

func CancelSession(c *fiber.Ctx) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var body CancelSessionBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sess, err := mediator.UpdateSessionStatus(actor, sessionID, lifecycle.StatusCancelled, body.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sess)
}

func StartSession(c *fiber.Ctx) error {
	return transitionSession(c, lifecycle.StatusInProgress)
}

func CompleteSession(c *fiber.Ctx) error {
	return transitionSession(c, lifecycle.StatusCompleted)
}

// MarkSessionNoShow is a manual operator action, never automated.
func MarkSessionNoShow(c *fiber.Ctx) error {
	return transitionSession(c, lifecycle.StatusNoShow)
}

func transitionSession(c *fiber.Ctx, status lifecycle.Status) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	sess, err := mediator.UpdateSessionStatus(actor, sessionID, status, "")
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sess)
}

type RateSessionBody struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

func RateSession(c *fiber.Ctx) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var body RateSessionBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sess, err := mediator.RateSession(actor, sessionID, body.Rating)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sess)
}

// StartVideoCall asks the meeting provider for a room, stores the
// reference on the session and announces it to the room. Only sessions
// that are approved or already running can host a call.
func StartVideoCall(c *fiber.Ctx) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	sess, err := mediator.GetSession(sessionID)
	if err != nil {
		return respondError(c, err)
	}
	if sess.TutorID != actor.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You are not the tutor for this session"})
	}
	if sess.Status != lifecycle.StatusApproved && sess.Status != lifecycle.StatusInProgress {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Video calls are only available for approved or running sessions"})
	}

	link := sess.MeetingLink
	if link == nil {
		room := video.CreateMeetingRoom(sessionID)
		link = &room
		if sess, err = mediator.SetMeetingLink(sessionID, link); err != nil {
			return respondError(c, err)
		}
	}

	hub.Emit(sessionID, uuid.Nil, ws.Event{Event: ws.EventVideoCallStarted, Payload: fiber.Map{
		"session_id":   sessionID.String(),
		"meeting_link": *link,
	}})
	return c.JSON(fiber.Map{"meeting_link": *link, "session": sess})
}

func EndVideoCall(c *fiber.Ctx) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	sess, err := mediator.GetSession(sessionID)
	if err != nil {
		return respondError(c, err)
	}
	if sess.TutorID != actor.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You are not the tutor for this session"})
	}

	if _, err := mediator.SetMeetingLink(sessionID, nil); err != nil {
		return respondError(c, err)
	}
	hub.Emit(sessionID, uuid.Nil, ws.Event{Event: ws.EventVideoCallEnded, Payload: fiber.Map{
		"session_id": sessionID.String(),
	}})
	return c.JSON(fiber.Map{"message": "Video call ended"})
}

func GetSessionMessages(c *fiber.Ctx) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	sess, err := mediator.GetSession(sessionID)
	if err != nil {
		return respondError(c, err)
	}
	if sess.StudentID != actor.ID && sess.TutorID != actor.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "This is not your session"})
	}

	messages, err := mediator.MessagesForSession(sessionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(messages)
}

// emailUser loads the recipient from the primary store and sends
// best-effort; with the primary down the in-app notification, written by
// the mirror path, still lands.
func emailUser(userID uuid.UUID, subject, htmlBody string) {
	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return
	}
	notifications.SendEmail(user.FullName, user.Email, subject, htmlBody)
}
