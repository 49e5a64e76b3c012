package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tutorlinkhq/tutorlink/handlers"
	"github.com/tutorlinkhq/tutorlink/middleware"
)

func SessionRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	requests := api.Group("/requests", middleware.Protected())
	requests.Post("", handlers.CreateSessionRequest)
	requests.Get("/me", handlers.GetMyRequests)

	tutorRequests := api.Group("/tutor/requests", middleware.Protected(), middleware.TutorRequired())
	tutorRequests.Get("", handlers.GetIncomingRequests)
	tutorRequests.Post("/:requestId/approve", handlers.ApproveSessionRequest)
	tutorRequests.Post("/:requestId/reject", handlers.RejectSessionRequest)

	sessions := api.Group("/sessions", middleware.Protected())
	sessions.Get("/me", handlers.GetMySessions)
	sessions.Post("/:sessionId/cancel", handlers.CancelSession)
	sessions.Post("/:sessionId/rate", handlers.RateSession)
	sessions.Get("/:sessionId/messages", handlers.GetSessionMessages)

	tutorSessions := api.Group("/tutor/sessions", middleware.Protected(), middleware.TutorRequired())
	tutorSessions.Post("/:sessionId/start", handlers.StartSession)
	tutorSessions.Post("/:sessionId/complete", handlers.CompleteSession)
	tutorSessions.Post("/:sessionId/video/start", handlers.StartVideoCall)
	tutorSessions.Post("/:sessionId/video/end", handlers.EndVideoCall)

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())
	admin.Post("/sessions/:sessionId/no-show", handlers.MarkSessionNoShow)
}
