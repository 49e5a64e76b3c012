package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tutorlinkhq/tutorlink/handlers"
	"github.com/tutorlinkhq/tutorlink/middleware"
)

func NotificationRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	notifications := api.Group("/notifications", middleware.Protected())
	notifications.Get("", handlers.GetMyNotifications)
	notifications.Get("/unread-count", handlers.GetUnreadCount)
	notifications.Post("/:notificationId/read", handlers.MarkNotificationRead)
	notifications.Post("/read-all", handlers.MarkAllNotificationsRead)
}
