package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/tutorlinkhq/tutorlink/middleware"
)

func GetMyNotifications(c *fiber.Ctx) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}
	notifications, err := mediator.NotificationsFor(actor.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(notifications)
}

func GetUnreadCount(c *fiber.Ctx) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}
	count, err := mediator.UnreadCount(actor.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": count})
}

func MarkNotificationRead(c *fiber.Ctx) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}
	notificationID, err := uuid.Parse(c.Params("notificationId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid notification id"})
	}
	if err := mediator.MarkRead(notificationID, actor.ID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Notification marked as read"})
}

func MarkAllNotificationsRead(c *fiber.Ctx) error {
	actor, err := middleware.CallerActor(c)
	if err != nil {
		return err
	}
	if err := mediator.MarkAllRead(actor.ID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "All notifications marked as read"})
}
