package main

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
	config "github.com/tutorlinkhq/tutorlink/configs"
	"github.com/tutorlinkhq/tutorlink/database"
	"github.com/tutorlinkhq/tutorlink/handlers"
	"github.com/tutorlinkhq/tutorlink/jobs"
	"github.com/tutorlinkhq/tutorlink/mirror"
	"github.com/tutorlinkhq/tutorlink/notifications"
	"github.com/tutorlinkhq/tutorlink/persistence"
	"github.com/tutorlinkhq/tutorlink/routes"
	"github.com/tutorlinkhq/tutorlink/websocket"
)

func main() {
	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()
	notifications.InitEmailService()

	mirrorPath := config.Config("MIRROR_DB_PATH")
	if mirrorPath == "" {
		mirrorPath = "tutorlink_mirror.db"
	}
	store, err := mirror.Open(mirrorPath)
	if err != nil {
		log.Fatalf("🔥 Failed to open mirror store: %v", err)
	}
	log.Println("✅ Mirror store ready at", mirrorPath)

	hub := websocket.NewHub()
	mediator := persistence.NewMediator(persistence.NewGormBackend(database.DB), store, hub)
	handlers.Setup(mediator, hub)

	c := cron.New()
	c.AddFunc("*/5 * * * *", jobs.SendSessionReminders)
	c.AddFunc("0 * * * *", jobs.NudgeStaleRequests)
	go c.Start()
	log.Println("✅ Cron jobs for reminders scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "TutorLink",
		CaseSensitive:     true,
		StrictRouting:     true,
		EnablePrintRoutes: true,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to TutorLink API",
		})
	})

	routes.SessionRoutes(app)
	routes.NotificationRoutes(app)
	routes.RealtimeRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	log.Println("✅ Server is running on port 8080")
	if err := app.Listen(":8080"); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
