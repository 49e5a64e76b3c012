package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"

	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	configs "github.com/tutorlinkhq/tutorlink/configs"
	"github.com/tutorlinkhq/tutorlink/lifecycle"
	"github.com/tutorlinkhq/tutorlink/models"
	"github.com/tutorlinkhq/tutorlink/reconcile"
	ws "github.com/tutorlinkhq/tutorlink/websocket"
)

// ClientIntent is what clients send over the socket: a closed set of
// typed intents rather than an open dictionary.
type ClientIntent struct {
	Type      string `json:"type"` // join | leave | message | typing | stopTyping | updateStatus
	SessionID string `json:"session_id"`
	Content   string `json:"content,omitempty"`
	Status    string `json:"status,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ServeWs authenticates the connection, registers it with the hub and
// services intents until the socket closes. Each joined room gets a
// reconciliation watch that re-fires status updates the push channel
// may have lost; the watch is cancelled deterministically when the room
// is left or the connection goes away.
func ServeWs(c *websocketcontrib.Conn) {
	type AuthMessage struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	}
	var authMsg AuthMessage
	if err := c.ReadJSON(&authMsg); err != nil || authMsg.Type != "auth" {
		_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
		c.Close()
		return
	}

	claims, err := parseToken(authMsg.Token)
	if err != nil {
		_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
		c.Close()
		return
	}
	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		_ = c.WriteJSON(fiber.Map{"error": "Invalid user ID"})
		c.Close()
		return
	}
	role, _ := claims["role"].(string)
	actor := lifecycle.Actor{ID: userID, Role: lifecycle.Role(role)}

	client := &ws.Client{UserID: userID, Conn: c}
	hub.Register(client)

	poller := reconcile.New(mediator.CurrentStatus)
	watches := make(map[uuid.UUID]context.CancelFunc)
	defer func() {
		for _, cancel := range watches {
			cancel()
		}
		hub.Unregister(client)
		c.Close()
	}()

	for {
		var intent ClientIntent
		if err := c.ReadJSON(&intent); err != nil {
			if websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseAbnormalClosure) {
				log.Printf("WebSocket closed for client %s: %v", userID, err)
			} else {
				log.Printf("WebSocket read error for client %s: %v", userID, err)
			}
			break
		}

		sessionID, err := uuid.Parse(intent.SessionID)
		if err != nil {
			_ = client.Send(fiber.Map{"error": "Invalid session ID"})
			continue
		}

		switch intent.Type {
		case "join":
			if !isParticipant(sessionID, actor.ID) {
				_ = client.Send(fiber.Map{"error": "This is not your session"})
				continue
			}
			hub.Join(sessionID, client)
			if _, ok := watches[sessionID]; !ok {
				ctx, cancel := context.WithCancel(context.Background())
				watches[sessionID] = cancel
				startWatch(ctx, poller, sessionID, client)
			}

		case "leave":
			hub.Leave(sessionID, client)
			if cancel, ok := watches[sessionID]; ok {
				cancel()
				delete(watches, sessionID)
			}

		case "message":
			if intent.Content == "" {
				_ = client.Send(fiber.Map{"error": "Message content is required"})
				continue
			}
			msg := &models.Message{SessionID: sessionID, SenderID: userID, Content: intent.Content}
			if err := mediator.CreateMessage(msg); err != nil {
				_ = client.Send(fiber.Map{"error": "Failed to save message"})
				continue
			}
			hub.Emit(sessionID, userID, ws.Event{Event: ws.EventNewMessage, Payload: msg})
			notifyNewMessage(sessionID, userID, msg)

		case "typing":
			hub.Emit(sessionID, userID, ws.Event{Event: ws.EventUserTyping, Payload: fiber.Map{
				"session_id": sessionID.String(), "user_id": userID.String(),
			}})

		case "stopTyping":
			hub.Emit(sessionID, userID, ws.Event{Event: ws.EventUserStoppedTyping, Payload: fiber.Map{
				"session_id": sessionID.String(), "user_id": userID.String(),
			}})

		case "updateStatus":
			if intent.Status == "" {
				_ = client.Send(fiber.Map{"error": "Status is required"})
				continue
			}
			if _, err := mediator.UpdateSessionStatus(actor, sessionID, lifecycle.Status(intent.Status), intent.Reason); err != nil {
				var pe *lifecycle.PolicyError
				if errors.As(err, &pe) {
					_ = client.Send(fiber.Map{"error": pe.Message, "code": pe.Code})
				} else {
					_ = client.Send(fiber.Map{"error": "Failed to update status"})
				}
			}

		default:
			_ = client.Send(fiber.Map{"error": "Unknown intent type"})
		}
	}
}

// startWatch re-applies lost transitions to this connection only: the
// watch writes the same sessionStatusUpdated event the hub would have
// pushed, so the receiving side runs identical handling either way.
func startWatch(ctx context.Context, poller *reconcile.Poller, sessionID uuid.UUID, client *ws.Client) {
	last, err := mediator.CurrentStatus(sessionID)
	if err != nil {
		last = lifecycle.StatusPending
	}
	poller.Watch(ctx, sessionID, last, func(old, current lifecycle.Status) {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = client.Send(ws.Event{Event: ws.EventSessionStatusUpdated, Payload: fiber.Map{
			"session_id":      sessionID.String(),
			"previous_status": string(old),
			"status":          string(current),
		}})
	})
}

func isParticipant(sessionID, userID uuid.UUID) bool {
	if sess, err := mediator.GetSession(sessionID); err == nil {
		return sess.StudentID == userID || sess.TutorID == userID
	}
	if req, err := mediator.GetRequest(sessionID); err == nil {
		return req.StudentID == userID || req.TutorID == userID
	}
	return false
}

func notifyNewMessage(sessionID, senderID uuid.UUID, msg *models.Message) {
	sess, err := mediator.GetSession(sessionID)
	if err != nil {
		return
	}
	recipient := sess.StudentID
	if senderID == sess.StudentID {
		recipient = sess.TutorID
	}
	_ = mediator.CreateNotification(&models.Notification{
		RecipientID: recipient,
		Type:        models.NotificationNewMessage,
		Title:       "New Message",
		Message:     fmt.Sprintf("You have a new message in your %s session.", sess.Subject),
		RelatedID:   &msg.SessionID,
		CreatedAt:   msg.CreatedAt,
	})
}

func parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(configs.Config("JWT_SECRET")), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
