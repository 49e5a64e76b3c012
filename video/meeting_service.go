package video

import (
	"fmt"

	"github.com/google/uuid"
	config "github.com/tutorlinkhq/tutorlink/configs"
	"github.com/tutorlinkhq/tutorlink/utils"
)

// CreateMeetingRoom asks the meeting provider for a joinable room
// reference for the session. The core only stores and gates access to
// the returned reference; media negotiation happens entirely on the
// provider side.
func CreateMeetingRoom(sessionID uuid.UUID) string {
	base := config.Config("MEETING_BASE_URL")
	if base == "" {
		base = "https://meet.jit.si"
	}
	return fmt.Sprintf("%s/tutorlink-%s-%s", base, sessionID.String()[:8], utils.GenerateMeetingCode())
}
