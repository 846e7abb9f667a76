package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stagegate/booking-core/internal/service"
)

// BookingSessionHandler exposes the admission-to-session exchange and
// the session liveness endpoints.
type BookingSessionHandler struct {
	Sessions *service.BookingSessionService
}

func NewBookingSessionHandler(sessions *service.BookingSessionService) *BookingSessionHandler {
	return &BookingSessionHandler{Sessions: sessions}
}

// Create handles POST /v1/schedules/:id/booking-sessions. The caller
// presents the waiting token it got from the queue service plus its
// device id; on success the admission records are consumed and a
// booking session is returned. 201 for a fresh session, 200 when the
// caller's live session was reused.
func (h *BookingSessionHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	scheduleID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}
	deviceID := c.Request().Header.Get(headerDeviceID)
	if deviceID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "X-Device-Id header is required"})
	}
	var body struct {
		WaitingToken string `json:"waitingToken"`
	}
	if err := c.Bind(&body); err != nil || body.WaitingToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "waitingToken is required"})
	}

	session, err := h.Sessions.CreateWithWaitingToken(c.Request().Context(), userID, scheduleID, deviceID, body.WaitingToken)
	if err != nil {
		return writeServiceError(c, err)
	}
	status := http.StatusCreated
	if session.Reused {
		status = http.StatusOK
	}
	return c.JSON(status, session)
}

// Ping handles POST /v1/schedules/:id/booking-sessions/ping and
// refreshes the session heartbeat in the active set.
func (h *BookingSessionHandler) Ping(c echo.Context) error {
	scheduleID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}
	sessionID := c.Request().Header.Get(headerBookingSession)
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "X-Booking-Session header is required"})
	}
	if err := h.Sessions.Ping(c.Request().Context(), scheduleID, sessionID); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Leave handles DELETE /v1/schedules/:id/booking-sessions/active. It
// drops the session from the active set without destroying it; the
// seat-map page calls this when the user navigates away.
func (h *BookingSessionHandler) Leave(c echo.Context) error {
	scheduleID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}
	sessionID := c.Request().Header.Get(headerBookingSession)
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "X-Booking-Session header is required"})
	}
	if err := h.Sessions.LeaveActive(c.Request().Context(), scheduleID, sessionID); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete handles DELETE /v1/booking-sessions/:sessionId and tears the
// session fully down. Deleting an already-gone session is a 204 too;
// the operation is idempotent.
func (h *BookingSessionHandler) Delete(c echo.Context) error {
	sessionID := c.Param("sessionId")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	if _, err := h.Sessions.DeleteBySessionID(c.Request().Context(), sessionID); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
