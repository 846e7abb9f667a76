package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/stagegate/booking-core/internal/repository"
	"github.com/stagegate/booking-core/internal/service"
)

// Header names the booking endpoints read.
const (
	headerDeviceID       = "X-Device-Id"
	headerBookingSession = "X-Booking-Session"
)

// getUserID extracts the authenticated user id set by the JWT
// middleware. JWT claims come back as float64 or string depending on
// how the token was minted, so all plausible types are accepted.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}

// writeServiceError translates the service error taxonomy to HTTP. A
// *SeatHoldConflictError becomes the 409 payload polling clients merge
// into their seat map.
func writeServiceError(c echo.Context, err error) error {
	var conflict *service.SeatHoldConflictError
	if errors.As(err, &conflict) {
		return c.JSON(http.StatusConflict, echo.Map{
			"reservationId":   conflict.ReservationID,
			"refreshRequired": true,
			"conflicts":       conflict.Conflicts,
			"updatedAt":       conflict.UpdatedAt,
		})
	}

	switch {
	case errors.Is(err, service.ErrReservationNotFound),
		errors.Is(err, service.ErrSeatNotFound),
		errors.Is(err, repository.ErrScheduleNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})

	case errors.Is(err, service.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})

	case errors.Is(err, service.ErrInvalidWaitingToken),
		errors.Is(err, service.ErrQueueSlotExpired),
		errors.Is(err, service.ErrBookingSessionExpired),
		errors.Is(err, service.ErrInvalidBookingSession),
		errors.Is(err, service.ErrNotInActive):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})

	case errors.Is(err, service.ErrScheduleMismatch),
		errors.Is(err, service.ErrSessionScheduleMismatch),
		errors.Is(err, service.ErrTooManySeats),
		errors.Is(err, service.ErrNoSeatsReserved):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})

	case errors.Is(err, service.ErrDeviceMismatch),
		errors.Is(err, service.ErrDeviceAlreadyUsed):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})

	case errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrInvalidReservationStatus),
		errors.Is(err, service.ErrReservationAlreadyExists),
		errors.Is(err, service.ErrDuplicateRequest),
		errors.Is(err, service.ErrCancelDeadlinePassed):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})

	case errors.Is(err, service.ErrReservationExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
