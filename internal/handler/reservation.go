package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stagegate/booking-core/internal/model"
	"github.com/stagegate/booking-core/internal/service"
)

// ReservationHandler exposes the reservation lifecycle and the seat
// hold engine.
type ReservationHandler struct {
	Reservations *service.ReservationService
	Holds        *service.SeatHoldService
}

func NewReservationHandler(reservations *service.ReservationService, holds *service.SeatHoldService) *ReservationHandler {
	return &ReservationHandler{Reservations: reservations, Holds: holds}
}

// Create handles POST /v1/schedules/:id/reservations. Requires a live
// booking session bound to the same schedule.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	scheduleID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}
	sessionID := c.Request().Header.Get(headerBookingSession)
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "X-Booking-Session header is required"})
	}

	res, err := h.Reservations.CreateReservation(c.Request().Context(), userID, scheduleID, sessionID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservationId": res.ID,
		"scheduleId":    res.ScheduleID,
		"status":        res.Status,
	})
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	res, seats, err := h.Reservations.GetReservation(c.Request().Context(), reservationID, userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	out := echo.Map{
		"reservationId": res.ID,
		"scheduleId":    res.ScheduleID,
		"status":        res.Status,
		"totalAmount":   res.TotalAmount,
		"heldSeats":     heldSeatViews(seats),
	}
	if res.ExpiresAt != nil {
		out["expiresAt"] = res.ExpiresAt.UTC().Format(time.RFC3339)
		out["remainingSeconds"] = int64(time.Until(*res.ExpiresAt).Seconds())
	}
	return c.JSON(http.StatusOK, out)
}

// HoldSeats handles POST /v1/reservations/:id/seats. All requested
// seats are taken or none; a conflict comes back as 409 with the
// per-seat reasons.
func (h *ReservationHandler) HoldSeats(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	seatIDs, err := bindSeatIDs(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.Holds.HoldSeats(c.Request().Context(), reservationID, seatIDs, userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ReleaseSeats handles DELETE /v1/reservations/:id/seats. Releasing the
// last held seat cancels the reservation.
func (h *ReservationHandler) ReleaseSeats(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	seatIDs, err := bindSeatIDs(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.Holds.ReleaseSeats(c.Request().Context(), reservationID, seatIDs, userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// UpdateDelivery handles PATCH /v1/reservations/:id/delivery.
func (h *ReservationHandler) UpdateDelivery(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		DeliveryMethod   string `json:"deliveryMethod"`
		RecipientName    string `json:"recipientName"`
		RecipientPhone   string `json:"recipientPhone"`
		RecipientAddress string `json:"recipientAddress"`
		RecipientZipCode string `json:"recipientZipCode"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.DeliveryMethod == "" || body.RecipientName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "deliveryMethod and recipientName are required"})
	}

	if err := h.Reservations.UpdateDeliveryInfo(c.Request().Context(), reservationID, userID,
		body.DeliveryMethod, body.RecipientName, body.RecipientPhone, body.RecipientAddress, body.RecipientZipCode); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Cancel handles DELETE /v1/reservations/:id. HOLD cancels refund
// nothing; PAID cancels refund the full total up to the cutoff.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	result, err := h.Reservations.CancelReservation(c.Request().Context(), reservationID, userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// SeatChanges handles GET /v1/schedules/:id/seat-changes?since=N, the
// versioned delta feed polling clients use to keep their seat map
// current.
func (h *ReservationHandler) SeatChanges(c echo.Context) error {
	scheduleID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}
	var since uint64
	if raw := c.QueryParam("since"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid since version"})
		}
		since = parsed
	}

	changes, err := h.Holds.GetSeatChanges(c.Request().Context(), scheduleID, since)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, changes)
}

// ConfirmPaid handles POST /v1/internal/schedules/:id/reservations/:reservationId/paid.
// The payment collaborator calls this after capture; every held seat
// goes SOLD and the reservation becomes PAID.
func (h *ReservationHandler) ConfirmPaid(c echo.Context) error {
	scheduleID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}
	reservationID, ok := pathID(c, "reservationId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	if err := h.Reservations.MarkSeatsAsSold(c.Request().Context(), scheduleID, reservationID); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func bindSeatIDs(c echo.Context) ([]uint64, error) {
	var body struct {
		SeatIDs []uint64 `json:"seatIds"`
	}
	if err := c.Bind(&body); err != nil {
		return nil, errors.New("invalid request body")
	}
	valid := make([]uint64, 0, len(body.SeatIDs))
	for _, id := range body.SeatIDs {
		if id != 0 {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, errors.New("seatIds is required")
	}
	return valid, nil
}

func heldSeatViews(rows []model.HeldSeat) []echo.Map {
	out := make([]echo.Map, 0, len(rows))
	for _, hs := range rows {
		out = append(out, echo.Map{"seatId": hs.SeatID, "price": hs.Price})
	}
	return out
}
