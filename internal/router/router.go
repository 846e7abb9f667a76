package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/stagegate/booking-core/internal/handler"
	"github.com/stagegate/booking-core/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterBooking registers the booking session and reservation routes.
// Everything under /v1 requires a valid access token; the booking
// session requirements beyond that (device header, session header) are
// enforced per handler. The /v1/internal group is for trusted
// collaborators (payment) and is expected to be network-isolated.
func RegisterBooking(e *echo.Echo, s *handler.BookingSessionHandler, r *handler.ReservationHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	// admission -> session exchange and session liveness
	g.POST("/schedules/:id/booking-sessions", s.Create)
	g.POST("/schedules/:id/booking-sessions/ping", s.Ping)
	g.DELETE("/schedules/:id/booking-sessions/active", s.Leave)
	g.DELETE("/booking-sessions/:sessionId", s.Delete)

	// reservation lifecycle
	g.POST("/schedules/:id/reservations", r.Create)
	g.GET("/reservations/:id", r.Get)
	g.POST("/reservations/:id/seats", r.HoldSeats)
	g.DELETE("/reservations/:id/seats", r.ReleaseSeats)
	g.PATCH("/reservations/:id/delivery", r.UpdateDelivery)
	g.DELETE("/reservations/:id", r.Cancel)

	// versioned delta feed for seat-map polling
	g.GET("/schedules/:id/seat-changes", r.SeatChanges)

	// payment collaborator callback
	internal := e.Group("/v1/internal", middleware.JWTAuth(jwtSecret))
	internal.POST("/schedules/:id/reservations/:reservationId/paid", r.ConfirmPaid)
}
