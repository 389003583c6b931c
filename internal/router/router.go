// Package router wires the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticket-booking/internal/config"
	"github.com/iliyamo/event-ticket-booking/internal/handler"
	"github.com/iliyamo/event-ticket-booking/internal/metrics"
	"github.com/iliyamo/event-ticket-booking/internal/middleware"
)

// RegisterRoutes registers the unauthenticated infrastructure endpoints:
// health check and Prometheus metrics.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers the auth endpoints.  Register and login live
// under /v1/auth; /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated browse endpoints for
// events and seat availability.
func RegisterPublic(e *echo.Echo, ev *handler.EventHandler) {
	e.GET("/v1/events", ev.List)
	e.GET("/v1/events/:id", ev.Get)
	e.GET("/v1/events/:id/seats", ev.Seats)
}

// RegisterBooking registers the booking and payment endpoints.  All of
// them require authentication; the mutating ones additionally pass the
// Redis token bucket since seat contention invites hammering.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, p *handler.PaymentHandler, jwtSecret string, rl config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	limited := middleware.NewTokenBucket(rl, rdb)

	g.POST("/bookings", b.Hold, limited)
	g.GET("/bookings/:id", b.Get)
	g.GET("/my-bookings", b.List)
	g.DELETE("/bookings/:id", b.Cancel, limited)

	g.POST("/payments", p.Create, limited)

	// The webhook authenticates by HMAC signature, not by JWT.
	e.POST("/v1/payments/webhook", p.Webhook)
}
