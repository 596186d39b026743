package sandbox

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"example.com/gymbooking/internal/auth"
)

// Routes wires the booking API onto a chi router. Auth, OTP and class listing routes are public;
// everything else needs a bearer token.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.login)
		r.Post("/auth/send-otp", h.sendOtp)
		r.Post("/auth/reset-password", h.resetPassword)
		r.Post("/users/register", h.register)
		r.Post("/users/verify-otp", h.verifyOtp)
		r.Get("/classes", h.listClasses)
		r.Get("/classes/{id}", h.getClass)

		r.Group(func(r chi.Router) {
			r.Use(auth.Require(h.tokens))
			r.Post("/reservations", h.createReservation)
			r.Post("/reservations/{id}/cancel", h.cancelReservation)
			r.Get("/users/history", h.history)
			r.Get("/users/{id}", h.getUser)
		})
	})
	return r
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			next.ServeHTTP(ww, r)
			logger.Printf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(started).Round(time.Millisecond))
		})
	}
}
