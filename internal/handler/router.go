package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/festival-portal/internal/middleware"
	"github.com/mmeshcher/festival-portal/internal/notify"
)

// SetupRouter настраивает HTTP-маршруты и middleware портала фестиваля.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.Metrics)

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)

		r.Get("/thepay/callback", h.ThePayCallback)

		for _, prefix := range []string{notify.PayRegistrationPathCS, notify.PayRegistrationPathEN} {
			r.Get(prefix+"/{id}/{slug}", h.PayRegistrationLink)
			r.Get(prefix+"/{id}/{slug}/", h.PayRegistrationLink)
		}
		for _, prefix := range []string{notify.RepeatPaymentPathCS, notify.RepeatPaymentPathEN} {
			r.Get(prefix+"/{paymentID}", h.RepeatPaymentLink)
			r.Get(prefix+"/{paymentID}/", h.RepeatPaymentLink)
		}

		r.Route("/api/films", func(r chi.Router) {
			r.Post("/", h.CreateFilm)
			r.Get("/{id}", h.GetFilm)
			r.Get("/{id}/payment", h.GetPayment)
			r.Post("/{id}/payment", h.CreatePayment)
		})

		r.Route("/api/staff", func(r chi.Router) {
			r.Post("/register", h.RegisterStaff)
			r.Post("/login", h.LoginStaff)
			r.Post("/logout", h.LogoutStaff)

			r.Group(func(r chi.Router) {
				r.Use(h.staffAuth.Middleware)

				r.Get("/films", h.ListFilms)
				r.Get("/films/{id}/payments", h.FilmPayments)
				r.Put("/films/{id}/status", h.ChangeStatus)
				r.Post("/films/{id}/evaluations", h.AddEvaluation)
				r.Get("/films/{id}/rating", h.GetRating)

				r.Get("/emails", h.ListEmails)
				r.Post("/emails/{id}/resend", h.ResendEmail)
				r.Post("/reminders", h.RemindUnpaid)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
