// Package handler содержит HTTP-обработчики портала фестиваля.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/festival-portal/internal/middleware"
	"github.com/mmeshcher/festival-portal/internal/model"
	"github.com/mmeshcher/festival-portal/internal/repository"
	"github.com/mmeshcher/festival-portal/internal/service"
	"github.com/mmeshcher/festival-portal/internal/thepay"
	"github.com/mmeshcher/festival-portal/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateSubmission(ctx context.Context, req *validation.FilmRequest) (*model.Film, error)
	GetFilm(ctx context.Context, id int64) (*model.Film, error)
	BuildPaymentRedirect(ctx context.Context, filmID int64, amount thepay.Amount, description, returnURL, cancelURL string) (*service.PaymentRedirect, error)
	PayRegistration(ctx context.Context, filmID int64) (*service.PaymentRedirect, error)
	RetryPayment(ctx context.Context, paymentID int64) (*service.PaymentRedirect, error)
	HandleCallback(ctx context.Context, q url.Values) (*service.CallbackResult, error)

	RegisterStaff(ctx context.Context, login, password, inviteCode string) (int64, error)
	AuthenticateStaff(ctx context.Context, login, password string) (int64, error)
	ListFilms(ctx context.Context, status model.FilmStatus) ([]model.Film, error)
	FilmPayments(ctx context.Context, filmID int64) ([]model.Payment, error)
	ChangeStatus(ctx context.Context, filmID int64, next model.FilmStatus) (*model.Film, error)
	AddEvaluation(ctx context.Context, userID, filmID int64, like int, verbal string, technical *bool) (*model.Evaluation, error)
	GetRating(ctx context.Context, filmID int64) (*model.Rating, error)
	ListEmails(ctx context.Context, onlyFailed bool, limit int) ([]model.Email, error)
	ResendEmail(ctx context.Context, id int64) (*model.Email, error)
	RemindUnpaid(ctx context.Context) (int, error)
}

// Handler реализует HTTP-обработчики портала фестиваля.
type Handler struct {
	service   Service
	logger    *zap.Logger
	staffAuth *middleware.StaffAuth
	metrics   http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// metrics может быть nil, тогда /metrics не публикуется.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.StaffAuth, metrics http.Handler) *Handler {
	return &Handler{
		service:   s,
		logger:    logger,
		staffAuth: auth,
		metrics:   metrics,
	}
}

// writeError переводит ошибку бизнес-логики в HTTP-ответ.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, validation.ErrInvalid),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidEvaluation),
		errors.Is(err, service.ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, service.ErrInvalidCallback):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrFilmNotFound),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrEmailNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, repository.ErrDuplicatePayment),
		errors.Is(err, repository.ErrUserExists),
		errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrPaymentNotRetryable),
		errors.Is(err, model.ErrTransitionNotAllowed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrInvalidCredentials):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	case errors.Is(err, service.ErrInvalidInviteCode):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	default:
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
