package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mmeshcher/festival-portal/internal/middleware"
	"github.com/mmeshcher/festival-portal/internal/model"
	"github.com/mmeshcher/festival-portal/internal/thepay"
)

type credentialsRequest struct {
	Login      string `json:"login"`
	Password   string `json:"password"`
	InviteCode string `json:"invite_code,omitempty"`
}

// RegisterStaff регистрирует сотрудника по коду приглашения и открывает ему сессию.
func (h *Handler) RegisterStaff(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	staffID, err := h.service.RegisterStaff(r.Context(), req.Login, req.Password, req.InviteCode)
	if err != nil {
		h.writeError(w, "register staff", err)
		return
	}

	h.staffAuth.SetSessionCookie(w, staffID)
	w.WriteHeader(http.StatusOK)
}

// LoginStaff выполняет аутентификацию сотрудника и устанавливает cookie сессии.
func (h *Handler) LoginStaff(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	staffID, err := h.service.AuthenticateStaff(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeError(w, "login staff", err)
		return
	}

	h.staffAuth.SetSessionCookie(w, staffID)
	w.WriteHeader(http.StatusOK)
}

// LogoutStaff завершает сессию сотрудника.
func (h *Handler) LogoutStaff(w http.ResponseWriter, r *http.Request) {
	h.staffAuth.ClearSessionCookie(w)
	w.WriteHeader(http.StatusOK)
}

// ListFilms возвращает заявки, опционально отфильтрованные по статусу.
func (h *Handler) ListFilms(w http.ResponseWriter, r *http.Request) {
	films, err := h.service.ListFilms(r.Context(), model.FilmStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.writeError(w, "list films", err)
		return
	}

	if len(films) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]filmResponse, 0, len(films))
	for i := range films {
		resp = append(resp, newFilmResponse(&films[i], true))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type paymentResponse struct {
	PaymentID      int64  `json:"payment_id"`
	Value          string `json:"value"`
	Currency       string `json:"currency"`
	Status         int    `json:"status"`
	Type           string `json:"type"`
	ValidSignature bool   `json:"valid_signature"`
	CreatedAt      string `json:"created_at"`
}

// FilmPayments возвращает попытки оплаты заявки.
func (h *Handler) FilmPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	payments, err := h.service.FilmPayments(r.Context(), id)
	if err != nil {
		h.writeError(w, "film payments", err)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, paymentResponse{
			PaymentID:      p.PaymentID,
			Value:          thepay.Amount(p.ValueCents).String(),
			Currency:       p.Currency,
			Status:         int(p.Status),
			Type:           string(p.Type),
			ValidSignature: p.ValidSignature,
			CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ChangeStatus переводит заявку в новое состояние по решению сотрудника.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	film, err := h.service.ChangeStatus(r.Context(), id, model.FilmStatus(req.Status))
	if err != nil {
		h.writeError(w, "change status", err)
		return
	}

	h.writeJSON(w, http.StatusOK, newFilmResponse(film, true))
}

type evaluationRequest struct {
	Like      int    `json:"like"`
	Verbal    string `json:"verbal"`
	Technical *bool  `json:"technical"`
}

// AddEvaluation сохраняет оценку фильма текущим сотрудником.
func (h *Handler) AddEvaluation(w http.ResponseWriter, r *http.Request) {
	staffID, ok := middleware.StaffIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req evaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	e, err := h.service.AddEvaluation(r.Context(), staffID, id, req.Like, req.Verbal, req.Technical)
	if err != nil {
		h.writeError(w, "add evaluation", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]int64{"id": e.ID})
}

// GetRating возвращает среднюю оценку фильма.
func (h *Handler) GetRating(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rating, err := h.service.GetRating(r.Context(), id)
	if err != nil {
		h.writeError(w, "get rating", err)
		return
	}

	h.writeJSON(w, http.StatusOK, rating)
}

// ListEmails возвращает журнал писем. Параметр failed=1 оставляет недоставленные.
func (h *Handler) ListEmails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	onlyFailed, _ := strconv.ParseBool(q.Get("failed"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	emails, err := h.service.ListEmails(r.Context(), onlyFailed, limit)
	if err != nil {
		h.writeError(w, "list emails", err)
		return
	}

	if len(emails) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, emails)
}

// ResendEmail повторно отправляет письмо из журнала.
func (h *Handler) ResendEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	e, err := h.service.ResendEmail(r.Context(), id)
	if err != nil {
		h.writeError(w, "resend email", err)
		return
	}

	h.writeJSON(w, http.StatusOK, e)
}

// RemindUnpaid рассылает напоминания об оплате всем неоплаченным заявкам.
func (h *Handler) RemindUnpaid(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.RemindUnpaid(r.Context())
	if err != nil && n == 0 {
		h.writeError(w, "remind unpaid", err)
		return
	}

	resp := map[string]any{"emails": n}
	if err != nil {
		resp["error"] = err.Error()
	}
	h.writeJSON(w, http.StatusOK, resp)
}
