package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/festival-portal/internal/model"
	"github.com/mmeshcher/festival-portal/internal/thepay"
	"github.com/mmeshcher/festival-portal/internal/validation"
)

type filmResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Country     string `json:"country"`
	Category    string `json:"category"`
	Genre       string `json:"genre"`
	Year        int    `json:"year"`
	Time        string `json:"time"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
	Email       string `json:"email,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func newFilmResponse(f *model.Film, withContact bool) filmResponse {
	resp := filmResponse{
		ID:          f.ID,
		Name:        f.Name,
		Country:     f.Country,
		Category:    string(f.Category),
		Genre:       f.Genre,
		Year:        f.Year,
		Time:        formatFilmTime(f.Time),
		Status:      string(f.Status),
		StatusLabel: f.Status.Label(),
		CreatedAt:   f.CreatedAt.Format(time.RFC3339),
	}
	if withContact {
		resp.Email = f.Email
	}
	return resp
}

func formatFilmTime(d time.Duration) string {
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// CreateFilm принимает заявку фильма от формы регистрации.
func (h *Handler) CreateFilm(w http.ResponseWriter, r *http.Request) {
	var req validation.FilmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	film, err := h.service.CreateSubmission(r.Context(), &req)
	if err != nil {
		h.writeError(w, "create film", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, newFilmResponse(film, false))
}

// GetFilm возвращает состояние заявки.
func (h *Handler) GetFilm(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	film, err := h.service.GetFilm(r.Context(), id)
	if err != nil {
		h.writeError(w, "get film", err)
		return
	}

	h.writeJSON(w, http.StatusOK, newFilmResponse(film, false))
}

type paymentRequest struct {
	Amount      thepay.Amount `json:"amount"`
	Description string        `json:"description"`
	ReturnURL   string        `json:"return_url"`
	CancelURL   string        `json:"cancel_url"`
}

// CreatePayment возвращает подписанные параметры перехода к оплате с указанной суммой.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.BuildPaymentRedirect(r.Context(), id, req.Amount, req.Description, req.ReturnURL, req.CancelURL)
	if err != nil {
		h.writeError(w, "build payment redirect", err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// GetPayment возвращает параметры оплаты регистрационного взноса по умолчанию.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.PayRegistration(r.Context(), id)
	if err != nil {
		h.writeError(w, "pay registration", err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// PayRegistrationLink перенаправляет автора по ссылке из письма на платёжную страницу шлюза.
func (h *Handler) PayRegistrationLink(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	res, err := h.service.PayRegistration(r.Context(), id)
	if err != nil {
		h.writeError(w, "pay registration link", err)
		return
	}

	http.Redirect(w, r, res.URL, http.StatusFound)
}

// RepeatPaymentLink перенаправляет на повторную оплату после отменённого платежа.
func (h *Handler) RepeatPaymentLink(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := idParam(r, "paymentID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	res, err := h.service.RetryPayment(r.Context(), paymentID)
	if err != nil {
		h.writeError(w, "repeat payment link", err)
		return
	}

	http.Redirect(w, r, res.URL, http.StatusFound)
}

type callbackResponse struct {
	PaymentID      int64  `json:"payment_id"`
	Status         int    `json:"status"`
	ValidSignature bool   `json:"valid_signature"`
	Transitioned   bool   `json:"transitioned"`
	FilmID         *int64 `json:"film_id,omitempty"`
}

// ThePayCallback принимает обратный вызов платёжного шлюза.
func (h *Handler) ThePayCallback(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.HandleCallback(r.Context(), r.URL.Query())
	if err != nil {
		h.writeError(w, "thepay callback", err)
		return
	}

	h.logger.Info("thepay callback",
		zap.Int64("payment_id", res.Payment.PaymentID),
		zap.Int("status", int(res.Payment.Status)),
		zap.Bool("valid_signature", res.Payment.ValidSignature),
		zap.Bool("transitioned", res.Transitioned),
	)

	h.writeJSON(w, http.StatusOK, callbackResponse{
		PaymentID:      res.Payment.PaymentID,
		Status:         int(res.Payment.Status),
		ValidSignature: res.Payment.ValidSignature,
		Transitioned:   res.Transitioned,
		FilmID:         res.Payment.FilmID,
	})
}
