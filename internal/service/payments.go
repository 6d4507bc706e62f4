package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mmeshcher/festival-portal/internal/model"
	"github.com/mmeshcher/festival-portal/internal/observability"
	"github.com/mmeshcher/festival-portal/internal/repository"
	"github.com/mmeshcher/festival-portal/internal/thepay"
)

// PaymentRedirect содержит подписанные данные для перехода на платёжную страницу шлюза.
type PaymentRedirect struct {
	URL       string         `json:"redirect_url"`
	Signature string         `json:"signature"`
	Widget    *thepay.Widget `json:"widget,omitempty"`
}

// CallbackResult описывает итог обработки обратного вызова шлюза.
type CallbackResult struct {
	Payment      *model.Payment
	Film         *model.Film
	Transitioned bool
}

// BuildPaymentRedirect готовит переход к оплате регистрационного взноса заявки.
// Ничего не сохраняет: попытка оплаты записывается только по обратному вызову шлюза.
func (s *Service) BuildPaymentRedirect(ctx context.Context, filmID int64, amount thepay.Amount, description, returnURL, cancelURL string) (*PaymentRedirect, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	film, err := s.repo.GetFilm(ctx, filmID)
	if err != nil {
		return nil, err
	}

	if err := s.ensurePayable(ctx, film); err != nil {
		return nil, err
	}

	return s.redirect(thepay.Payment{
		Value:          amount,
		Currency:       s.currency,
		Description:    description,
		MerchantData:   thepay.MerchantData(string(model.PaymentTypeFilm), film.ID),
		CustomerEmail:  film.Email,
		ReturnURL:      returnURL,
		BackToEshopURL: cancelURL,
	})
}

// PayRegistration готовит оплату взноса по ссылке из письма о неоплаченной заявке.
func (s *Service) PayRegistration(ctx context.Context, filmID int64) (*PaymentRedirect, error) {
	film, err := s.repo.GetFilm(ctx, filmID)
	if err != nil {
		return nil, err
	}
	return s.BuildPaymentRedirect(ctx, filmID, s.fee, registrationDescription(film), s.returnURL, s.cancelURL)
}

// RetryPayment готовит повторную оплату после отменённой или ошибочной попытки.
// Новая попытка использует те же merchantData, сумму и валюту.
func (s *Service) RetryPayment(ctx context.Context, paymentID int64) (*PaymentRedirect, error) {
	prev, err := s.repo.GetPaymentByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if prev.FilmID == nil || prev.Type != model.PaymentTypeFilm || !prev.Status.IsFailure() {
		return nil, fmt.Errorf("%w: %d", ErrPaymentNotRetryable, paymentID)
	}
	if prev.ValueCents <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, prev.ValueCents)
	}

	film, err := s.repo.GetFilm(ctx, *prev.FilmID)
	if err != nil {
		return nil, err
	}

	// Проверка идёт по всем попыткам заявки, а не по исходной.
	if err := s.ensurePayable(ctx, film); err != nil {
		return nil, err
	}

	return s.redirect(thepay.Payment{
		Value:          thepay.Amount(prev.ValueCents),
		Currency:       prev.Currency,
		Description:    registrationDescription(film),
		MerchantData:   prev.MerchantData,
		CustomerEmail:  film.Email,
		ReturnURL:      s.returnURL,
		BackToEshopURL: s.cancelURL,
	})
}

func (s *Service) ensurePayable(ctx context.Context, film *model.Film) error {
	if film.Status != model.FilmStatusUnpaid {
		return fmt.Errorf("%w: film %d is %s", ErrAlreadyPaid, film.ID, film.Status)
	}

	paid, err := s.repo.HasSuccessfulPayment(ctx, film.ID)
	if err != nil {
		return err
	}
	if paid {
		return fmt.Errorf("%w: film %d", ErrAlreadyPaid, film.ID)
	}
	return nil
}

func (s *Service) redirect(p thepay.Payment) (*PaymentRedirect, error) {
	params, err := s.gateway.SignedParams(p)
	if err != nil {
		if errors.Is(err, thepay.ErrInvalidValue) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
		}
		return nil, err
	}

	redirectURL, err := s.gateway.RedirectURL(p)
	if err != nil {
		return nil, err
	}

	widget, err := s.gateway.Widget(p, thepay.WidgetOptions{}, s.now())
	if err != nil {
		return nil, err
	}

	signature, _ := params.Get(thepay.SignatureKey)
	return &PaymentRedirect{
		URL:       redirectURL,
		Signature: signature,
		Widget:    widget,
	}, nil
}

func registrationDescription(f *model.Film) string {
	if f.Lang() == model.LangCS {
		return "Registrace filmu " + f.Name
	}
	return "Film registration " + f.Name
}

// HandleCallback проверяет и записывает обратный вызов шлюза.
// Попытка с неверной подписью сохраняется для аудита, но не связывается с заявкой
// и не меняет её состояние. Повторный paymentId отклоняется с repository.ErrDuplicatePayment.
func (s *Service) HandleCallback(ctx context.Context, q url.Values) (*CallbackResult, error) {
	p, ret, err := parseCallback(q)
	if err != nil {
		observability.Callbacks.WithLabelValues(observability.CallbackRejected).Inc()
		return nil, err
	}

	p.ValidSignature = ret.SignatureValid(s.gateway.Password)
	if !p.ValidSignature {
		s.logger.Warn("callback signature mismatch", zap.Int64("payment_id", p.PaymentID))
	}

	var film *model.Film
	if p.ValidSignature && p.Type == model.PaymentTypeFilm {
		if filmID, ok := ret.Ref(string(model.PaymentTypeFilm)); ok {
			film, err = s.repo.GetFilm(ctx, filmID)
			switch {
			case errors.Is(err, repository.ErrFilmNotFound):
				s.logger.Warn("callback references unknown film",
					zap.Int64("payment_id", p.PaymentID), zap.Int64("film_id", filmID))
				film = nil
			case err != nil:
				observability.Callbacks.WithLabelValues(observability.CallbackFailed).Inc()
				return nil, err
			default:
				p.FilmID = &film.ID
			}
		}
	}

	res, err := s.repo.RecordPayment(ctx, p)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicatePayment) {
			s.logger.Warn("duplicate callback", zap.Int64("payment_id", p.PaymentID))
			observability.Callbacks.WithLabelValues(observability.CallbackDuplicate).Inc()
			return nil, err
		}
		s.logger.Error("record payment", zap.Int64("payment_id", p.PaymentID), zap.Error(err))
		observability.Callbacks.WithLabelValues(observability.CallbackFailed).Inc()
		return nil, err
	}

	if film != nil {
		film.Status = res.PriorStatus
		if res.Transitioned {
			film.Status = model.FilmStatusRegistered
			observability.FilmTransitions.WithLabelValues(string(res.PriorStatus), string(film.Status)).Inc()
		}
	}

	switch {
	case res.Transitioned:
		observability.Callbacks.WithLabelValues(observability.CallbackTransitioned).Inc()
	case !p.ValidSignature:
		observability.Callbacks.WithLabelValues(observability.CallbackInvalidSignature).Inc()
	default:
		observability.Callbacks.WithLabelValues(observability.CallbackRecorded).Inc()
	}

	ev := model.PaymentEvent{
		Payment:      p,
		Film:         film,
		PriorStatus:  res.PriorStatus,
		Transitioned: res.Transitioned,
	}
	if film != nil {
		ev.Year, err = s.currentYear(ctx)
		if err != nil {
			s.logger.Warn("resolve current year", zap.Error(err))
		}
	}
	for _, o := range s.observers {
		o.OnPaymentRecorded(ctx, ev)
	}

	return &CallbackResult{Payment: p, Film: film, Transitioned: res.Transitioned}, nil
}

// Пределы колонок таблицы payments.
const (
	maxCurrencyLen     = 3
	maxMerchantDataLen = 150
)

func parseCallback(q url.Values) (*model.Payment, *thepay.ReturnedPayment, error) {
	ret, err := thepay.ParseReturned(q)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidCallback, err)
	}

	paymentID, err := strconv.ParseInt(ret.Get("paymentId"), 10, 64)
	if err != nil || paymentID <= 0 {
		return nil, nil, fmt.Errorf("%w: paymentId %q", ErrInvalidCallback, ret.Get("paymentId"))
	}

	code, err := strconv.Atoi(ret.Get("status"))
	status := model.PaymentStatus(code)
	if err != nil || !status.Valid() {
		return nil, nil, fmt.Errorf("%w: status %q", ErrInvalidCallback, ret.Get("status"))
	}

	value, err := thepay.ParseAmount(ret.Get("value"))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: value %q", ErrInvalidCallback, ret.Get("value"))
	}

	currency := ret.Get("currency")
	if utf8.RuneCountInString(currency) > maxCurrencyLen {
		return nil, nil, fmt.Errorf("%w: currency %q", ErrInvalidCallback, currency)
	}
	if n := utf8.RuneCountInString(ret.MerchantData()); n > maxMerchantDataLen {
		return nil, nil, fmt.Errorf("%w: merchantData is %d characters, at most %d allowed",
			ErrInvalidCallback, n, maxMerchantDataLen)
	}

	var methodID int
	if raw := ret.Get("methodId"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: methodId %q", ErrInvalidCallback, raw)
		}
		methodID = int(v)
	}

	var isOffline *bool
	if raw := ret.Get("isOffline"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: isOffline %q", ErrInvalidCallback, raw)
		}
		isOffline = &v
	}

	typ := model.PaymentType(ret.Type())
	if typ != model.PaymentTypeFilm && typ != model.PaymentTypeTickets {
		return nil, nil, fmt.Errorf("%w: merchant data type %q", ErrInvalidCallback, ret.Type())
	}

	return &model.Payment{
		ValueCents:   int64(value),
		Currency:     currency,
		MethodID:     methodID,
		MerchantData: ret.MerchantData(),
		Status:       status,
		PaymentID:    paymentID,
		IsOffline:    isOffline,
		Type:         typ,
	}, ret, nil
}
