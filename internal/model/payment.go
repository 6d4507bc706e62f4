package model

import "time"

// PaymentStatus описывает код состояния платежа в платёжном шлюзе.
type PaymentStatus int

const (
	PaymentStatusOk          PaymentStatus = 2
	PaymentStatusCanceled    PaymentStatus = 3
	PaymentStatusError       PaymentStatus = 4
	PaymentStatusUnderpaid   PaymentStatus = 6
	PaymentStatusWaiting     PaymentStatus = 7
	PaymentStatusCardDeposit PaymentStatus = 9
)

// Valid сообщает, известен ли код.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusOk, PaymentStatusCanceled, PaymentStatusError,
		PaymentStatusUnderpaid, PaymentStatusWaiting, PaymentStatusCardDeposit:
		return true
	}
	return false
}

// IsSuccess сообщает, считается ли платёж состоявшимся или идущим к завершению.
// Все коды, кроме Canceled и Error, переводят заявку в Registered.
func (s PaymentStatus) IsSuccess() bool {
	return s.Valid() && !s.IsFailure()
}

// IsFailure сообщает, завершился ли платёж отменой или ошибкой.
func (s PaymentStatus) IsFailure() bool {
	return s == PaymentStatusCanceled || s == PaymentStatusError
}

// PaymentType определяет, за что внесена оплата.
type PaymentType string

const (
	PaymentTypeFilm    PaymentType = "f"
	PaymentTypeTickets PaymentType = "t"
)

// Payment описывает одну попытку оплаты через шлюз.
type Payment struct {
	ID             int64
	ValueCents     int64
	Currency       string
	MethodID       int
	MerchantData   string
	Status         PaymentStatus
	PaymentID      int64
	IsOffline      *bool
	Type           PaymentType
	ValidSignature bool
	FilmID         *int64
	CreatedAt      time.Time
}

// Transitions сообщает, должна ли вновь созданная попытка перевести заявку в Registered.
func (p *Payment) Transitions() bool {
	return p.ValidSignature && p.Status.IsSuccess() && p.Type == PaymentTypeFilm && p.FilmID != nil
}

// PaymentEvent описывает результат записи попытки оплаты для наблюдателей.
type PaymentEvent struct {
	Payment *Payment
	// Film — заявка, на которую ссылается платёж. nil, если подпись неверна или заявка не найдена.
	Film *Film
	// PriorStatus — состояние заявки до записи платежа.
	PriorStatus FilmStatus
	// Transitioned сообщает, что платёж перевёл заявку в Registered.
	Transitioned bool
	Year         *Year
}
