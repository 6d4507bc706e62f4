// Package service реализует бизнес-логику портала фестиваля: приём заявок,
// оплату регистрационного взноса через платёжный шлюз и работу сотрудников.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/festival-portal/internal/model"
	"github.com/mmeshcher/festival-portal/internal/repository"
	"github.com/mmeshcher/festival-portal/internal/thepay"
)

var (
	// ErrInvalidAmount возвращается для неположительной суммы платежа.
	ErrInvalidAmount = errors.New("payment amount must be positive")
	// ErrAlreadyPaid возвращается при попытке оплатить заявку, у которой уже есть успешный платёж.
	ErrAlreadyPaid = errors.New("film registration already paid")
	// ErrPaymentNotRetryable возвращается, если платёж нельзя повторить.
	ErrPaymentNotRetryable = errors.New("payment cannot be retried")
	// ErrInvalidCallback возвращается для обратного вызова с некорректными параметрами.
	ErrInvalidCallback = errors.New("invalid gateway callback")
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInviteCode возвращается при неверном коде приглашения сотрудника.
	ErrInvalidInviteCode = errors.New("invalid invite code")
	// ErrInvalidStatus возвращается для неизвестного статуса заявки.
	ErrInvalidStatus = errors.New("invalid film status")
	// ErrInvalidEvaluation возвращается для оценки вне допустимого диапазона.
	ErrInvalidEvaluation = errors.New("invalid evaluation")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetCurrentYear(ctx context.Context) (*model.Year, error)

	CreateFilm(ctx context.Context, f *model.Film) error
	GetFilm(ctx context.Context, id int64) (*model.Film, error)
	ListFilms(ctx context.Context, status model.FilmStatus) ([]model.Film, error)
	UpdateFilmStatus(ctx context.Context, id int64, next model.FilmStatus) (model.FilmStatus, error)

	RecordPayment(ctx context.Context, p *model.Payment) (repository.RecordResult, error)
	GetPaymentByPaymentID(ctx context.Context, paymentID int64) (*model.Payment, error)
	GetPaymentsByFilm(ctx context.Context, filmID int64) ([]model.Payment, error)
	HasSuccessfulPayment(ctx context.Context, filmID int64) (bool, error)

	AddEvaluation(ctx context.Context, e *model.Evaluation) error
	GetRating(ctx context.Context, filmID int64) (*model.Rating, error)

	GetEmail(ctx context.Context, id int64) (*model.Email, error)
	ListEmails(ctx context.Context, onlyFailed bool, limit int) ([]model.Email, error)
}

// Observer получает уведомления о смене состояния после фиксации транзакции.
// Наблюдатели вызываются синхронно в порядке подписки.
type Observer interface {
	OnFilmCreated(ctx context.Context, film *model.Film, year *model.Year)
	OnPaymentRecorded(ctx context.Context, ev model.PaymentEvent)
}

// Notifier отправляет письма по запросу сотрудников.
type Notifier interface {
	RemindUnpaid(ctx context.Context, film *model.Film, year *model.Year) (*model.Email, error)
	Resend(ctx context.Context, e *model.Email) (*model.Email, error)
}

// Options задаёт параметры оплаты и регистрации сотрудников.
type Options struct {
	Gateway  *thepay.Gateway
	Fee      thepay.Amount
	Currency string
	// ReturnURL и CancelURL — адреса возврата из шлюза для ссылок из писем.
	ReturnURL  string
	CancelURL  string
	InviteCode string
	Notifier   Notifier
	Logger     *zap.Logger
}

// Service содержит бизнес-логику портала фестиваля.
type Service struct {
	repo       Repository
	gateway    *thepay.Gateway
	fee        thepay.Amount
	currency   string
	returnURL  string
	cancelURL  string
	inviteCode string
	notifier   Notifier
	observers  []Observer
	logger     *zap.Logger
	now        func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием и наблюдателями.
func NewService(repo Repository, opts Options, observers ...Observer) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		gateway:    opts.Gateway,
		fee:        opts.Fee,
		currency:   opts.Currency,
		returnURL:  opts.ReturnURL,
		cancelURL:  opts.CancelURL,
		inviteCode: opts.InviteCode,
		notifier:   opts.Notifier,
		observers:  observers,
		logger:     logger.Named("service"),
		now:        time.Now,
	}
}

// Subscribe добавляет наблюдателя в конец списка.
func (s *Service) Subscribe(o Observer) {
	s.observers = append(s.observers, o)
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// currentYear возвращает текущий выпуск фестиваля. Если выпуск не настроен,
// используется календарный год.
func (s *Service) currentYear(ctx context.Context) (*model.Year, error) {
	y, err := s.repo.GetCurrentYear(ctx)
	if err == nil {
		return y, nil
	}
	if !errors.Is(err, repository.ErrYearNotFound) {
		return nil, err
	}
	now := s.now()
	return &model.Year{
		DateStart: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:   time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, time.UTC),
		Current:   true,
	}, nil
}

// RegisterStaff регистрирует сотрудника по коду приглашения.
func (s *Service) RegisterStaff(ctx context.Context, login, password, inviteCode string) (int64, error) {
	if s.inviteCode == "" || subtle.ConstantTimeCompare([]byte(inviteCode), []byte(s.inviteCode)) != 1 {
		return 0, ErrInvalidInviteCode
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateStaff проверяет логин и пароль сотрудника и возвращает его идентификатор.
func (s *Service) AuthenticateStaff(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
