package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/festival-portal/internal/model"
	"github.com/mmeshcher/festival-portal/internal/observability"
	"github.com/mmeshcher/festival-portal/internal/validation"
)

const defaultEmailsLimit = 100

// CreateSubmission проверяет и сохраняет новую заявку в состоянии Unpaid,
// после чего уведомляет наблюдателей.
func (s *Service) CreateSubmission(ctx context.Context, req *validation.FilmRequest) (*model.Film, error) {
	year, err := s.currentYear(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve current year: %w", err)
	}

	film, err := validation.Film(req, year.Number())
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateFilm(ctx, film); err != nil {
		return nil, err
	}

	s.logger.Info("film submitted", zap.Int64("film_id", film.ID), zap.String("country", film.Country))

	for _, o := range s.observers {
		o.OnFilmCreated(ctx, film, year)
	}

	return film, nil
}

// GetFilm возвращает заявку по идентификатору.
func (s *Service) GetFilm(ctx context.Context, id int64) (*model.Film, error) {
	return s.repo.GetFilm(ctx, id)
}

// ListFilms возвращает заявки, при непустом status — только в этом состоянии.
func (s *Service) ListFilms(ctx context.Context, status model.FilmStatus) ([]model.Film, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.repo.ListFilms(ctx, status)
}

// FilmPayments возвращает все попытки оплаты заявки.
func (s *Service) FilmPayments(ctx context.Context, filmID int64) ([]model.Payment, error) {
	if _, err := s.repo.GetFilm(ctx, filmID); err != nil {
		return nil, err
	}
	return s.repo.GetPaymentsByFilm(ctx, filmID)
}

// ChangeStatus переводит заявку по решению сотрудника. Состояние Registered
// достигается только оплатой и вручную не выставляется.
func (s *Service) ChangeStatus(ctx context.Context, filmID int64, next model.FilmStatus) (*model.Film, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}
	if next == model.FilmStatusRegistered || next == model.FilmStatusUnpaid {
		return nil, fmt.Errorf("%w: %s is set by payment only", model.ErrTransitionNotAllowed, next)
	}

	prev, err := s.repo.UpdateFilmStatus(ctx, filmID, next)
	if err != nil {
		return nil, err
	}
	observability.FilmTransitions.WithLabelValues(string(prev), string(next)).Inc()
	s.logger.Info("film status changed",
		zap.Int64("film_id", filmID),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
	)

	return s.repo.GetFilm(ctx, filmID)
}

// AddEvaluation сохраняет оценку фильма сотрудником.
func (s *Service) AddEvaluation(ctx context.Context, userID, filmID int64, like int, verbal string, technical *bool) (*model.Evaluation, error) {
	verbal = strings.TrimSpace(verbal)
	if like < model.MinLike || like > model.MaxLike {
		return nil, fmt.Errorf("%w: like must be between %d and %d", ErrInvalidEvaluation, model.MinLike, model.MaxLike)
	}
	if verbal == "" || len([]rune(verbal)) > 200 {
		return nil, fmt.Errorf("%w: verbal must be 1..200 characters", ErrInvalidEvaluation)
	}

	e := &model.Evaluation{
		UserID:    userID,
		FilmID:    filmID,
		Like:      like,
		Verbal:    verbal,
		Technical: technical,
	}
	if err := s.repo.AddEvaluation(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// GetRating возвращает среднюю оценку фильма.
func (s *Service) GetRating(ctx context.Context, filmID int64) (*model.Rating, error) {
	if _, err := s.repo.GetFilm(ctx, filmID); err != nil {
		return nil, err
	}
	return s.repo.GetRating(ctx, filmID)
}

// ListEmails возвращает журнал писем. onlyFailed оставляет недоставленные.
func (s *Service) ListEmails(ctx context.Context, onlyFailed bool, limit int) ([]model.Email, error) {
	if limit <= 0 || limit > defaultEmailsLimit {
		limit = defaultEmailsLimit
	}
	return s.repo.ListEmails(ctx, onlyFailed, limit)
}

// ResendEmail повторно отправляет письмо из журнала.
func (s *Service) ResendEmail(ctx context.Context, id int64) (*model.Email, error) {
	e, err := s.repo.GetEmail(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.notifier.Resend(ctx, e)
}

// RemindUnpaid рассылает напоминание об оплате всем неоплаченным заявкам
// и возвращает число созданных писем. Ошибка одной заявки не прерывает рассылку.
func (s *Service) RemindUnpaid(ctx context.Context) (int, error) {
	year, err := s.currentYear(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve current year: %w", err)
	}

	films, err := s.repo.ListFilms(ctx, model.FilmStatusUnpaid)
	if err != nil {
		return 0, err
	}

	var (
		created int
		errs    []error
	)
	for i := range films {
		if _, err := s.notifier.RemindUnpaid(ctx, &films[i], year); err != nil {
			s.logger.Error("remind unpaid", zap.Int64("film_id", films[i].ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("film %d: %w", films[i].ID, err))
			continue
		}
		created++
	}

	return created, errors.Join(errs...)
}
