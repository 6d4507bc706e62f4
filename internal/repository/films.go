package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/festival-portal/internal/model"
)

const filmColumns = `id, first_name, last_name, email, production, country, COALESCE(phone, ''),
	name, time_seconds, description, year, category, genre,
	film_url, COALESCE(film_password, ''), subtitles_url, COALESCE(subtitles_password, ''),
	COALESCE(trailer_url, ''), COALESCE(trailer_password, ''),
	COALESCE(directing, ''), COALESCE(camera, ''), COALESCE(sound, ''), COALESCE(cut, ''),
	COALESCE(screenplay, ''), COALESCE(starring, ''), COALESCE(others, ''),
	tor, gdpr, attendance, status, technical_check, created_at`

func scanFilm(row pgx.Row) (*model.Film, error) {
	var (
		f        model.Film
		seconds  int64
		category string
		status   string
	)
	err := row.Scan(
		&f.ID, &f.FirstName, &f.LastName, &f.Email, &f.Production, &f.Country, &f.Phone,
		&f.Name, &seconds, &f.Description, &f.Year, &category, &f.Genre,
		&f.FilmURL, &f.FilmPassword, &f.SubtitlesURL, &f.SubtitlesPassword,
		&f.TrailerURL, &f.TrailerPassword,
		&f.Directing, &f.Camera, &f.Sound, &f.Cut,
		&f.Screenplay, &f.Starring, &f.Others,
		&f.TOR, &f.GDPR, &f.Attendance, &status, &f.TechnicalCheck, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.Time = time.Duration(seconds) * time.Second
	f.Category = model.FilmCategory(category)
	f.Status = model.FilmStatus(status)
	return &f, nil
}

// CreateFilm сохраняет новую заявку фильма в состоянии Unpaid.
func (r *PostgresRepository) CreateFilm(ctx context.Context, f *model.Film) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO films (
			first_name, last_name, email, production, country, phone,
			name, time_seconds, description, year, category, genre,
			film_url, film_password, subtitles_url, subtitles_password,
			trailer_url, trailer_password,
			directing, camera, sound, cut, screenplay, starring, others,
			tor, gdpr, attendance, status
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16,
			$17, $18,
			$19, $20, $21, $22, $23, $24, $25,
			$26, $27, $28, $29
		) RETURNING id, created_at`,
		f.FirstName, f.LastName, f.Email, f.Production, f.Country, nullString(f.Phone),
		f.Name, int64(f.Time/time.Second), f.Description, f.Year, string(f.Category), f.Genre,
		f.FilmURL, nullString(f.FilmPassword), f.SubtitlesURL, nullString(f.SubtitlesPassword),
		nullString(f.TrailerURL), nullString(f.TrailerPassword),
		nullString(f.Directing), nullString(f.Camera), nullString(f.Sound), nullString(f.Cut),
		nullString(f.Screenplay), nullString(f.Starring), nullString(f.Others),
		f.TOR, f.GDPR, f.Attendance, string(model.FilmStatusUnpaid),
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert film: %w", err)
	}
	f.Status = model.FilmStatusUnpaid
	return nil
}

// GetFilm возвращает заявку фильма по идентификатору.
func (r *PostgresRepository) GetFilm(ctx context.Context, id int64) (*model.Film, error) {
	f, err := scanFilm(r.pool.QueryRow(ctx,
		`SELECT `+filmColumns+` FROM films WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFilmNotFound
		}
		return nil, fmt.Errorf("get film: %w", err)
	}
	return f, nil
}

// ListFilms возвращает заявки в порядке поступления. Пустой статус означает все заявки.
func (r *PostgresRepository) ListFilms(ctx context.Context, status model.FilmStatus) ([]model.Film, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+filmColumns+`
		 FROM films
		 WHERE $1::text = '' OR status = $1::text
		 ORDER BY created_at`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("select films: %w", err)
	}
	defer rows.Close()

	var res []model.Film
	for rows.Next() {
		f, err := scanFilm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan film: %w", err)
		}
		res = append(res, *f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateFilmStatus переводит заявку в новое состояние по графу переходов и возвращает прежнее.
// Строка заявки блокируется на время проверки.
func (r *PostgresRepository) UpdateFilmStatus(ctx context.Context, id int64, next model.FilmStatus) (model.FilmStatus, error) {
	var prev model.FilmStatus

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var current string
		err = tx.QueryRow(ctx, `SELECT status FROM films WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrFilmNotFound
			}
			return fmt.Errorf("lock film: %w", err)
		}
		prev = model.FilmStatus(current)

		if !prev.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s", model.ErrTransitionNotAllowed, prev, next)
		}

		if _, err := tx.Exec(ctx, `UPDATE films SET status = $2 WHERE id = $1`, id, string(next)); err != nil {
			return fmt.Errorf("update film status: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})

	return prev, err
}

// AddEvaluation сохраняет оценку фильма сотрудником.
func (r *PostgresRepository) AddEvaluation(ctx context.Context, e *model.Evaluation) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO evaluations (user_id, film_id, score, verbal, technical)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.UserID, e.FilmID, e.Like, e.Verbal, e.Technical,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrFilmNotFound
		}
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

// GetRating возвращает среднюю оценку фильма.
func (r *PostgresRepository) GetRating(ctx context.Context, filmID int64) (*model.Rating, error) {
	rating := &model.Rating{FilmID: filmID}
	err := r.pool.QueryRow(ctx,
		`SELECT AVG(score)::float8, COUNT(*) FROM evaluations WHERE film_id = $1`,
		filmID,
	).Scan(&rating.Average, &rating.Evaluations)
	if err != nil {
		return nil, fmt.Errorf("get rating: %w", err)
	}
	return rating, nil
}
