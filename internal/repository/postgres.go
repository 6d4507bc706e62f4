// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/festival-portal/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrFilmNotFound возвращается, если заявка фильма не найдена.
	ErrFilmNotFound = errors.New("film not found")
	// ErrPaymentNotFound возвращается, если платёж с таким идентификатором шлюза не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrDuplicatePayment возвращается при повторной записи платежа с тем же идентификатором шлюза.
	ErrDuplicatePayment = errors.New("payment already recorded")
	// ErrEmailNotFound возвращается, если письмо не найдено.
	ErrEmailNotFound = errors.New("email not found")
	// ErrYearNotFound возвращается, если текущий выпуск фестиваля не задан.
	ErrYearNotFound = errors.New("current year not configured")
	// ErrTextsNotFound возвращается, если тексты писем не заполнены.
	ErrTextsNotFound = errors.New("texts not configured")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// CreateUser создаёт нового сотрудника.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash) VALUES ($1, $2) RETURNING id`,
		login, passwordHash,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByLogin возвращает сотрудника по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM users WHERE login = $1`,
		login,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// GetCurrentYear возвращает текущий выпуск фестиваля.
func (r *PostgresRepository) GetCurrentYear(ctx context.Context) (*model.Year, error) {
	var (
		y    model.Year
		name *string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, vol, name, date_start, date_end, current FROM years WHERE current LIMIT 1`,
	).Scan(&y.ID, &y.Vol, &name, &y.DateStart, &y.DateEnd, &y.Current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrYearNotFound
		}
		return nil, fmt.Errorf("get current year: %w", err)
	}
	if name != nil {
		y.Name = *name
	}
	return &y, nil
}

// GetTexts возвращает шаблоны писем и адрес отправителя.
func (r *PostgresRepository) GetTexts(ctx context.Context) (*model.Texts, error) {
	texts := &model.Texts{Templates: make(map[model.MailKind]map[model.Lang]model.MailTemplate)}

	err := r.pool.QueryRow(ctx,
		`SELECT default_from_email FROM site_texts WHERE id = 1`,
	).Scan(&texts.DefaultFromEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTextsNotFound
		}
		return nil, fmt.Errorf("get site texts: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT kind, lang, subject, message, message_html FROM mail_templates`,
	)
	if err != nil {
		return nil, fmt.Errorf("select mail templates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, lang string
			tpl        model.MailTemplate
		)
		if err := rows.Scan(&kind, &lang, &tpl.Subject, &tpl.Message, &tpl.MessageHTML); err != nil {
			return nil, fmt.Errorf("scan mail template: %w", err)
		}
		k := model.MailKind(kind)
		if texts.Templates[k] == nil {
			texts.Templates[k] = make(map[model.Lang]model.MailTemplate)
		}
		texts.Templates[k][model.Lang(lang)] = tpl
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return texts, nil
}
