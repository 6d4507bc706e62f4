package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/festival-portal/internal/model"
)

// CreateEmail сохраняет отправленное письмо вместе с признаком успешной доставки.
func (r *PostgresRepository) CreateEmail(ctx context.Context, e *model.Email) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO emails (recipient_list, subject, message, message_html, sent)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.RecipientList, e.Subject, e.Message, e.MessageHTML, e.Sent,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert email: %w", err)
	}
	return nil
}

// GetEmail возвращает письмо по идентификатору.
func (r *PostgresRepository) GetEmail(ctx context.Context, id int64) (*model.Email, error) {
	var e model.Email
	err := r.pool.QueryRow(ctx,
		`SELECT id, recipient_list, subject, message, message_html, sent, created_at
		 FROM emails WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.RecipientList, &e.Subject, &e.Message, &e.MessageHTML, &e.Sent, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmailNotFound
		}
		return nil, fmt.Errorf("get email: %w", err)
	}
	return &e, nil
}

// ListEmails возвращает письма, новые первыми. onlyFailed оставляет только недоставленные.
func (r *PostgresRepository) ListEmails(ctx context.Context, onlyFailed bool, limit int) ([]model.Email, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, recipient_list, subject, message, message_html, sent, created_at
		 FROM emails
		 WHERE NOT $1 OR NOT sent
		 ORDER BY created_at DESC
		 LIMIT $2`,
		onlyFailed, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select emails: %w", err)
	}
	defer rows.Close()

	var res []model.Email
	for rows.Next() {
		var e model.Email
		if err := rows.Scan(&e.ID, &e.RecipientList, &e.Subject, &e.Message, &e.MessageHTML, &e.Sent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
