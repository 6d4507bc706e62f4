package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/festival-portal/internal/model"
)

// RecordResult описывает последствия записи платежа.
type RecordResult struct {
	// PriorStatus — состояние заявки до записи, пустое если платёж не связан с заявкой.
	PriorStatus model.FilmStatus
	// Transitioned сообщает, что запись перевела заявку из Unpaid в Registered.
	Transitioned bool
}

// RecordPayment сохраняет попытку оплаты. Если платёж подписан верно, успешен и оплачивает
// регистрацию, заявка переводится в Registered в той же транзакции. Повторный идентификатор
// шлюза отклоняется с ErrDuplicatePayment, и ничего не сохраняется.
func (r *PostgresRepository) RecordPayment(ctx context.Context, p *model.Payment) (RecordResult, error) {
	var res RecordResult

	err := r.withRetry(ctx, func() error {
		res = RecordResult{}

		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if p.FilmID != nil {
			// Блокируем заявку, чтобы параллельные обратные вызовы переводили её строго один раз.
			var status string
			err = tx.QueryRow(ctx, `SELECT status FROM films WHERE id = $1 FOR UPDATE`, *p.FilmID).Scan(&status)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrFilmNotFound
				}
				return fmt.Errorf("lock film: %w", err)
			}
			res.PriorStatus = model.FilmStatus(status)
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO payments (
				value, currency, method_id, merchant_data, status, payment_id,
				is_offline, type, valid_signature, film_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, created_at`,
			p.ValueCents, p.Currency, p.MethodID, p.MerchantData, int(p.Status), p.PaymentID,
			p.IsOffline, string(p.Type), p.ValidSignature, p.FilmID,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %d", ErrDuplicatePayment, p.PaymentID)
			}
			return fmt.Errorf("insert payment: %w", err)
		}

		if p.Transitions() && res.PriorStatus == model.FilmStatusUnpaid {
			_, err = tx.Exec(ctx,
				`UPDATE films SET status = $2 WHERE id = $1`,
				*p.FilmID, string(model.FilmStatusRegistered),
			)
			if err != nil {
				return fmt.Errorf("register film: %w", err)
			}
			res.Transitioned = true
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return RecordResult{}, err
	}

	return res, nil
}

const paymentColumns = `id, value, currency, method_id, merchant_data, status, payment_id,
	is_offline, type, valid_signature, film_id, created_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		p      model.Payment
		status int
		typ    string
	)
	err := row.Scan(&p.ID, &p.ValueCents, &p.Currency, &p.MethodID, &p.MerchantData, &status, &p.PaymentID,
		&p.IsOffline, &typ, &p.ValidSignature, &p.FilmID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	p.Type = model.PaymentType(typ)
	return &p, nil
}

// GetPaymentByPaymentID возвращает платёж по идентификатору шлюза.
func (r *PostgresRepository) GetPaymentByPaymentID(ctx context.Context, paymentID int64) (*model.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payment_id = $1`,
		paymentID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// GetPaymentsByFilm возвращает все попытки оплаты заявки, новые первыми.
func (r *PostgresRepository) GetPaymentsByFilm(ctx context.Context, filmID int64) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE film_id = $1 ORDER BY created_at DESC`,
		filmID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// HasSuccessfulPayment сообщает, есть ли у заявки подписанный платёж, не завершившийся отменой или ошибкой.
func (r *PostgresRepository) HasSuccessfulPayment(ctx context.Context, filmID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE film_id = $1 AND type = $2 AND valid_signature AND status NOT IN ($3, $4)
		)`,
		filmID, string(model.PaymentTypeFilm),
		int(model.PaymentStatusCanceled), int(model.PaymentStatusError),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check successful payment: %w", err)
	}
	return exists, nil
}
