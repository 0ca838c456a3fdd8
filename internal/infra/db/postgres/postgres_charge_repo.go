package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trainer-billing/internal/domain"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/repository"
)

var _ repository.ChargeRepository = (*chargeRepo)(nil)

type chargeRepo struct{ pool *pgxpool.Pool }

func NewChargeRepo(pool *pgxpool.Pool) *chargeRepo {
	return &chargeRepo{pool: pool}
}

const chargeCols = `id, teacher_id, student_id, plan_id, amount, currency, description, due_date, status, payment_link, preference_id, cancel_reason, created_at, updated_at, paid_at`

func (r *chargeRepo) Save(ctx context.Context, tx repository.Tx, c *model.Charge) error {
	const q = `
INSERT INTO charges (
  id, teacher_id, student_id, plan_id, amount, currency, description, due_date, status, payment_link, preference_id, cancel_reason, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
) ON CONFLICT (id) DO UPDATE SET
  plan_id=$4, amount=$5, currency=$6, description=$7, due_date=$8, status=$9, payment_link=$10, preference_id=$11, cancel_reason=$12, updated_at=$14, paid_at=$15;`

	_, err := execSQL(ctx, r.pool, tx, q, c.ID, c.TeacherID, c.StudentID, c.PlanID, c.Amount, c.Currency, c.Description, c.DueDate, c.Status, c.PaymentLink, c.PreferenceID, c.CancelReason, c.CreatedAt, c.UpdatedAt, c.PaidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *chargeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Charge, error) {
	q := `SELECT ` + chargeCols + ` FROM charges WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanCharge(row)
}

func (r *chargeRepo) FindByPreferenceID(ctx context.Context, tx repository.Tx, preferenceID string) (*model.Charge, error) {
	q := `SELECT ` + chargeCols + ` FROM charges WHERE preference_id=$1 LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, preferenceID)
	if err != nil {
		return nil, err
	}
	return scanCharge(row)
}

func (r *chargeRepo) ListByTeacher(ctx context.Context, tx repository.Tx, teacherID string, offset, limit int) ([]*model.Charge, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + chargeCols + ` FROM charges WHERE teacher_id=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3;`
	return r.list(ctx, tx, q, teacherID, offset, limit)
}

func (r *chargeRepo) ListByStudent(ctx context.Context, tx repository.Tx, studentID string) ([]*model.Charge, error) {
	const q = `SELECT ` + chargeCols + ` FROM charges WHERE student_id=$1 ORDER BY created_at DESC;`
	return r.list(ctx, tx, q, studentID)
}

func (r *chargeRepo) ExpireDue(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	const q = `UPDATE charges SET status='expired', updated_at=NOW() WHERE status IN ('created','pending') AND due_date < $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return int(cmd.RowsAffected()), nil
}

func (r *chargeRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM charges WHERE id=$1 AND status <> 'paid';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *chargeRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Charge, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		switch err {
		case pgx.ErrNoRows:
			return nil, domain.ErrNotFound
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Charge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanCharge(row pgx.Row) (*model.Charge, error) {
	c := &model.Charge{}
	if err := row.Scan(&c.ID, &c.TeacherID, &c.StudentID, &c.PlanID, &c.Amount, &c.Currency, &c.Description, &c.DueDate, &c.Status, &c.PaymentLink, &c.PreferenceID, &c.CancelReason, &c.CreatedAt, &c.UpdatedAt, &c.PaidAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}
