package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carepulse/carepulse/internal/platform/apperr"
	"github.com/carepulse/carepulse/internal/platform/db"
)

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, user_id, patient_id, primary_physician, reason, schedule, status,
	note, cancellation_reason, created_at, updated_at`

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointment (id, user_id, patient_id, primary_physician, reason, schedule, status,
			note, cancellation_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		a.ID, a.UserID, a.PatientID, a.PrimaryPhysician, a.Reason, a.Schedule, a.Status,
		a.Note, a.CancellationReason,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

// GetByID locks the row when called inside a transaction.
func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppt(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1`+db.LockClause(ctx), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment", id.String())
	}
	return a, err
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointment SET
			primary_physician = $2, reason = $3, schedule = $4, status = $5,
			note = $6, cancellation_reason = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.PrimaryPhysician, a.Reason, a.Schedule, a.Status,
		a.Note, a.CancellationReason,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("appointment", a.ID.String())
	}
	return err
}

// where builds the WHERE clause for f starting at $1. withStatus controls
// whether f.Status takes part.
func where(f Filter, withStatus bool) (string, []interface{}) {
	clause := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if withStatus && f.Status != "" {
		clause += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.UserID != nil {
		clause += fmt.Sprintf(` AND user_id = $%d`, idx)
		args = append(args, *f.UserID)
		idx++
	}
	if f.PatientID != nil {
		clause += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.Physician != "" {
		clause += fmt.Sprintf(` AND lower(primary_physician) = lower($%d)`, idx)
		args = append(args, f.Physician)
	}
	return clause, args
}

func (r *appointmentRepoPG) Search(ctx context.Context, f Filter) ([]*Appointment, int, error) {
	clause, args := where(f, true)
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	idx := len(args) + 1
	query := `SELECT ` + apptCols + ` FROM appointment` + clause +
		fmt.Sprintf(` ORDER BY schedule DESC, created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	var limit interface{} // LIMIT NULL returns every row
	if f.Limit > 0 {
		limit = f.Limit
	}
	args = append(args, limit, f.Offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) CountByStatus(ctx context.Context, f Filter) (Counts, error) {
	clause, args := where(f, false)
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT status, COUNT(*) FROM appointment`+clause+` GROUP BY status`, args...)
	if err != nil {
		return Counts{}, err
	}
	defer rows.Close()

	var counts Counts
	for rows.Next() {
		var (
			status Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, err
		}
		counts.add(status, n)
	}
	return counts, rows.Err()
}

func scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.UserID, &a.PatientID, &a.PrimaryPhysician, &a.Reason, &a.Schedule, &a.Status,
		&a.Note, &a.CancellationReason, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
