package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agendasaude/agendasaude/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// =========== Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

func (r *slotRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const slotCols = `id, slot_date, start_time, end_time, available,
	professional_id, unit_id, service_id, created_at`

func (r *slotRepoPG) scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	err := row.Scan(&s.ID, &s.Date, &s.StartTime, &s.EndTime, &s.Available,
		&s.ProfessionalID, &s.UnitID, &s.ServiceID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	return &s, err
}

func (r *slotRepoPG) Create(ctx context.Context, s *TimeSlot) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO time_slot (id, slot_date, start_time, end_time, available,
			professional_id, unit_id, service_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		s.ID, s.Date, s.StartTime, s.EndTime, s.Available,
		s.ProfessionalID, s.UnitID, s.ServiceID)
	return err
}

func (r *slotRepoPG) CreateMany(ctx context.Context, slots []*TimeSlot) error {
	batch := &pgx.Batch{}
	for _, s := range slots {
		s.ID = uuid.New()
		batch.Queue(`
			INSERT INTO time_slot (id, slot_date, start_time, end_time, available,
				professional_id, unit_id, service_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			s.ID, s.Date, s.StartTime, s.EndTime, s.Available,
			s.ProfessionalID, s.UnitID, s.ServiceID)
	}
	br := r.conn(ctx).SendBatch(ctx, batch)
	defer br.Close()
	for range slots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	return r.scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM time_slot WHERE id = $1`, id))
}

// FindConflicts returns the professional's slots overlapping [start, end).
// Half-open comparison: a slot ending exactly at start does not conflict.
func (r *slotRepoPG) FindConflicts(ctx context.Context, professionalID uuid.UUID, start, end time.Time) ([]*TimeSlot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM time_slot
		WHERE professional_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time ASC`,
		professionalID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*TimeSlot
	for rows.Next() {
		s, err := r.scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *slotRepoPG) FindAvailable(ctx context.Context, f SlotFilters, limit, offset int) ([]*TimeSlot, int, error) {
	query := `SELECT ` + slotCols + ` FROM time_slot WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM time_slot WHERE 1=1`
	var args []interface{}
	idx := 1

	add := func(cond string, val interface{}) {
		clause := fmt.Sprintf(cond, idx)
		query += clause
		countQuery += clause
		args = append(args, val)
		idx++
	}

	if f.UnitID != nil {
		add(` AND unit_id = $%d`, *f.UnitID)
	}
	if f.ServiceID != nil {
		add(` AND service_id = $%d`, *f.ServiceID)
	}
	if f.ProfessionalID != nil {
		add(` AND professional_id = $%d`, *f.ProfessionalID)
	}
	if f.DateFrom != nil {
		add(` AND slot_date >= $%d`, *f.DateFrom)
	}
	if f.DateTo != nil {
		add(` AND slot_date <= $%d`, *f.DateTo)
	}
	if f.Available != nil {
		add(` AND available = $%d`, *f.Available)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY start_time ASC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*TimeSlot
	for rows.Next() {
		s, err := r.scanSlot(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *slotRepoPG) Update(ctx context.Context, s *TimeSlot) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE time_slot SET slot_date=$2, start_time=$3, end_time=$4, available=$5,
			professional_id=$6, unit_id=$7, service_id=$8
		WHERE id = $1`,
		s.ID, s.Date, s.StartTime, s.EndTime, s.Available,
		s.ProfessionalID, s.UnitID, s.ServiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Reserve flips availability with a conditional update so that concurrent
// reservers serialize at the database: exactly one caller sees a row change.
func (r *slotRepoPG) Reserve(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE time_slot SET available = false WHERE id = $1 AND available = true`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

func (r *slotRepoPG) Release(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE time_slot SET available = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *slotRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM time_slot WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// =========== Booking Repository ===========

type bookingRepoPG struct{ pool *pgxpool.Pool }

func NewBookingRepoPG(pool *pgxpool.Pool) BookingRepository { return &bookingRepoPG{pool: pool} }

func (r *bookingRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const bookingCols = `id, slot_id, citizen_id, status, confirm_code,
	scheduled_at, created_at, updated_at`

func (r *bookingRepoPG) scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.SlotID, &b.CitizenID, &b.Status, &b.ConfirmCode,
		&b.ScheduledAt, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return &b, err
}

func (r *bookingRepoPG) Create(ctx context.Context, b *Booking) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO booking (id, slot_id, citizen_id, status, confirm_code, scheduled_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		b.ID, b.SlotID, b.CitizenID, b.Status, b.ConfirmCode, b.ScheduledAt)
	return err
}

func (r *bookingRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return r.scanBooking(r.conn(ctx).QueryRow(ctx, `SELECT `+bookingCols+` FROM booking WHERE id = $1`, id))
}

func (r *bookingRepoPG) GetByConfirmCode(ctx context.Context, code string) (*Booking, error) {
	return r.scanBooking(r.conn(ctx).QueryRow(ctx, `SELECT `+bookingCols+` FROM booking WHERE confirm_code = $1`, code))
}

func (r *bookingRepoPG) ListByCitizen(ctx context.Context, citizenID uuid.UUID, limit, offset int) ([]*Booking, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM booking WHERE citizen_id = $1`, citizenID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+bookingCols+` FROM booking
		WHERE citizen_id = $1
		ORDER BY scheduled_at DESC LIMIT $2 OFFSET $3`,
		citizenID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Booking
	for rows.Next() {
		b, err := r.scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *bookingRepoPG) ListByStatus(ctx context.Context, status BookingStatus, limit, offset int) ([]*Booking, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM booking WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+bookingCols+` FROM booking
		WHERE status = $1
		ORDER BY scheduled_at ASC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Booking
	for rows.Next() {
		b, err := r.scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *bookingRepoPG) Update(ctx context.Context, b *Booking) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE booking SET status=$2, confirm_code=$3, scheduled_at=$4, updated_at=NOW()
		WHERE id = $1`,
		b.ID, b.Status, b.ConfirmCode, b.ScheduledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *bookingRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM booking WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}
