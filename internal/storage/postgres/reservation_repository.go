package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

type reservationRepository struct {
	db *sql.DB
}

// NewReservationRepository создаёт PostgreSQL-реализацию ReservationRepository.
func NewReservationRepository(store *Store) domain.ReservationRepository {
	return &reservationRepository{db: store.DB()}
}

// Save вставляет бронь или обновляет существующую по id.
func (r *reservationRepository) Save(reservation domain.Reservation) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	req := reservation.Request
	var confirmedAt sql.NullTime
	if !reservation.ConfirmedAt.IsZero() {
		confirmedAt = sql.NullTime{Time: reservation.ConfirmedAt.UTC(), Valid: true}
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO reservations (
			id, step, reserved_on, time_slot, party_size,
			contact_name, contact_email, contact_phone, notes, confirmed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			step = EXCLUDED.step,
			reserved_on = EXCLUDED.reserved_on,
			time_slot = EXCLUDED.time_slot,
			party_size = EXCLUDED.party_size,
			contact_name = EXCLUDED.contact_name,
			contact_email = EXCLUDED.contact_email,
			contact_phone = EXCLUDED.contact_phone,
			notes = EXCLUDED.notes,
			confirmed_at = EXCLUDED.confirmed_at
	`,
		req.ID, string(reservation.Step), dateOnly(req.Date), req.TimeSlot, req.PartySize,
		req.Contact.Name, req.Contact.Email, req.Contact.Phone, req.Notes, confirmedAt,
	); err != nil {
		return fmt.Errorf("upsert reservation: %w", err)
	}

	return nil
}

const selectReservationColumns = `
	SELECT id, step, reserved_on, time_slot, party_size,
	       contact_name, contact_email, contact_phone, notes, confirmed_at
	FROM reservations
`

func (r *reservationRepository) Get(id string) (domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	reservation, err := scanReservation(r.db.QueryRowContext(ctx, selectReservationColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("select reservation: %w", err)
	}
	return reservation, nil
}

func (r *reservationRepository) ListByDate(day time.Time) ([]domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, selectReservationColumns+`
		WHERE reserved_on = $1
		ORDER BY time_slot ASC, id ASC
	`, dateOnly(day))
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Reservation, 0)
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		result = append(result, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservation rows: %w", err)
	}

	return result, nil
}

func scanReservation(row rowScanner) (domain.Reservation, error) {
	var (
		reservation domain.Reservation
		step        string
		day         time.Time
		confirmedAt sql.NullTime
	)
	req := &reservation.Request
	if err := row.Scan(
		&req.ID, &step, &day, &req.TimeSlot, &req.PartySize,
		&req.Contact.Name, &req.Contact.Email, &req.Contact.Phone, &req.Notes, &confirmedAt,
	); err != nil {
		return domain.Reservation{}, err
	}

	reservation.Step = domain.ReservationStep(step)
	req.Date = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	if confirmedAt.Valid {
		reservation.ConfirmedAt = confirmedAt.Time.UTC()
	}
	return reservation, nil
}

// dateOnly приводит время к календарной дате в его собственном часовом поясе.
func dateOnly(t time.Time) string {
	return t.Format(time.DateOnly)
}

var _ domain.ReservationRepository = (*reservationRepository)(nil)
