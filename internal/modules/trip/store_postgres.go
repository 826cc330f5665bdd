// README: Trip store backed by PostgreSQL (pgx); status writes are guarded compare-and-swap.
package trip

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"busops/internal/types"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	pool *pgxpool.Pool
	q    querier
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: db, q: db}
}

const tripColumns = `id, route_id, bus_id, driver_id, status, status_version,
       scheduled_departure, scheduled_arrival, actual_departure, actual_arrival,
       start_odometer, start_fuel, end_odometer, end_fuel, trip_stats, completion_notes,
       cancellation_reason, cancelled_at, cancelled_by, created_at, updated_at`

// CreateTrip inserts a trip row. Used by the scheduling workflow and tests.
func (s *PostgresStore) CreateTrip(ctx context.Context, t *Trip) error {
	stats, err := marshalStats(t.Stats)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `
        INSERT INTO trips (
            id, route_id, bus_id, driver_id, status, status_version,
            scheduled_departure, scheduled_arrival, actual_departure, actual_arrival,
            start_odometer, start_fuel, end_odometer, end_fuel, trip_stats, completion_notes,
            cancellation_reason, cancelled_at, cancelled_by, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6,
            $7, $8, $9, $10,
            $11, $12, $13, $14, $15, $16,
            $17, $18, $19, $20, $21
        )`,
		string(t.ID), toStringPtr(t.RouteID), toStringPtr(t.BusID), toStringPtr(t.DriverID),
		string(t.Status), t.StatusVersion,
		t.ScheduledDeparture, t.ScheduledArrival, t.ActualDeparture, t.ActualArrival,
		t.StartOdometer, t.StartFuel, t.EndOdometer, t.EndFuel, stats, t.CompletionNotes,
		t.CancellationReason, t.CancelledAt, toStringPtr(t.CancelledBy), t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) CreateBooking(ctx context.Context, b *Booking) error {
	_, err := s.q.Exec(ctx, `
        INSERT INTO bookings (
            id, trip_id, passenger_id, seat_id, booking_status, payment_status,
            checked_in, total_amount, currency
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(b.ID), string(b.TripID), string(b.PassengerID), b.SeatID,
		string(b.Status), string(b.PaymentStatus), b.CheckedIn,
		b.TotalAmount.Amount, b.TotalAmount.Currency,
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.q.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, string(id))
	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*Trip, error) {
	where, args, err := filterSQL(f, 1)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, `SELECT `+tripColumns+` FROM trips WHERE `+where+
		` ORDER BY `+string(fieldOrDefault(f.Field))+`, id`, args...)
	if err != nil {
		return nil, err
	}
	return collectTrips(rows)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error) {
	stats, err := marshalStats(u.Stats)
	if err != nil {
		return false, err
	}
	tag, err := s.q.Exec(ctx, `
        UPDATE trips
        SET status = $1,
            status_version = status_version + 1,
            updated_at = $2,
            actual_departure = COALESCE($3, actual_departure),
            actual_arrival = COALESCE($4, actual_arrival),
            end_odometer = COALESCE($5, end_odometer),
            end_fuel = COALESCE($6, end_fuel),
            trip_stats = COALESCE($7, trip_stats),
            completion_notes = COALESCE($8, completion_notes),
            cancellation_reason = COALESCE($9, cancellation_reason),
            cancelled_at = COALESCE($10, cancelled_at),
            cancelled_by = COALESCE($11, cancelled_by)
        WHERE id = $12 AND status = $13 AND status_version = $14`,
		string(u.To),
		u.At,
		u.ActualDeparture,
		u.ActualArrival,
		u.EndOdometer,
		u.EndFuel,
		stats,
		u.CompletionNotes,
		u.CancellationReason,
		u.CancelledAt,
		toStringPtr(u.CancelledBy),
		string(u.TripID),
		string(u.From),
		u.Version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) BulkUpdateStatus(ctx context.Context, f Filter, to Status, at time.Time) ([]*Trip, error) {
	if len(f.Statuses) != 1 {
		return nil, fmt.Errorf("bulk update needs exactly one source status, got %d", len(f.Statuses))
	}
	where, args, err := filterSQL(f, 3)
	if err != nil {
		return nil, err
	}
	args = append([]any{string(to), at}, args...)
	rows, err := s.q.Query(ctx, `
        UPDATE trips
        SET status = $1,
            status_version = status_version + 1,
            updated_at = $2
        WHERE `+where+`
        RETURNING `+tripColumns, args...)
	if err != nil {
		return nil, err
	}
	return collectTrips(rows)
}

func (s *PostgresStore) Bookings(ctx context.Context, tripID types.ID) ([]*Booking, error) {
	rows, err := s.q.Query(ctx, `
        SELECT id, trip_id, passenger_id, seat_id, booking_status, payment_status,
               checked_in, total_amount, currency
        FROM bookings
        WHERE trip_id = $1
        ORDER BY id`, string(tripID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(
			&b.ID, &b.TripID, &b.PassengerID, &b.SeatID, &b.Status, &b.PaymentStatus,
			&b.CheckedIn, &b.TotalAmount.Amount, &b.TotalAmount.Currency,
		); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CancelBooking(ctx context.Context, bookingID types.ID) (bool, error) {
	tag, err := s.q.Exec(ctx, `
        UPDATE bookings
        SET booking_status = 'CANCELLED',
            payment_status = 'REFUND_PENDING'
        WHERE id = $1 AND booking_status = 'CONFIRMED'`, string(bookingID))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) AppendLog(ctx context.Context, l *Log) error {
	_, err := s.q.Exec(ctx, `
        INSERT INTO trip_logs (id, trip_id, event_type, description, actor_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		string(l.ID),
		string(l.TripID),
		string(l.EventType),
		l.Description,
		toStringPtr(l.ActorID),
		l.Timestamp,
	)
	return err
}

func (s *PostgresStore) Logs(ctx context.Context, tripID types.ID) ([]*Log, error) {
	rows, err := s.q.Query(ctx, `
        SELECT id, trip_id, event_type, description, actor_id, created_at
        FROM trip_logs
        WHERE trip_id = $1
        ORDER BY created_at, seq`, string(tripID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Log
	for rows.Next() {
		var l Log
		var actorID sql.NullString
		if err := rows.Scan(&l.ID, &l.TripID, &l.EventType, &l.Description, &actorID, &l.Timestamp); err != nil {
			return nil, err
		}
		l.ActorID = toIDPtr(actorID)
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&PostgresStore{q: tx})
	})
}

func filterSQL(f Filter, next int) (string, []any, error) {
	field := fieldOrDefault(f.Field)
	if field != FieldDeparture && field != FieldArrival {
		return "", nil, fmt.Errorf("unsupported filter field %q", f.Field)
	}
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", next+len(args)-1)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		conds = append(conds, "status = ANY("+arg(statuses)+")")
	}
	if f.After != nil {
		conds = append(conds, string(field)+" > "+arg(*f.After))
	}
	if f.Until != nil {
		conds = append(conds, string(field)+" <= "+arg(*f.Until))
	}
	if f.Before != nil {
		conds = append(conds, string(field)+" < "+arg(*f.Before))
	}
	if len(conds) == 0 {
		return "TRUE", nil, nil
	}
	return strings.Join(conds, " AND "), args, nil
}

func fieldOrDefault(f TimeField) TimeField {
	if f == "" {
		return FieldDeparture
	}
	return f
}

func collectTrips(rows pgx.Rows) ([]*Trip, error) {
	defer rows.Close()
	var out []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTrip(row pgx.Row) (*Trip, error) {
	var t Trip
	var routeID, busID, driverID, cancelledBy sql.NullString
	var stats []byte
	err := row.Scan(
		&t.ID, &routeID, &busID, &driverID, &t.Status, &t.StatusVersion,
		&t.ScheduledDeparture, &t.ScheduledArrival, &t.ActualDeparture, &t.ActualArrival,
		&t.StartOdometer, &t.StartFuel, &t.EndOdometer, &t.EndFuel, &stats, &t.CompletionNotes,
		&t.CancellationReason, &t.CancelledAt, &cancelledBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.RouteID = toIDPtr(routeID)
	t.BusID = toIDPtr(busID)
	t.DriverID = toIDPtr(driverID)
	t.CancelledBy = toIDPtr(cancelledBy)
	if len(stats) > 0 {
		var st Stats
		if err := json.Unmarshal(stats, &st); err != nil {
			return nil, fmt.Errorf("decode trip_stats: %w", err)
		}
		t.Stats = &st
	}
	return &t, nil
}

func marshalStats(st *Stats) ([]byte, error) {
	if st == nil {
		return nil, nil
	}
	return json.Marshal(st)
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toIDPtr(v sql.NullString) *types.ID {
	if !v.Valid {
		return nil
	}
	id := types.ID(v.String)
	return &id
}
