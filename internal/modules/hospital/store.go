// README: Facility and request store backed by PostgreSQL.
package hospital

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"lifelink/internal/types"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const requestSelect = `
        SELECT r.id, r.facility_id, f.name, f.address, f.lat, f.lng,
               r.patient_name, r.blood_type, r.units_needed, r.urgency,
               r.status, r.status_version, r.notes, r.created_at, r.required_by,
               r.fulfilled_at, r.cancelled_at, r.cancel_reason
        FROM blood_requests r
        JOIN facilities f ON f.id = r.facility_id`

type Store struct {
	db DBTX
}

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) CreateFacility(ctx context.Context, f *Facility) error {
	var lat, lng *float64
	if f.Location != nil {
		lat, lng = &f.Location.Lat, &f.Location.Lng
	}
	_, err := s.db.Exec(ctx, `
        INSERT INTO facilities (id, name, address, phone, lat, lng, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(f.ID), f.Name, f.Address, f.Phone, lat, lng, f.CreatedAt,
	)
	return err
}

func (s *Store) GetFacility(ctx context.Context, id types.ID) (*Facility, error) {
	var f Facility
	var lat, lng sql.NullFloat64
	err := s.db.QueryRow(ctx, `
        SELECT id, name, address, phone, lat, lng, created_at
        FROM facilities WHERE id = $1`, string(id),
	).Scan(&f.ID, &f.Name, &f.Address, &f.Phone, &lat, &lng, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.Location = toPoint(lat, lng)
	return &f, nil
}

func (s *Store) ListFacilities(ctx context.Context) ([]Facility, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, name, address, phone, lat, lng, created_at
        FROM facilities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Facility
	for rows.Next() {
		var f Facility
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&f.ID, &f.Name, &f.Address, &f.Phone, &lat, &lng, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Location = toPoint(lat, lng)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) SetFacilityLocation(ctx context.Context, id types.ID, p types.Point) error {
	tag, err := s.db.Exec(ctx, `UPDATE facilities SET lat = $1, lng = $2 WHERE id = $3`, p.Lat, p.Lng, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreateRequest(ctx context.Context, r *BloodRequest) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO blood_requests (
            id, facility_id, patient_name, blood_type, units_needed, urgency,
            status, status_version, notes, created_at, required_by
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(r.ID), string(r.FacilityID), r.PatientName, string(r.BloodType), r.UnitsNeeded,
		string(r.Urgency), string(r.Status), r.StatusVersion, r.Notes, r.CreatedAt, r.RequiredBy,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*BloodRequest, error) {
	r, err := scanRequest(s.db.QueryRow(ctx, requestSelect+` WHERE r.id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) ListByStatus(ctx context.Context, statuses ...RequestStatus) ([]BloodRequest, error) {
	raw := make([]string, len(statuses))
	for i, st := range statuses {
		raw[i] = string(st)
	}
	rows, err := s.db.Query(ctx, requestSelect+` WHERE r.status = ANY($1) ORDER BY r.created_at`, raw)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BloodRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateStatus moves a request from one status to another, guarded by the
// status version. at stamps fulfilled_at or cancelled_at. It reports false
// when another writer got there first.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to RequestStatus, version int, reason *string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE blood_requests
        SET status = $1,
            status_version = status_version + 1,
            fulfilled_at = CASE WHEN $1 = 'fulfilled' THEN $6 ELSE fulfilled_at END,
            cancelled_at = CASE WHEN $1 = 'cancelled' THEN $6 ELSE cancelled_at END,
            cancel_reason = COALESCE($2, cancel_reason)
        WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), reason, string(id), string(from), version, at,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Stats(ctx context.Context, facilityID *types.ID) (Stats, error) {
	var fid *string
	if facilityID != nil {
		v := string(*facilityID)
		fid = &v
	}
	rows, err := s.db.Query(ctx, `
        SELECT status, COUNT(*)
        FROM blood_requests
        WHERE $1::text IS NULL OR facility_id = $1
        GROUP BY status`, fid)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var status RequestStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, err
		}
		st.add(status, n)
	}
	return st, rows.Err()
}

func (st *Stats) add(status RequestStatus, n int) {
	st.Total += n
	switch status {
	case StatusPending:
		st.Pending += n
	case StatusNotified:
		st.Notified += n
	case StatusFulfilled:
		st.Fulfilled += n
	case StatusCancelled:
		st.Cancelled += n
	}
}

func scanRequest(row pgx.Row) (*BloodRequest, error) {
	var r BloodRequest
	var lat, lng sql.NullFloat64
	var requiredBy, fulfilledAt, cancelledAt sql.NullTime
	var cancelReason sql.NullString

	err := row.Scan(
		&r.ID, &r.FacilityID, &r.FacilityName, &r.FacilityAddress, &lat, &lng,
		&r.PatientName, &r.BloodType, &r.UnitsNeeded, &r.Urgency,
		&r.Status, &r.StatusVersion, &r.Notes, &r.CreatedAt, &requiredBy,
		&fulfilledAt, &cancelledAt, &cancelReason,
	)
	if err != nil {
		return nil, err
	}
	r.Location = toPoint(lat, lng)
	r.RequiredBy = toTimePtr(requiredBy)
	r.FulfilledAt = toTimePtr(fulfilledAt)
	r.CancelledAt = toTimePtr(cancelledAt)
	if cancelReason.Valid {
		r.CancelReason = &cancelReason.String
	}
	return &r, nil
}

func toPoint(lat, lng sql.NullFloat64) *types.Point {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &types.Point{Lat: lat.Float64, Lng: lng.Float64}
}

func toTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
