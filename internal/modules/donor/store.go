// README: Donor store backed by PostgreSQL.
package donor

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"lifelink/internal/types"
)

const donorColumns = `id, full_name, phone, device_token, blood_type, lat, lng,
       available, last_donation_date, donation_count, points, created_at`

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DBTX
}

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, d *Donor) error {
	var lat, lng *float64
	if d.Location != nil {
		lat, lng = &d.Location.Lat, &d.Location.Lng
	}
	_, err := s.db.Exec(ctx, `
        INSERT INTO donors (
            id, full_name, phone, device_token, blood_type, lat, lng,
            available, last_donation_date, donation_count, points, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(d.ID), d.FullName, d.Phone, d.DeviceToken, string(d.BloodType), lat, lng,
		d.Available, d.LastDonationDate, d.DonationCount, d.Points, d.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Donor, error) {
	row := s.db.QueryRow(ctx, `SELECT `+donorColumns+` FROM donors WHERE id = $1`, string(id))
	d, err := scanDonor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) ListAvailable(ctx context.Context) ([]Donor, error) {
	return s.list(ctx, `SELECT `+donorColumns+` FROM donors WHERE available ORDER BY created_at`)
}

func (s *Store) ListAvailableByIDs(ctx context.Context, ids []types.ID) ([]Donor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	return s.list(ctx, `SELECT `+donorColumns+` FROM donors WHERE available AND id = ANY($1) ORDER BY created_at`, raw)
}

// ListAvailableUnindexed returns available donors the GEO index cannot
// answer for: those without a location and those whose location was never
// written to the index.
func (s *Store) ListAvailableUnindexed(ctx context.Context) ([]Donor, error) {
	return s.list(ctx, `SELECT `+donorColumns+` FROM donors
        WHERE available AND (lat IS NULL OR lng IS NULL OR NOT geo_indexed)
        ORDER BY created_at`)
}

// ListLocated returns available donors with a location, for index rebuilds.
func (s *Store) ListLocated(ctx context.Context) ([]Donor, error) {
	return s.list(ctx, `SELECT `+donorColumns+` FROM donors
        WHERE available AND lat IS NOT NULL AND lng IS NOT NULL
        ORDER BY created_at`)
}

func (s *Store) SetIndexed(ctx context.Context, id types.ID, indexed bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE donors SET geo_indexed = $1 WHERE id = $2`, indexed, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLocation stores a new position. The donor counts as unindexed until
// the GEO index confirms the write.
func (s *Store) UpdateLocation(ctx context.Context, id types.ID, p types.Point) error {
	tag, err := s.db.Exec(ctx, `UPDATE donors SET lat = $1, lng = $2, geo_indexed = FALSE WHERE id = $3`, p.Lat, p.Lng, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetAvailability(ctx context.Context, id types.ID, available bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE donors SET available = $1 WHERE id = $2`, available, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetDeviceToken(ctx context.Context, id types.ID, token string) error {
	tag, err := s.db.Exec(ctx, `UPDATE donors SET device_token = $1 WHERE id = $2`, token, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordDonation inserts the donation record and credits the donor. Callers
// run it inside the transaction that accepts the match.
func (s *Store) RecordDonation(ctx context.Context, rec DonationRecord, points int) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO donation_records (id, donor_id, request_id, facility_id, donated_on, units, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(rec.ID), string(rec.DonorID), string(rec.RequestID), string(rec.FacilityID),
		rec.DonatedOn, rec.Units, rec.CreatedAt,
	)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
        UPDATE donors
        SET donation_count = donation_count + 1,
            last_donation_date = $1,
            points = points + $2
        WHERE id = $3`,
		rec.DonatedOn, points, string(rec.DonorID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, full_name, blood_type, donation_count, points
        FROM donors
        WHERE donation_count > 0
        ORDER BY points DESC, donation_count DESC, created_at
        LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.DonorID, &e.FullName, &e.BloodType, &e.DonationCount, &e.Points); err != nil {
			return nil, err
		}
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) History(ctx context.Context, donorID types.ID) ([]DonationRecord, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, donor_id, request_id, facility_id, donated_on, units, created_at
        FROM donation_records
        WHERE donor_id = $1
        ORDER BY donated_on DESC, created_at DESC`, string(donorID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DonationRecord
	for rows.Next() {
		var r DonationRecord
		if err := rows.Scan(&r.ID, &r.DonorID, &r.RequestID, &r.FacilityID, &r.DonatedOn, &r.Units, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Donor, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Donor
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDonor(row pgx.Row) (*Donor, error) {
	var d Donor
	var lat, lng sql.NullFloat64
	var lastDonation sql.NullTime

	err := row.Scan(
		&d.ID, &d.FullName, &d.Phone, &d.DeviceToken, &d.BloodType, &lat, &lng,
		&d.Available, &lastDonation, &d.DonationCount, &d.Points, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		d.Location = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	d.LastDonationDate = toTimePtr(lastDonation)
	return &d, nil
}

func toTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
