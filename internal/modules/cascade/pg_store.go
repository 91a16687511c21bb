// README: Candidate store backed by PostgreSQL; the request row lock serialises each cascade.
package cascade

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lifelink/internal/modules/donor"
	"lifelink/internal/modules/hospital"
	"lifelink/internal/types"
)

const candidateColumns = `id, request_id, donor_id, match_score, distance_km, status,
       priority_order, created_at, notified_at, responded_at, delivered_at,
       cancel_reason, response_notes`

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) WithRequestLock(ctx context.Context, requestID types.ID, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, `SELECT id FROM blood_requests WHERE id = $1 FOR UPDATE`, string(requestID)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return hospital.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock request %s: %w", requestID, err)
	}

	if err := fn(ctx, &pgTx{
		tx:       tx,
		requests: hospital.NewStore(tx),
		donors:   donor.NewStore(tx),
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PgStore) GetCandidate(ctx context.Context, id types.ID) (*Candidate, error) {
	c, err := scanCandidate(s.db.QueryRow(ctx, `SELECT `+candidateColumns+` FROM match_candidates WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PgStore) ListCandidates(ctx context.Context, requestID types.ID) ([]*Candidate, error) {
	return listCandidates(ctx, s.db, requestID)
}

func (s *PgStore) MarkDelivered(ctx context.Context, id types.ID, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE match_candidates
        SET delivered_at = COALESCE(delivered_at, $1)
        WHERE id = $2`, at, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type pgTx struct {
	tx       pgx.Tx
	requests *hospital.Store
	donors   *donor.Store
}

func (t *pgTx) GetRequest(ctx context.Context, id types.ID) (*hospital.BloodRequest, error) {
	return t.requests.Get(ctx, id)
}

func (t *pgTx) UpdateRequestStatus(ctx context.Context, r *hospital.BloodRequest, to hospital.RequestStatus, reason *string, at time.Time) error {
	if !hospital.CanTransition(r.Status, to) {
		return fmt.Errorf("%w: request %s is %s", hospital.ErrInvalidState, r.ID, r.Status)
	}
	ok, err := t.requests.UpdateStatus(ctx, r.ID, r.Status, to, r.StatusVersion, reason, at)
	if err != nil {
		return err
	}
	if !ok {
		return hospital.ErrConflict
	}
	applyRequestStatus(r, to, reason, at)
	return nil
}

func (t *pgTx) ListCandidates(ctx context.Context, requestID types.ID) ([]*Candidate, error) {
	return listCandidates(ctx, t.tx, requestID)
}

func (t *pgTx) InsertCandidates(ctx context.Context, cs []*Candidate) error {
	batch := &pgx.Batch{}
	for _, c := range cs {
		batch.Queue(`
            INSERT INTO match_candidates (
                id, request_id, donor_id, match_score, distance_km, status,
                priority_order, created_at, notified_at, responded_at, delivered_at,
                cancel_reason, response_notes
            ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			string(c.ID), string(c.RequestID), string(c.DonorID), c.MatchScore, c.DistanceKm, string(c.Status),
			c.PriorityOrder, c.CreatedAt, c.NotifiedAt, c.RespondedAt, c.DeliveredAt,
			nullableReason(c.CancelReason), c.ResponseNotes,
		)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) UpdateCandidate(ctx context.Context, c *Candidate) error {
	tag, err := t.tx.Exec(ctx, `
        UPDATE match_candidates
        SET status = $1,
            notified_at = $2,
            responded_at = $3,
            cancel_reason = $4,
            response_notes = $5
        WHERE id = $6`,
		string(c.Status), c.NotifiedAt, c.RespondedAt, nullableReason(c.CancelReason), c.ResponseNotes, string(c.ID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) RecordDonation(ctx context.Context, rec donor.DonationRecord, points int) error {
	return t.donors.RecordDonation(ctx, rec, points)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listCandidates(ctx context.Context, db querier, requestID types.ID) ([]*Candidate, error) {
	rows, err := db.Query(ctx, `
        SELECT `+candidateColumns+`
        FROM match_candidates
        WHERE request_id = $1
        ORDER BY priority_order`, string(requestID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCandidate(row pgx.Row) (*Candidate, error) {
	var c Candidate
	var distance sql.NullFloat64
	var notifiedAt, respondedAt, deliveredAt sql.NullTime
	var reason sql.NullString

	err := row.Scan(
		&c.ID, &c.RequestID, &c.DonorID, &c.MatchScore, &distance, &c.Status,
		&c.PriorityOrder, &c.CreatedAt, &notifiedAt, &respondedAt, &deliveredAt,
		&reason, &c.ResponseNotes,
	)
	if err != nil {
		return nil, err
	}
	if distance.Valid {
		v := distance.Float64
		c.DistanceKm = &v
	}
	c.NotifiedAt = toTimePtr(notifiedAt)
	c.RespondedAt = toTimePtr(respondedAt)
	c.DeliveredAt = toTimePtr(deliveredAt)
	c.CancelReason = CancelReason(reason.String)
	return &c, nil
}

func nullableReason(r CancelReason) *string {
	if r == "" {
		return nil
	}
	v := string(r)
	return &v
}

func toTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// applyRequestStatus mirrors a committed status change onto the in-memory request.
func applyRequestStatus(r *hospital.BloodRequest, to hospital.RequestStatus, reason *string, now time.Time) {
	r.Status = to
	r.StatusVersion++
	switch to {
	case hospital.StatusFulfilled:
		r.FulfilledAt = &now
	case hospital.StatusCancelled:
		r.CancelledAt = &now
		if reason != nil {
			r.CancelReason = reason
		}
	}
}
