package crdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/seat-reservations/internal/domain"
)

const (
	SerializationFailureCode = "40001"

	maxRetries = 3
)

var schema = []string{
	`CREATE SEQUENCE IF NOT EXISTS seat_hold_ids`,
	`CREATE TABLE IF NOT EXISTS seat_holds (
		id INT8 PRIMARY KEY DEFAULT nextval('seat_hold_ids'),
		customer STRING NOT NULL,
		requested_count INT8 NOT NULL,
		seats JSONB NOT NULL,
		status STRING NOT NULL,
		status_detail STRING NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS seat_holds_created_at_idx ON seat_holds (created_at)`,
}

// HoldStore keeps holds in CockroachDB. Ids come from a sequence, seats are
// stored as JSONB.
type HoldStore struct {
	pool *pgxpool.Pool
}

func NewHoldStore(pool *pgxpool.Pool) *HoldStore {
	return &HoldStore{pool: pool}
}

func (s *HoldStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "crdb.HoldStore.EnsureSchema")
		}
	}
	return nil
}

// retry reruns fn when CockroachDB asks the client to retry a statement.
func retry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != SerializationFailureCode {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 10 * time.Millisecond):
		}
	}
	return err
}

func (s *HoldStore) Save(ctx context.Context, hold domain.Hold) (domain.Hold, error) {
	const op = "crdb.HoldStore.Save"

	seats, err := json.Marshal(hold.Seats)
	if err != nil {
		return domain.Hold{}, errors.Wrap(err, op)
	}
	hold.CreatedAt = hold.CreatedAt.UTC().Truncate(time.Microsecond)

	err = retry(ctx, func() error {
		return s.pool.QueryRow(ctx, `
			INSERT INTO seat_holds (customer, requested_count, seats, status, status_detail, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, hold.Customer, hold.RequestedCount, seats, string(hold.Status), hold.StatusDetail, hold.CreatedAt).Scan(&hold.ID)
	})
	if err != nil {
		return domain.Hold{}, errors.Wrap(err, op)
	}
	return hold, nil
}

func (s *HoldStore) FindByID(ctx context.Context, id int64) (domain.Hold, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, customer, requested_count, seats, status, status_detail, created_at
		FROM seat_holds WHERE id = $1
	`, id)
	hold, err := scanHold(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Hold{}, errors.Wrapf(domain.ErrNoSuchHold, "hold %d", id)
	}
	if err != nil {
		return domain.Hold{}, errors.Wrap(err, "crdb.HoldStore.FindByID")
	}
	return hold, nil
}

func (s *HoldStore) DeleteByID(ctx context.Context, id int64) error {
	var result pgconn.CommandTag
	err := retry(ctx, func() error {
		var err error
		result, err = s.pool.Exec(ctx, `DELETE FROM seat_holds WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "crdb.HoldStore.DeleteByID")
	}
	if result.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrNoSuchHold, "hold %d", id)
	}
	return nil
}

func (s *HoldStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM seat_holds`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "crdb.HoldStore.Count")
	}
	return n, nil
}

func (s *HoldStore) CreatedBefore(ctx context.Context, cutoff time.Time) ([]domain.Hold, error) {
	const op = "crdb.HoldStore.CreatedBefore"

	rows, err := s.pool.Query(ctx, `
		SELECT id, customer, requested_count, seats, status, status_detail, created_at
		FROM seat_holds WHERE created_at <= $1
		ORDER BY id
	`, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	defer rows.Close()

	var out []domain.Hold
	for rows.Next() {
		hold, err := scanHold(rows)
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		out = append(out, hold)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, op)
	}
	return out, nil
}

func scanHold(row pgx.Row) (domain.Hold, error) {
	var (
		hold   domain.Hold
		seats  []byte
		status string
	)
	if err := row.Scan(&hold.ID, &hold.Customer, &hold.RequestedCount, &seats, &status, &hold.StatusDetail, &hold.CreatedAt); err != nil {
		return domain.Hold{}, err
	}
	if err := json.Unmarshal(seats, &hold.Seats); err != nil {
		return domain.Hold{}, errors.Wrap(err, "decode seats")
	}
	hold.Status = domain.HoldStatus(status)
	hold.CreatedAt = hold.CreatedAt.UTC()
	return hold, nil
}
