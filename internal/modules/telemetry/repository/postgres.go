package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/types"
)

//go:embed sql/postgres-schema.sql
var postgresSchemaSQL string

const (
	pgInsertReadingSQL = `INSERT INTO readings (temperature, tds_value, latitude, longitude, speed, ts)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	pgLatestReadingsSQL = `SELECT id, temperature, tds_value, latitude, longitude, speed, ts
FROM readings ORDER BY ts DESC, id DESC LIMIT $1`
	pgReadingsBetweenSQL = `SELECT id, temperature, tds_value, latitude, longitude, speed, ts
FROM readings WHERE ts >= $1 AND ts <= $2 ORDER BY ts DESC, id DESC`
)

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository stores readings in a PostgreSQL (or TimescaleDB)
// table through a shared pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) ReadingRepository {
	return &postgresRepository{pool: pool}
}

// EnsurePostgresSchema creates the readings table and index when missing.
func EnsurePostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchemaSQL); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

func (r *postgresRepository) InsertReading(ctx context.Context, rec types.Reading) (types.Reading, error) {
	if err := types.Validate(rec); err != nil {
		return types.Reading{}, err
	}
	// timestamptz holds microseconds; return what a later read will see.
	rec.Timestamp = rec.Timestamp.UTC().Truncate(time.Microsecond)
	var id int64
	err := r.pool.QueryRow(ctx, pgInsertReadingSQL,
		rec.Temperature, rec.TDSValue, rec.Latitude, rec.Longitude, rec.Speed, rec.Timestamp,
	).Scan(&id)
	if err != nil {
		return types.Reading{}, classifyPostgresError("insert reading", err)
	}
	rec.ID = strconv.FormatInt(id, 10)
	return rec, nil
}

func (r *postgresRepository) GetLatestReadings(ctx context.Context, limit int) ([]types.Reading, error) {
	rows, err := r.pool.Query(ctx, pgLatestReadingsSQL, limit)
	if err != nil {
		return nil, classifyPostgresError("latest readings", err)
	}
	return collectPostgresReadings(rows)
}

func (r *postgresRepository) GetReadingsBetween(ctx context.Context, from time.Time, to time.Time) ([]types.Reading, error) {
	rows, err := r.pool.Query(ctx, pgReadingsBetweenSQL, from.UTC(), to.UTC())
	if err != nil {
		return nil, classifyPostgresError("readings between", err)
	}
	return collectPostgresReadings(rows)
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w: %v", types.ErrStoreUnavailable, err)
	}
	return nil
}

func collectPostgresReadings(rows pgx.Rows) ([]types.Reading, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Reading, error) {
		var (
			id  int64
			rec types.Reading
		)
		if err := row.Scan(&id, &rec.Temperature, &rec.TDSValue, &rec.Latitude, &rec.Longitude, &rec.Speed, &rec.Timestamp); err != nil {
			return types.Reading{}, err
		}
		rec.ID = strconv.FormatInt(id, 10)
		rec.Timestamp = rec.Timestamp.UTC()
		return rec, nil
	})
	if err != nil {
		return nil, classifyPostgresError("scan readings", err)
	}
	if out == nil {
		out = []types.Reading{}
	}
	return out, nil
}

// classifyPostgresError: a server-side error means the connection works, so
// only integrity violations (class 23) become validation failures. Anything
// that never reached the server is connectivity.
func classifyPostgresError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
			return &types.ValidationFailure{Fields: map[string]string{"constraint": pgErr.ConstraintName + ": " + pgErr.Message}}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %v", op, types.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
