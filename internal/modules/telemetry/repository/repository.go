package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/get-latest-readings.sql
var getLatestReadingsSQL string

//go:embed sql/get-readings-between.sql
var getReadingsBetweenSQL string

// Fixed-width so that lexical order of the ts column is chronological order.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// ReadingRepository is the durable store behind the ingestion path.
// Every implementation validates bounds at its boundary and reports lost
// connectivity as types.ErrStoreUnavailable.
type ReadingRepository interface {
	InsertReading(ctx context.Context, r types.Reading) (types.Reading, error)
	GetLatestReadings(ctx context.Context, limit int) ([]types.Reading, error)
	GetReadingsBetween(ctx context.Context, from time.Time, to time.Time) ([]types.Reading, error)
	Ping(ctx context.Context) error
}

type repositoryImpl struct {
	db *sql.DB
}

// NewRepository returns the SQLite-backed repository. The schema is expected
// to be in place (see internal/db/migrate).
func NewRepository(db *sql.DB) ReadingRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) InsertReading(ctx context.Context, rec types.Reading) (types.Reading, error) {
	if err := types.Validate(rec); err != nil {
		return types.Reading{}, err
	}
	res, err := r.db.ExecContext(ctx, insertReadingSQL,
		nullable(rec.Temperature),
		nullable(rec.TDSValue),
		nullable(rec.Latitude),
		nullable(rec.Longitude),
		rec.Speed,
		formatTS(rec.Timestamp),
	)
	if err != nil {
		return types.Reading{}, classifySQLiteError("insert reading", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Reading{}, fmt.Errorf("insert reading: last insert id: %w", err)
	}
	rec.ID = strconv.FormatInt(id, 10)
	return rec, nil
}

func (r *repositoryImpl) GetLatestReadings(ctx context.Context, limit int) ([]types.Reading, error) {
	rows, err := r.db.QueryContext(ctx, getLatestReadingsSQL, limit)
	if err != nil {
		return nil, classifySQLiteError("latest readings", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close latest readings rows", "error", err)
		}
	}()
	return scanReadings(rows)
}

func (r *repositoryImpl) GetReadingsBetween(ctx context.Context, from time.Time, to time.Time) ([]types.Reading, error) {
	rows, err := r.db.QueryContext(ctx, getReadingsBetweenSQL, formatTS(from), formatTS(to))
	if err != nil {
		return nil, classifySQLiteError("readings between", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()
	return scanReadings(rows)
}

func (r *repositoryImpl) Ping(ctx context.Context) error {
	var ok int
	if err := r.db.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		return classifySQLiteError("ping", err)
	}
	return nil
}

func scanReadings(rows *sql.Rows) ([]types.Reading, error) {
	out := []types.Reading{}
	for rows.Next() {
		var (
			id                         int64
			temp, tds, lat, lon, speed sql.NullFloat64
			ts                         string
		)
		if err := rows.Scan(&id, &temp, &tds, &lat, &lon, &speed, &ts); err != nil {
			return nil, err
		}
		t, err := parseTS(ts)
		if err != nil {
			return nil, err
		}
		out = append(out, types.Reading{
			ID:          strconv.FormatInt(id, 10),
			Temperature: fromNull(temp),
			TDSValue:    fromNull(tds),
			Latitude:    fromNull(lat),
			Longitude:   fromNull(lon),
			Speed:       speed.Float64,
			Timestamp:   t,
		})
	}
	return out, rows.Err()
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(ts string) (time.Time, error) {
	t, err := time.Parse(tsLayout, ts)
	if err == nil {
		return t, nil
	}
	t, err2 := time.Parse(time.RFC3339Nano, ts)
	if err2 != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w; RFC3339Nano: %w", ts, err, err2)
	}
	return t.UTC(), nil
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// classifySQLiteError maps CHECK violations to a ValidationFailure and
// file-level failures to ErrStoreUnavailable.
func classifySQLiteError(op string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrConstraint:
			return &types.ValidationFailure{Fields: map[string]string{"constraint": se.Error()}}
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrCorrupt, sqlite3.ErrNotADB, sqlite3.ErrFull, sqlite3.ErrReadonly:
			return fmt.Errorf("%s: %w: %v", op, types.ErrStoreUnavailable, err)
		}
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) ||
		strings.Contains(err.Error(), "sql: database is closed") {
		return fmt.Errorf("%s: %w: %v", op, types.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
