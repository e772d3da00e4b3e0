package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/repository"
	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/types"
)

// ReadingStore turns accepted payloads into persisted readings and answers
// the read side of the dashboard.
type ReadingStore struct {
	repository   repository.ReadingRepository
	logger       *slog.Logger
	now          func() time.Time
	writeTimeout time.Duration
}

type Option func(*ReadingStore)

// WithClock replaces the arrival clock. Tests use it to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ReadingStore) { s.now = now }
}

// WithWriteTimeout bounds each insert. Zero means no bound.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *ReadingStore) { s.writeTimeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *ReadingStore) { s.logger = logger }
}

func NewReadingStore(repo repository.ReadingRepository, opts ...Option) *ReadingStore {
	s := &ReadingStore{
		repository: repo,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Persist stamps p with the server arrival time, validates it against the
// reading schema and inserts it. Errors are *types.ValidationFailure,
// a wrapped types.ErrStoreUnavailable or a wrapped backend error.
func (s *ReadingStore) Persist(ctx context.Context, p types.Payload) (types.Reading, error) {
	rec, err := types.ReadingFromPayload(p, s.now().UTC())
	if err != nil {
		return types.Reading{}, err
	}

	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}

	stored, err := s.repository.InsertReading(ctx, rec)
	if err != nil {
		return types.Reading{}, err
	}
	s.logger.Debug("reading stored", "id", stored.ID, "timestamp", stored.Timestamp)
	return stored, nil
}

// Latest returns the n most recent readings, newest first.
func (s *ReadingStore) Latest(ctx context.Context, n int) ([]types.Reading, error) {
	return s.repository.GetLatestReadings(ctx, n)
}

// Between returns readings with from <= timestamp <= to, newest first.
func (s *ReadingStore) Between(ctx context.Context, from time.Time, to time.Time) ([]types.Reading, error) {
	return s.repository.GetReadingsBetween(ctx, from, to)
}

// Ping reports whether the backing store is reachable.
func (s *ReadingStore) Ping(ctx context.Context) error {
	return s.repository.Ping(ctx)
}
