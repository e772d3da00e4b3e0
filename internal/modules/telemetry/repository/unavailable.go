package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/types"
)

type unavailableRepository struct {
	cause error
}

// NewUnavailableRepository backs degraded mode: the server keeps running
// without a store and every operation fails with types.ErrStoreUnavailable.
func NewUnavailableRepository(cause error) ReadingRepository {
	return &unavailableRepository{cause: cause}
}

func (r *unavailableRepository) err() error {
	if r.cause == nil {
		return types.ErrStoreUnavailable
	}
	return fmt.Errorf("%w: %v", types.ErrStoreUnavailable, r.cause)
}

func (r *unavailableRepository) InsertReading(context.Context, types.Reading) (types.Reading, error) {
	return types.Reading{}, r.err()
}

func (r *unavailableRepository) GetLatestReadings(context.Context, int) ([]types.Reading, error) {
	return nil, r.err()
}

func (r *unavailableRepository) GetReadingsBetween(context.Context, time.Time, time.Time) ([]types.Reading, error) {
	return nil, r.err()
}

func (r *unavailableRepository) Ping(context.Context) error {
	return r.err()
}
