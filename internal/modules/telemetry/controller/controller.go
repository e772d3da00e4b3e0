package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/types"
)

// ReadingReader is the read side of the reading store.
type ReadingReader interface {
	Latest(ctx context.Context, n int) ([]types.Reading, error)
	Between(ctx context.Context, from time.Time, to time.Time) ([]types.Reading, error)
}

type ReadingController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type readingControllerImpl struct {
	store ReadingReader
}

func NewReadingController(store ReadingReader) ReadingController {
	return &readingControllerImpl{store: store}
}

func (c *readingControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/readings/latest", c.handleLatest)
	mux.HandleFunc("GET /api/readings", c.handleReadings)
}
