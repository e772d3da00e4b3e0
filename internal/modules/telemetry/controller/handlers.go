package controller

import (
	"log/slog"
	"net/http"

	"github.com/Waelalhamad/HydroQuest-Project/internal/httputil"
)

func (c *readingControllerImpl) handleLatest(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLatestQuery(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	latest, err := c.store.Latest(r.Context(), limit)
	if err != nil {
		slog.Error("latest readings failed", "limit", limit, "error", err)
		httputil.WriteStoreError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, latest)
}

func (c *readingControllerImpl) handleReadings(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRangeQuery(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	readings, err := c.store.Between(r.Context(), from, to)
	if err != nil {
		slog.Error("readings between failed", "from", from, "to", to, "error", err)
		httputil.WriteStoreError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, readings)
}
