package httpapi

import (
	"net/http"
)

// NewMux registers the operational endpoints. metrics may be nil.
func NewMux(store Pinger, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, store)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}
