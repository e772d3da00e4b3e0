package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultLatestLimit = 20
	maxLatestLimit     = 1000
)

func parseRangeQuery(r *http.Request) (from time.Time, to time.Time, err error) {
	q := r.URL.Query()

	s := q.Get("from")
	if s == "" {
		return time.Time{}, time.Time{}, errors.New("missing 'from' (expected RFC3339)")
	}
	from, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid 'from' (expected RFC3339)")
	}

	s = q.Get("to")
	if s == "" {
		return time.Time{}, time.Time{}, errors.New("missing 'to' (expected RFC3339)")
	}
	to, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid 'to' (expected RFC3339)")
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, errors.New("'from' must be <= 'to'")
	}
	return from, to, nil
}

func parseLatestQuery(r *http.Request) (limit int, err error) {
	limit = defaultLatestLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, errors.New("invalid 'limit' (expected integer)")
		}
		if n <= 0 {
			return 0, errors.New("'limit' must be > 0")
		}
		if n > maxLatestLimit {
			return 0, errors.New("'limit' must be <= 1000")
		}
		limit = n
	}
	return limit, nil
}
