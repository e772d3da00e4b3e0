package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultServerURL = "http://localhost:8080"

func runLatest(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("latest")
	server := fs.String("server", envDefault("HYDROQUEST_URL", defaultServerURL), "server base URL")
	limit := fs.IntP("limit", "n", 20, "number of readings (1-1000)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(*limit))
	return getReadings(ctx, *server, "/api/readings/latest", q, stdout)
}

func runRange(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("range")
	server := fs.String("server", envDefault("HYDROQUEST_URL", defaultServerURL), "server base URL")
	from := fs.String("from", "", "range start, RFC3339 (required)")
	to := fs.String("to", "", "range end, RFC3339 (default: now)")
	since := fs.Duration("since", 0, "shorthand for --from now-since")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q, err := rangeQuery(*from, *to, *since, time.Now())
	if err != nil {
		return err
	}
	return getReadings(ctx, *server, "/api/readings", q, stdout)
}

// rangeQuery resolves the --from/--to/--since combination into query params.
func rangeQuery(from, to string, since time.Duration, now time.Time) (url.Values, error) {
	if from == "" && since <= 0 {
		return nil, fmt.Errorf("one of --from or --since is required")
	}
	if from != "" && since > 0 {
		return nil, fmt.Errorf("--from and --since are mutually exclusive")
	}
	if from == "" {
		from = now.Add(-since).UTC().Format(time.RFC3339)
	}
	if to == "" {
		to = now.UTC().Format(time.RFC3339)
	}
	for _, v := range []string{from, to} {
		if _, err := time.Parse(time.RFC3339, v); err != nil {
			return nil, fmt.Errorf("invalid time %q (want RFC3339)", v)
		}
	}
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	return q, nil
}

func getReadings(ctx context.Context, server, path string, q url.Values, stdout io.Writer) error {
	endpoint := strings.TrimSuffix(server, "/") + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Message)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var readings []json.RawMessage
	if err := json.Unmarshal(body, &readings); err != nil {
		return fmt.Errorf("decode readings: %w", err)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(readings)
}
