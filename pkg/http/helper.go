package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "laundry/pkg/errors"
)

// QueryString returns the trimmed value of a query parameter.
func QueryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// ParseDate reads a YYYY-MM-DD query parameter as local midnight in loc. When the
// parameter is absent, today in loc is returned.
func ParseDate(r *http.Request, key string, loc *time.Location, now time.Time) (time.Time, error) {
	s := QueryString(r, key)
	if s == "" {
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	day, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("invalid " + key + " parameter: " + s + " (expected YYYY-MM-DD)")
	}
	return day, nil
}

// ParseInt reads an integer query parameter bounded to [min, max].
func ParseInt(r *http.Request, key string, fallback, min, max int) (int, error) {
	s := QueryString(r, key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperrors.InvalidInput("invalid " + key + " parameter: " + s)
	}
	if v < min || v > max {
		return 0, apperrors.InvalidInput(key + " must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return v, nil
}
