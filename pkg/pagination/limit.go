package pagination

import (
	"errors"
	"net/http"
	"strconv"
)

// MaxLimit caps any limit accepted from a client and is the default page size.
const MaxLimit = 100

// ErrInvalidLimit is returned for a limit that is not a non-negative integer.
var ErrInvalidLimit = errors.New("limit must be a non-negative integer")

// LimitFromRequest reads the "limit" query parameter. A missing value or 0
// yields MaxLimit, as do values above it, so a client never gets more than
// MaxLimit rows.
func LimitFromRequest(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return MaxLimit, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, ErrInvalidLimit
	}
	if v == 0 {
		return MaxLimit, nil
	}
	return min(v, MaxLimit), nil
}
