package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// parseLimit reads ?limit. A missing value yields def.
func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return min(def, maxLimit), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest)
	}
	if n > maxLimit {
		return 0, fmt.Errorf("%w: limit must not exceed %d", ErrLimitExceeded, maxLimit)
	}
	return n, nil
}

func writeLimitError(w http.ResponseWriter, err error) {
	code := "bad_request"
	if errors.Is(err, ErrLimitExceeded) {
		code = "limit_exceeded"
	}
	writeError(w, http.StatusBadRequest, code, err)
}
