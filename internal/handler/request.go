package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/auth"
)

const dateLayout = "2006-01-02"

func pathID(r *http.Request, name string) (uuid.UUID, *AppError) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, ErrResourceNotFound
	}
	return id, nil
}

func decodeBody(r *http.Request, dst any) *AppError {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return ErrInvalidRequest
	}
	return nil
}

// inBusinessScope reports whether the caller may act on the business's
// ledgers. Tokens without a business claim are back-office staff and see
// every business.
func inBusinessScope(r *http.Request, businessID uuid.UUID) bool {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return false
	}
	return claims.BusinessID == nil || *claims.BusinessID == businessID
}

func queryDate(r *http.Request, key string, fallback time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func queryDecimal(r *http.Request, key string) (decimal.Decimal, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func queryInt(r *http.Request, key string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parseDate(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}
