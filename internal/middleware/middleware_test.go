package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/credit-ledger/internal/auth"
	"github.com/josh-kwaku/credit-ledger/internal/repository"
)

const testSecret = "middleware-test-secret"

type memoryStore struct {
	entries map[string]*repository.StoredResponse
	stores  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string]*repository.StoredResponse{}}
}

func (m *memoryStore) Lookup(_ context.Context, key string, userID uuid.UUID) (*repository.StoredResponse, error) {
	return m.entries[key+"/"+userID.String()], nil
}

func (m *memoryStore) Store(_ context.Context, s *repository.StoredResponse) error {
	m.stores++
	m.entries[s.Key+"/"+s.UserID.String()] = s
	return nil
}

func errorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Error.Code
}

func TestAuth(t *testing.T) {
	userID := uuid.New()
	valid, err := auth.GenerateToken(auth.Claims{UserID: userID}, testSecret, time.Hour)
	require.NoError(t, err)
	foreign, err := auth.GenerateToken(auth.Claims{UserID: userID}, "another-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantCode: "MISSING_TOKEN"},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
		{name: "wrong secret", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
		{name: "valid", header: "Bearer " + valid, wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *auth.Claims
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = auth.ClaimsFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Auth(testSecret)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, rec.Body))
				assert.Nil(t, seen)
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, userID, seen.UserID)
		})
	}
}

func idempotentRequest(method, key, body string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/accounts/x/charges", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req.WithContext(auth.ContextWithClaims(req.Context(), &auth.Claims{UserID: userID}))
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	h := Idempotency(store, time.Hour)(next)
	userID := uuid.New()

	first := httptest.NewRecorder()
	h.ServeHTTP(first, idempotentRequest(http.MethodPost, "k-1", `{"amount":"10"}`, userID))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, idempotentRequest(http.MethodPost, "k-1", `{"amount":"10"}`, userID))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotent-Replayed"))
	assert.JSONEq(t, `{"success":true}`, second.Body.String())
}

func TestIdempotency_KeysAreScopedPerUser(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})
	h := Idempotency(store, time.Hour)(next)

	h.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "shared", `{}`, uuid.New()))
	h.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "shared", `{}`, uuid.New()))

	assert.Equal(t, 2, calls)
}

func TestIdempotency_ConflictOnDifferentBody(t *testing.T) {
	store := newMemoryStore()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	h := Idempotency(store, time.Hour)(next)
	userID := uuid.New()

	h.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "k-2", `{"amount":"10"}`, userID))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, idempotentRequest(http.MethodPost, "k-2", `{"amount":"99"}`, userID))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "IDEMPOTENCY_CONFLICT", errorCode(t, rec.Body))
}

func TestIdempotency_RequiresKeyOnMutations(t *testing.T) {
	h := Idempotency(newMemoryStore(), time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a key")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, idempotentRequest(http.MethodPost, "", `{}`, uuid.New()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_IDEMPOTENCY_KEY", errorCode(t, rec.Body))
}

func TestIdempotency_PassesReadsAndSkipsServerErrors(t *testing.T) {
	store := newMemoryStore()
	status := http.StatusOK
	h := Idempotency(store, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, idempotentRequest(http.MethodGet, "", "", uuid.New()))
	assert.Equal(t, http.StatusOK, rec.Code)

	status = http.StatusInternalServerError
	h.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "k-3", `{}`, uuid.New()))
	assert.Zero(t, store.stores)
}

func TestTracing(t *testing.T) {
	var seen string
	h := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(traceIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(traceIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(traceIDHeader, strings.Repeat("x", maxTraceIDLen+1))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec.Body))
}
