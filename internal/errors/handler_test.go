package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routekit/internal/shared/testutil"
)

type testPanic struct{ v interface{} }

func (p testPanic) Error() string          { return fmt.Sprintf("panic: %v", p.v) }
func (p testPanic) Recovered() interface{} { return p.v }

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantDetail string
	}{
		{
			name:       "api error",
			err:        ErrValidation("message", "required"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantDetail: "Request validation failed",
		},
		{
			name:       "wrapped api error",
			err:        fmt.Errorf("lookup: %w", ErrConflict),
			wantStatus: http.StatusConflict,
			wantType:   TypeConflict,
		},
		{
			name:       "app not found error",
			err:        NewNotFoundError("room lobby"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
			wantDetail: "room lobby not found",
		},
		{
			name:       "resolution error hides cause",
			err:        NewResolutionError("cannot resolve", fmt.Errorf("secret")),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeResolution,
			wantDetail: "An unexpected error occurred while processing your request",
		},
		{
			name:       "deadline",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "recovered panic",
			err:        testPanic{v: "boom"},
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeHandlerPanic,
		},
		{
			name:       "plain error",
			err:        fmt.Errorf("anything"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantLog := "request failed"
			if _, ok := tt.err.(recoveredPanic); ok {
				wantLog = "panic recovered"
			}
			logger, logs := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/rooms/lobby", nil)
			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, "/api/rooms/lobby", body["instance"])
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, body["detail"])
			}
			assert.NotContains(t, body, "stack")
			testutil.AssertLogContains(t, logs, slog.LevelError, wantLog)
		})
	}
}

func TestErrorHandler_HandleErrorNil(t *testing.T) {
	h := NewErrorHandler(nil, false)
	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Zero(t, rec.Body.Len())
}

func TestErrorHandler_IncludeStack(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)

	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), testPanic{v: "boom"})

	body := decodeProblem(t, rec)
	assert.Equal(t, "boom", body["panic"])
	assert.NotEmpty(t, body["stack"])
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	h := NewErrorHandler(nil, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, rec)["type"])

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPatch, "/api/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decodeProblem(t, rec)["detail"], "PATCH")
}

func TestRecoveryMiddleware(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	handler := RecoveryMiddleware(h)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, TypeHandlerPanic, decodeProblem(t, rec)["type"])
	testutil.AssertLogContains(t, logs, slog.LevelError, "panic recovered")

	abort := RecoveryMiddleware(h)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		abort.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
