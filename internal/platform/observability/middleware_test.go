package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/linguadesk/translator/internal/platform/requestctx"
)

func TestRequestLoggerRecordsRouteStatusAndUser(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := chi.NewRouter()
	router.Use(InjectLoggerMiddleware(zap.New(core)))
	router.Use(TraceMiddleware("lingua-test"))
	router.Use(RequestLoggerMiddleware())
	router.Get("/artifacts/{id}", func(w http.ResponseWriter, r *http.Request) {
		RecordUser(r.Context(), "user-42")
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/artifacts/abc", nil)
	req.Header.Set(cloudTraceHeader, "105445aa7843bc8bf206b12000100000/1;o=1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "/artifacts/{id}", fields["route"])
	assert.Equal(t, "user-42", fields["user_id"])
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
	assert.Equal(t, "105445aa7843bc8bf206b12000100000", fields["trace_id"])
	assert.Equal(t, "projects/lingua-test/traces/105445aa7843bc8bf206b12000100000", fields["logging.googleapis.com/trace"])
	assert.Contains(t, rec.Header().Get(cloudTraceHeader), "105445aa7843bc8bf206b12000100000/")
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_server_error")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Something went wrong")
	assert.Equal(t, 2, logs.FilterMessage("panic recovered").Len())
}

func TestParseCloudTraceContext(t *testing.T) {
	spanCtx, ok := parseCloudTraceContext("105445aa7843bc8bf206b12000100000/1;o=1")
	require.True(t, ok)
	assert.True(t, spanCtx.IsSampled())
	assert.Equal(t, "0000000000000001", spanCtx.SpanID().String())

	_, ok = parseCloudTraceContext("short/1")
	assert.False(t, ok)
	_, ok = parseCloudTraceContext("")
	assert.False(t, ok)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "/", SanitizeRoute(""))
	assert.Equal(t, "GET", SanitizeMethod("G\x00ET"))
	assert.Len(t, SanitizeUserID(strings.Repeat("a", 100)), 64)
	assert.Equal(t, requestctx.NoopLogger(), FromContext(context.Background()))
}
