package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linguadesk/translator/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "trace-1"})
	rec := httptest.NewRecorder()

	WriteError(ctx, rec, NewError("no_targets", "select at least one\nlanguage", http.StatusBadRequest).
		WithDetails(map[string]any{"field": "targets", "status": 999}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no_targets", body["error"])
	assert.Equal(t, "select at least one language", body["message"])
	assert.Equal(t, float64(http.StatusBadRequest), body["status"])
	assert.Equal(t, "trace-1", body["trace_id"])
	assert.Equal(t, "targets", body["field"])
}

func TestNewErrorDefaultsStatus(t *testing.T) {
	err := NewError("boom", "x", 0)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Equal(t, "boom: x", err.Error())
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Text string `json:"text"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, DecodeJSON(req, 1024, &dst))
	assert.Equal(t, "hi", dst.Text)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	err := DecodeJSON(req, 1024, &dst)
	var apiErr Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"a"} {"text":"b"}`))
	require.Error(t, DecodeJSON(req, 1024, &dst))
}
