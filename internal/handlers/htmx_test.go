package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTMXMiddlewareAnnotatesContext(t *testing.T) {
	t.Parallel()

	var got HTMXInfo
	handler := HTMX()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = HTMXInfoFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/translate/text", nil)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", "results")
	req.Header.Set("HX-Trigger", "translate")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.True(t, got.IsHTMX)
	require.False(t, got.IsBoosted)
	require.Equal(t, "results", got.Target)
	require.Equal(t, "translate", got.TriggerID)
	require.Equal(t, "HX-Request", rec.Header().Get("Vary"))
}

func TestIsHTMXRequestIgnoresBoostedNavigation(t *testing.T) {
	t.Parallel()

	var fragment bool
	handler := HTMX()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fragment = IsHTMXRequest(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Boosted", "true")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.False(t, fragment)
}

func TestRedirectUsesHXRedirectForHTMX(t *testing.T) {
	t.Parallel()

	handler := HTMX()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		redirect(w, r, "/next")
	}))

	plain := httptest.NewRecorder()
	handler.ServeHTTP(plain, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusSeeOther, plain.Code)
	require.Equal(t, "/next", plain.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("HX-Request", "true")
	htmx := httptest.NewRecorder()
	handler.ServeHTTP(htmx, req)
	require.Equal(t, http.StatusNoContent, htmx.Code)
	require.Equal(t, "/next", htmx.Header().Get("HX-Redirect"))
}
