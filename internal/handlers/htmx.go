package handlers

import (
	"context"
	"net/http"
	"strings"
)

type htmxContextKey struct{}

// HTMXInfo captures request metadata from HX-* headers.
type HTMXInfo struct {
	IsHTMX         bool
	IsBoosted      bool
	CurrentURL     string
	Target         string
	TriggerID      string
	HistoryRestore bool
}

// HTMX inspects HX-* headers and annotates the context.
func HTMX() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := HTMXInfo{
				IsHTMX:         strings.EqualFold(r.Header.Get("HX-Request"), "true"),
				IsBoosted:      strings.EqualFold(r.Header.Get("HX-Boosted"), "true"),
				CurrentURL:     r.Header.Get("HX-Current-URL"),
				Target:         r.Header.Get("HX-Target"),
				TriggerID:      r.Header.Get("HX-Trigger"),
				HistoryRestore: strings.EqualFold(r.Header.Get("HX-History-Restore-Request"), "true"),
			}
			w.Header().Add("Vary", "HX-Request")
			ctx := context.WithValue(r.Context(), htmxContextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HTMXInfoFromContext retrieves HTMX metadata; returns the zero value if absent.
func HTMXInfoFromContext(ctx context.Context) HTMXInfo {
	info, _ := ctx.Value(htmxContextKey{}).(HTMXInfo)
	return info
}

// IsHTMXRequest reports whether the request was initiated by htmx and wants a fragment.
func IsHTMXRequest(ctx context.Context) bool {
	info := HTMXInfoFromContext(ctx)
	return info.IsHTMX && !info.IsBoosted && !info.HistoryRestore
}

// redirect navigates the browser, using HX-Redirect for htmx callers.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
