package session

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/linguadesk/translator/internal/platform/observability"
	"github.com/linguadesk/translator/internal/platform/requestctx"
)

type contextKey struct{}

// Store abstracts the manager for middleware integration.
type Store interface {
	Load(*http.Request) (*Session, error)
	New() *Session
	Save(http.ResponseWriter, *Session) error
}

// Middleware attaches the session to the request context and writes the cookie just before
// the response headers are sent.
func Middleware(store Store) func(http.Handler) http.Handler {
	if store == nil {
		panic("session store is required")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := requestctx.Logger(r.Context())
			sess, err := store.Load(r)
			if sess == nil {
				sess = store.New()
			}
			if errors.Is(err, ErrExpired) {
				logger.Info("session expired; starting a new one")
				sess.AddFlash(FlashInfo, "Your session has expired. Please log in again.")
			} else if err != nil {
				logger.Warn("session load failed", zap.Error(err))
			}

			ctx := context.WithValue(r.Context(), contextKey{}, sess)
			if principal := sess.Principal(); !principal.IsZero() {
				ctx = requestctx.WithPrincipal(ctx, principal)
				observability.RecordUser(ctx, principal.UID)
			}

			sw := &savingWriter{ResponseWriter: w}
			sw.save = func() {
				if !sess.Dirty() && !sess.Destroyed() {
					return
				}
				if err := store.Save(w, sess); err != nil {
					logger.Error("session save failed", zap.Error(err))
				}
			}
			next.ServeHTTP(sw, r.WithContext(ctx))
			sw.commit()
		})
	}
}

// FromContext returns the session attached by Middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}

type savingWriter struct {
	http.ResponseWriter
	save      func()
	committed bool
}

func (w *savingWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true
	w.save()
}

func (w *savingWriter) WriteHeader(status int) {
	w.commit()
	w.ResponseWriter.WriteHeader(status)
}

func (w *savingWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *savingWriter) Flush() {
	w.commit()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *savingWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
