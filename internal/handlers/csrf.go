package handlers

import (
	"errors"
	"mime"
	"net/http"

	"github.com/linguadesk/translator/internal/platform/session"
)

const (
	csrfFormField      = "csrf_token"
	csrfHeaderName     = "X-CSRF-Token"
	multipartMaxMemory = 8 << 20
)

// csrf validates the session-bound token on unsafe methods. The token is read from the
// X-CSRF-Token header (htmx) or the csrf_token form field. Request bodies are capped at
// maxBody bytes and the form is parsed before handlers run.
func csrf(maxBody int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := session.FromContext(r.Context())
			if !ok {
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
			sess.EnsureCSRFToken()
			if !isUnsafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if maxBody > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBody)
			}
			if err := parseForm(r); err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					http.Error(w, uploadTooLargeMessage, http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			submitted := r.Header.Get(csrfHeaderName)
			if submitted == "" {
				submitted = r.PostFormValue(csrfFormField)
			}
			if r.MultipartForm != nil {
				defer r.MultipartForm.RemoveAll()
			}
			if !sess.ValidCSRF(submitted) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseForm parses url-encoded or multipart bodies once; later calls are no-ops.
func parseForm(r *http.Request) error {
	if r.PostForm != nil {
		return nil
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(multipartMaxMemory)
	}
	return r.ParseForm()
}

func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}
