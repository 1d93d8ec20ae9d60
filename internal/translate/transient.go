package translate

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// DefaultTransientPatterns are the error message fragments that mark a timeout-class failure.
var DefaultTransientPatterns = []string{
	"read operation timed out",
	"i/o timeout",
}

// Classifier decides whether a backend failure is worth retrying.
type Classifier struct {
	patterns []string
}

// DefaultClassifier matches DefaultTransientPatterns.
func DefaultClassifier() Classifier {
	return NewClassifier(DefaultTransientPatterns...)
}

// NewClassifier builds a classifier over case-insensitive message fragments.
func NewClassifier(patterns ...string) Classifier {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return Classifier{patterns: cleaned}
}

// IsTransient reports whether err belongs to the timeout class. batchCtx is the caller's context:
// a deadline that fired on a single attempt while the batch is still live counts as transient,
// whereas cancellation of the batch itself never does.
func (c Classifier) IsTransient(batchCtx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if batchCtx != nil && batchCtx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusGatewayTimeout {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range c.patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
