package repositories

import (
	"context"

	"github.com/linguadesk/translator/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// FeedbackRepository appends write-once feedback records. Append assigns an id when the
// record carries none and returns the stored record.
type FeedbackRepository interface {
	Append(ctx context.Context, record domain.FeedbackRecord) (domain.FeedbackRecord, error)
}

// HealthRepository probes infrastructure dependencies for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
