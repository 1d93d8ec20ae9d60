package domain

import "time"

// FeedbackType enumerates the categories a user can file feedback under.
type FeedbackType string

const (
	FeedbackTranslationIssue FeedbackType = "Translation Issue"
	FeedbackUsability        FeedbackType = "Usability Feedback"
	FeedbackFeatureRequest   FeedbackType = "Feature Request"
)

// FeedbackTypes lists the supported categories in display order.
var FeedbackTypes = []FeedbackType{
	FeedbackTranslationIssue,
	FeedbackUsability,
	FeedbackFeatureRequest,
}

// Valid reports whether the type is one of the supported categories.
func (t FeedbackType) Valid() bool {
	for _, candidate := range FeedbackTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// FeedbackRecord is a write-once feedback entry.
type FeedbackRecord struct {
	ID        string
	User      string
	Type      FeedbackType
	Message   string
	Timestamp float64
}

// SubmittedAt converts the epoch-seconds timestamp to a time value.
func (r FeedbackRecord) SubmittedAt() time.Time {
	sec := int64(r.Timestamp)
	nsec := int64((r.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// EpochSeconds converts a time to fractional seconds since the Unix epoch.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
