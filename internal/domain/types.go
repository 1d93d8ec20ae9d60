package domain

import "time"

// LanguageCode is the short catalog identifier for a language (for example "fr" or "zh-cn").
type LanguageCode string

// String returns the raw code.
func (c LanguageCode) String() string { return string(c) }

// Language pairs a catalog code with its human readable name.
type Language struct {
	Code LanguageCode
	Name string
}

// Principal identifies the signed-in user an operation acts on behalf of.
type Principal struct {
	UID   string
	Email string
}

// IsZero reports whether the principal carries no identity.
func (p Principal) IsZero() bool {
	return p.UID == "" && p.Email == ""
}

// Artifact describes a generated file (audio clip or download) held for a limited time.
type Artifact struct {
	ID          string
	Owner       string
	Name        string
	ContentType string
	Size        int64
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the artifact is past its retention window at the given instant.
func (a Artifact) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}

// AudioClip is the synthesis result attached to a single translation.
type AudioClip struct {
	Language LanguageCode
	Artifact *Artifact
	Err      error
}

// OK reports whether audio is available.
func (c AudioClip) OK() bool {
	return c.Err == nil && c.Artifact != nil
}
