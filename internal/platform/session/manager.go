package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/linguadesk/translator/internal/domain"
)

const (
	defaultCookieName  = "lingua_session"
	defaultCookiePath  = "/"
	defaultLifetime    = 12 * time.Hour
	defaultIdleTimeout = 30 * time.Minute
	maxFlashes         = 5
)

// ErrExpired indicates the stored session passed its idle or absolute expiry.
var ErrExpired = errors.New("session expired")

// ErrInvalidConfig indicates the manager was initialised with missing or invalid options.
var ErrInvalidConfig = errors.New("session: invalid config")

// Flash kinds rendered by the page shell.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashError   = "error"
)

// User is the signed-in account persisted in the session.
type User struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Data is the persisted cookie payload.
type Data struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
	CSRFToken  string    `json:"csrfToken,omitempty"`
	User       *User     `json:"user,omitempty"`
	Theme      string    `json:"theme,omitempty"`
	Flashes    []Flash   `json:"flashes,omitempty"`
}

// Session is the explicit per-request session object handed to handlers.
type Session struct {
	data      Data
	dirty     bool
	destroyed bool
}

// Config controls cookie encoding and lifecycle limits.
type Config struct {
	CookieName   string
	HashKey      []byte
	BlockKey     []byte
	CookiePath   string
	CookieSecure bool
	SameSite     http.SameSite
	IdleTimeout  time.Duration
	Lifetime     time.Duration
	Now          func() time.Time
}

// Manager decodes and persists sessions as signed and optionally encrypted cookies.
type Manager struct {
	cfg   Config
	codec *securecookie.SecureCookie
	now   func() time.Time
}

// NewManager constructs a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.HashKey) < 32 {
		return nil, fmt.Errorf("%w: hash key must be at least 32 bytes", ErrInvalidConfig)
	}
	switch len(cfg.BlockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes", ErrInvalidConfig)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = defaultCookiePath
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.SameSite == http.SameSiteDefaultMode {
		cfg.SameSite = http.SameSiteLaxMode
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	var blockKey []byte
	if len(cfg.BlockKey) > 0 {
		blockKey = cfg.BlockKey
	}
	codec := securecookie.New(cfg.HashKey, blockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(cfg.Lifetime.Seconds()))

	return &Manager{cfg: cfg, codec: codec, now: now}, nil
}

// Load decodes the session from the request. Missing or tampered cookies yield a fresh
// session. Expired sessions return ErrExpired together with a fresh session.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return m.New(), nil
	}
	var stored Data
	if err := m.codec.Decode(m.cfg.CookieName, cookie.Value, &stored); err != nil || stored.ID == "" {
		return m.New(), nil
	}
	sess := &Session{data: stored}
	if m.expired(sess, m.now()) {
		return m.New(), ErrExpired
	}
	return sess, nil
}

// New returns a fresh anonymous session.
func (m *Manager) New() *Session {
	now := m.now().UTC()
	return &Session{
		data: Data{
			ID:         mustGenerateToken(32),
			CreatedAt:  now,
			LastActive: now,
			ExpiresAt:  now.Add(m.cfg.Lifetime),
		},
		dirty: true,
	}
}

// Save writes the session cookie. Destroyed sessions clear it.
func (m *Manager) Save(w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return errors.New("session: nil session")
	}
	if sess.destroyed {
		http.SetCookie(w, m.expiredCookie())
		return nil
	}
	sess.Touch(m.now())

	encoded, err := m.codec.Encode(m.cfg.CookieName, sess.data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	cookie := &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    encoded,
		Path:     m.cfg.CookiePath,
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.SameSite,
	}
	if expiry := sess.data.ExpiresAt.UTC(); !expiry.IsZero() {
		cookie.Expires = expiry
		if remaining := expiry.Sub(m.now()); remaining > 0 {
			cookie.MaxAge = int(remaining.Round(time.Second).Seconds())
		} else {
			cookie.MaxAge = -1
		}
	}
	http.SetCookie(w, cookie)
	sess.dirty = false
	return nil
}

func (m *Manager) expired(sess *Session, now time.Time) bool {
	now = now.UTC()
	if !sess.data.ExpiresAt.IsZero() && now.After(sess.data.ExpiresAt) {
		return true
	}
	last := sess.data.LastActive
	if last.IsZero() {
		last = sess.data.CreatedAt
	}
	return !last.IsZero() && now.Sub(last) > m.cfg.IdleTimeout
}

func (m *Manager) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Path:     m.cfg.CookiePath,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.SameSite,
	}
}

// ID returns the stable session identifier.
func (s *Session) ID() string { return s.data.ID }

// ExpiresAt returns the absolute expiry.
func (s *Session) ExpiresAt() time.Time { return s.data.ExpiresAt }

// Principal returns the signed-in user, or the zero principal.
func (s *Session) Principal() domain.Principal {
	if s == nil || s.data.User == nil {
		return domain.Principal{}
	}
	return domain.Principal{UID: s.data.User.UID, Email: s.data.User.Email}
}

// Authenticated reports whether a user is signed in.
func (s *Session) Authenticated() bool {
	return !s.Principal().IsZero()
}

// SignIn binds the principal to the session and rotates the id and CSRF token.
func (s *Session) SignIn(principal domain.Principal) {
	s.data.User = &User{UID: principal.UID, Email: principal.Email}
	s.data.ID = mustGenerateToken(32)
	s.data.CSRFToken = ""
	s.dirty = true
}

// EnsureCSRFToken returns the CSRF token, generating one on first use.
func (s *Session) EnsureCSRFToken() string {
	if s.data.CSRFToken == "" {
		s.data.CSRFToken = mustGenerateToken(32)
		s.dirty = true
	}
	return s.data.CSRFToken
}

// ValidCSRF compares a submitted token in constant time.
func (s *Session) ValidCSRF(token string) bool {
	if s.data.CSRFToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.data.CSRFToken), []byte(token)) == 1
}

// Theme returns the selected colour theme ("light" or "dark").
func (s *Session) Theme() string {
	if s.data.Theme == "" {
		return "light"
	}
	return s.data.Theme
}

// SetTheme stores the colour theme. Unknown values are ignored.
func (s *Session) SetTheme(theme string) {
	if theme != "light" && theme != "dark" {
		return
	}
	if s.data.Theme != theme {
		s.data.Theme = theme
		s.dirty = true
	}
}

// AddFlash queues a message for the next rendered page.
func (s *Session) AddFlash(kind, message string) {
	if message == "" {
		return
	}
	s.data.Flashes = append(s.data.Flashes, Flash{Kind: kind, Message: message})
	if len(s.data.Flashes) > maxFlashes {
		s.data.Flashes = s.data.Flashes[len(s.data.Flashes)-maxFlashes:]
	}
	s.dirty = true
}

// PopFlashes returns and clears queued messages.
func (s *Session) PopFlashes() []Flash {
	if len(s.data.Flashes) == 0 {
		return nil
	}
	out := s.data.Flashes
	s.data.Flashes = nil
	s.dirty = true
	return out
}

// Destroy marks the session for deletion when the response is written.
func (s *Session) Destroy() {
	s.destroyed = true
	s.dirty = true
}

// Destroyed reports whether Destroy was called.
func (s *Session) Destroyed() bool { return s.destroyed }

// Touch updates the last active timestamp.
func (s *Session) Touch(now time.Time) {
	now = now.UTC()
	if now.After(s.data.LastActive) {
		s.data.LastActive = now
		s.dirty = true
	}
}

// Dirty reports whether the session changed since it was loaded or saved.
func (s *Session) Dirty() bool { return s.dirty }

func mustGenerateToken(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("generate token: %w", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
