package auth

import (
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/linguadesk/translator/internal/domain"
)

// Identity is the verified result of a sign-in or bearer token check.
type Identity struct {
	UID       string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Principal reduces the identity to what the rest of the application needs.
func (i *Identity) Principal() domain.Principal {
	if i == nil {
		return domain.Principal{}
	}
	return domain.Principal{UID: i.UID, Email: i.Email}
}

func identityFromToken(token *firebaseauth.Token, fallbackEmail string) *Identity {
	identity := &Identity{
		UID:       token.UID,
		Email:     claimAsString(token.Claims, "email"),
		IssuedAt:  time.Unix(token.IssuedAt, 0).UTC(),
		ExpiresAt: time.Unix(token.Expires, 0).UTC(),
	}
	if identity.Email == "" {
		identity.Email = fallbackEmail
	}
	return identity
}

func claimAsString(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
