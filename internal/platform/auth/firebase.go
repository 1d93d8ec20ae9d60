package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"github.com/linguadesk/translator/internal/platform/config"
)

const defaultCallTimeout = 10 * time.Second

// AdminClient is the subset of the Firebase Admin auth client the gateway uses.
type AdminClient interface {
	CreateUser(ctx context.Context, user *firebaseauth.UserToCreate) (*firebaseauth.UserRecord, error)
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*firebaseauth.Token, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// PasswordVerifier exchanges an email and password for a Firebase ID token.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, email, password string) (idToken string, err error)
}

// FirebaseGateway implements account creation, sign in and sign out against Firebase.
// Failures are returned as *Error values whose kind maps to a user-facing message.
type FirebaseGateway struct {
	admin     AdminClient
	passwords PasswordVerifier
	timeout   time.Duration
}

// GatewayOption customises the gateway.
type GatewayOption func(*FirebaseGateway)

// WithCallTimeout bounds every outbound identity call.
func WithCallTimeout(d time.Duration) GatewayOption {
	return func(g *FirebaseGateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGateway wires a gateway from explicit collaborators.
func NewGateway(admin AdminClient, passwords PasswordVerifier, opts ...GatewayOption) (*FirebaseGateway, error) {
	if admin == nil {
		return nil, errors.New("auth: admin client is required")
	}
	if passwords == nil {
		return nil, errors.New("auth: password verifier is required")
	}
	g := &FirebaseGateway{admin: admin, passwords: passwords, timeout: defaultCallTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// NewFirebaseGateway initialises the Admin SDK from the service account file and the
// Identity Toolkit client from the web API key.
func NewFirebaseGateway(ctx context.Context, cfg config.FirebaseConfig, opts ...GatewayOption) (*FirebaseGateway, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("auth: firebase project id is required")
	}
	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}
	verifier, err := NewIdentityToolkitVerifier(ctx, option.WithAPIKey(cfg.WebAPIKey))
	if err != nil {
		return nil, err
	}
	return NewGateway(authClient, verifier, opts...)
}

// CreateAccount registers a new email/password user.
func (g *FirebaseGateway) CreateAccount(ctx context.Context, email, password string) error {
	email, err := normaliseCredentials(email, password)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	user := (&firebaseauth.UserToCreate{}).Email(email).Password(password)
	if _, err := g.admin.CreateUser(ctx, user); err != nil {
		return classifyAdminError(err)
	}
	return nil
}

// SignIn checks the password and verifies the resulting ID token.
func (g *FirebaseGateway) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	email, err := normaliseCredentials(email, password)
	if err != nil {
		if errors.Is(err, ErrWeakPassword) {
			return nil, wrap(ErrInvalidCredentials, nil)
		}
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	idToken, err := g.passwords.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, classifyIdentityToolkitError(err)
	}
	token, err := g.admin.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, classifyAdminError(err)
	}
	return identityFromToken(token, email), nil
}

// SignOut revokes the user's refresh tokens.
func (g *FirebaseGateway) SignOut(ctx context.Context, identity *Identity) error {
	if identity == nil || identity.UID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.admin.RevokeRefreshTokens(ctx, identity.UID); err != nil {
		return classifyAdminError(err)
	}
	return nil
}

// VerifyIDToken implements TokenVerifier for bearer authentication. Tokens issued before a
// sign out are rejected.
func (g *FirebaseGateway) VerifyIDToken(ctx context.Context, idToken string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	token, err := g.admin.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		return nil, wrap(ErrTokenInvalid, err)
	}
	return identityFromToken(token, ""), nil
}

func normaliseCredentials(email, password string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", wrap(ErrInvalidEmail, nil)
	}
	if len(password) < minPasswordLength {
		return "", wrap(ErrWeakPassword, nil)
	}
	return strings.ToLower(email), nil
}

// IdentityToolkitVerifier calls the Identity Toolkit verifyPassword endpoint.
type IdentityToolkitVerifier struct {
	service *identitytoolkit.Service
}

// NewIdentityToolkitVerifier constructs the REST client. opts must carry the web API key.
func NewIdentityToolkitVerifier(ctx context.Context, opts ...option.ClientOption) (*IdentityToolkitVerifier, error) {
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("auth: create identity toolkit client: %w", err)
	}
	return &IdentityToolkitVerifier{service: svc}, nil
}

// VerifyPassword implements PasswordVerifier.
func (v *IdentityToolkitVerifier) VerifyPassword(ctx context.Context, email, password string) (string, error) {
	resp, err := v.service.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if resp.IdToken == "" {
		return "", errors.New("auth: identity toolkit returned no id token")
	}
	return resp.IdToken, nil
}

// TokenVerifier verifies bearer ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Identity, error)
}

var _ TokenVerifier = (*FirebaseGateway)(nil)
