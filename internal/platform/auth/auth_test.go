package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/linguadesk/translator/internal/platform/requestctx"
)

type fakeAdmin struct {
	created    []string
	createErr  error
	token      *firebaseauth.Token
	verifyErr  error
	revoked    []string
	revokeErr  error
	verifyArgs []string
}

func (f *fakeAdmin) CreateUser(_ context.Context, user *firebaseauth.UserToCreate) (*firebaseauth.UserRecord, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, "user")
	return &firebaseauth.UserRecord{UserInfo: &firebaseauth.UserInfo{UID: "new-uid"}}, nil
}

func (f *fakeAdmin) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	f.verifyArgs = append(f.verifyArgs, idToken)
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.token, nil
}

func (f *fakeAdmin) VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	token, err := f.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	for _, uid := range f.revoked {
		if uid == token.UID {
			return nil, errors.New("ID token has been revoked")
		}
	}
	return token, nil
}

func (f *fakeAdmin) RevokeRefreshTokens(_ context.Context, uid string) error {
	f.revoked = append(f.revoked, uid)
	return f.revokeErr
}

type fakePasswords struct {
	token string
	err   error
	calls int
}

func (f *fakePasswords) VerifyPassword(context.Context, string, string) (string, error) {
	f.calls++
	return f.token, f.err
}

func newTestGateway(t *testing.T, admin *fakeAdmin, passwords *fakePasswords) *FirebaseGateway {
	t.Helper()
	g, err := NewGateway(admin, passwords)
	require.NoError(t, err)
	return g
}

func TestCreateAccountValidatesInput(t *testing.T) {
	admin := &fakeAdmin{}
	g := newTestGateway(t, admin, &fakePasswords{})

	err := g.CreateAccount(context.Background(), "not-an-email", "secret123")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	err = g.CreateAccount(context.Background(), "a@example.com", "123")
	assert.ErrorIs(t, err, ErrWeakPassword)
	assert.Equal(t, "Password must be at least 6 characters.", UserMessage(err))

	require.NoError(t, g.CreateAccount(context.Background(), " a@example.com ", "secret123"))
	assert.Len(t, admin.created, 1)
}

func TestSignInReturnsVerifiedIdentity(t *testing.T) {
	admin := &fakeAdmin{token: &firebaseauth.Token{
		UID:      "uid-1",
		IssuedAt: 1700000000,
		Expires:  1700003600,
		Claims:   map[string]any{"email": "a@example.com"},
	}}
	passwords := &fakePasswords{token: "id-token"}
	g := newTestGateway(t, admin, passwords)

	identity, err := g.SignIn(context.Background(), "A@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", identity.UID)
	assert.Equal(t, "a@example.com", identity.Email)
	assert.Equal(t, []string{"id-token"}, admin.verifyArgs)
	assert.Equal(t, "uid-1", identity.Principal().UID)
}

func TestSignInMapsProviderErrors(t *testing.T) {
	cases := map[string]error{
		"EMAIL_NOT_FOUND":             ErrInvalidCredentials,
		"INVALID_PASSWORD":            ErrInvalidCredentials,
		"INVALID_LOGIN_CREDENTIALS":   ErrInvalidCredentials,
		"USER_DISABLED":               ErrUserDisabled,
		"TOO_MANY_ATTEMPTS_TRY_LATER": ErrTooManyAttempts,
	}
	for message, want := range cases {
		passwords := &fakePasswords{err: &googleapi.Error{Code: http.StatusBadRequest, Message: message}}
		g := newTestGateway(t, &fakeAdmin{}, passwords)
		_, err := g.SignIn(context.Background(), "a@example.com", "secret123")
		assert.ErrorIs(t, err, want, message)
	}

	passwords := &fakePasswords{err: errors.New("dial tcp: timeout")}
	g := newTestGateway(t, &fakeAdmin{}, passwords)
	_, err := g.SignIn(context.Background(), "a@example.com", "secret123")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "Authentication is unavailable right now. Please try again.", UserMessage(err))
}

func TestSignInShortPasswordIsInvalidCredentials(t *testing.T) {
	passwords := &fakePasswords{}
	g := newTestGateway(t, &fakeAdmin{}, passwords)
	_, err := g.SignIn(context.Background(), "a@example.com", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Zero(t, passwords.calls)
}

func TestSignOutRevokesTokens(t *testing.T) {
	admin := &fakeAdmin{}
	g := newTestGateway(t, admin, &fakePasswords{})
	require.NoError(t, g.SignOut(context.Background(), &Identity{UID: "uid-1"}))
	require.NoError(t, g.SignOut(context.Background(), nil))
	assert.Equal(t, []string{"uid-1"}, admin.revoked)
}

func TestBearerMiddleware(t *testing.T) {
	admin := &fakeAdmin{token: &firebaseauth.Token{UID: "uid-9", Claims: map[string]any{"email": "b@example.com"}}}
	g := newTestGateway(t, admin, &fakePasswords{})

	var seen string
	handler := BearerMiddleware(g)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := requestctx.Principal(r.Context()); ok {
			seen = p.UID
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, seen)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil)
	req.Header.Set("Authorization", "Bearer token-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "uid-9", seen)

	admin.verifyErr = errors.New("expired")
	req = httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil)
	req.Header.Set("Authorization", "Bearer token-2")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerTokenRejectedAfterSignOut(t *testing.T) {
	admin := &fakeAdmin{token: &firebaseauth.Token{UID: "uid-9", Claims: map[string]any{"email": "b@example.com"}}}
	g := newTestGateway(t, admin, &fakePasswords{})

	identity, err := g.VerifyIDToken(context.Background(), "token-1")
	require.NoError(t, err)
	assert.Equal(t, "uid-9", identity.UID)

	require.NoError(t, g.SignOut(context.Background(), identity))

	_, err = g.VerifyIDToken(context.Background(), "token-1")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestIdentityToolkitVerifier(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"idToken": "tok", "localId": "uid"})
	}))
	defer srv.Close()

	v, err := NewIdentityToolkitVerifier(context.Background(),
		option.WithAPIKey("web-key"),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	token, err := v.VerifyPassword(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, "a@example.com", body["email"])
	assert.Equal(t, true, body["returnSecureToken"])
}
