package firestore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/linguadesk/translator/internal/platform/config"
)

func TestWrapErrorClassifies(t *testing.T) {
	cases := []struct {
		code        codes.Code
		notFound    bool
		conflict    bool
		unavailable bool
	}{
		{code: codes.NotFound, notFound: true},
		{code: codes.AlreadyExists, conflict: true},
		{code: codes.Unavailable, unavailable: true},
		{code: codes.DeadlineExceeded, unavailable: true},
		{code: codes.PermissionDenied},
	}
	for _, tc := range cases {
		err := WrapError("feedback.create", status.Error(tc.code, "x"))
		var repoErr *Error
		require.True(t, errors.As(err, &repoErr), tc.code.String())
		assert.Equal(t, tc.notFound, repoErr.IsNotFound(), tc.code.String())
		assert.Equal(t, tc.conflict, repoErr.IsConflict(), tc.code.String())
		assert.Equal(t, tc.unavailable, repoErr.IsUnavailable(), tc.code.String())
		assert.Contains(t, repoErr.Error(), "feedback.create")
	}
}

func TestWrapErrorPassesCancellationThrough(t *testing.T) {
	assert.NoError(t, WrapError("op", nil))
	assert.ErrorIs(t, WrapError("op", context.Canceled), context.Canceled)
	assert.ErrorIs(t, WrapError("op", status.Error(codes.Canceled, "x")), context.Canceled)
}

func TestProviderRequiresProject(t *testing.T) {
	t.Setenv(envGoogleProjectID, "")
	t.Setenv(envEmulatorHost, "")
	provider := NewProvider(config.FirestoreConfig{})
	_, err := provider.Client(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project id is required")
}

func TestProviderClosed(t *testing.T) {
	provider := NewProvider(config.FirestoreConfig{ProjectID: "p"})
	require.NoError(t, provider.Close(context.Background()))
	require.NoError(t, provider.Close(context.Background()))
	_, err := provider.Client(context.Background())
	assert.ErrorIs(t, err, ErrProviderClosed)
}

type sampleEntity struct {
	Name  string `firestore:"name"`
	Count int    `firestore:"count"`
}

// Runs against a local emulator when FIRESTORE_EMULATOR_HOST is exported.
func TestRepositoryAgainstEmulator(t *testing.T) {
	host := os.Getenv(envEmulatorHost)
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := NewProvider(config.FirestoreConfig{ProjectID: "lingua-test", EmulatorHost: host})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	repo := NewBaseRepository[sampleEntity](provider, "samples", func(v sampleEntity) (map[string]any, error) {
		return map[string]any{"name": v.Name, "count": v.Count}, nil
	}, nil)

	id := "sample-" + time.Now().Format("150405.000000000")
	_, err := repo.Create(ctx, id, sampleEntity{Name: "alpha", Count: 1})
	require.NoError(t, err)

	_, err = repo.Create(ctx, id, sampleEntity{Name: "beta"})
	var repoErr *Error
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsConflict())

	doc, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alpha", doc.Data.Name)

	_, err = repo.Get(ctx, "missing-"+id)
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsNotFound())
}
