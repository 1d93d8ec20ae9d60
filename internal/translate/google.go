package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	translatev2 "google.golang.org/api/translate/v2"

	"github.com/linguadesk/translator/internal/domain"
)

var translateServiceFactory = func(ctx context.Context, opts ...option.ClientOption) (*translatev2.Service, error) {
	return translatev2.NewService(ctx, opts...)
}

// GoogleBackend calls the Cloud Translation v2 REST API with automatic source detection.
type GoogleBackend struct {
	service *translatev2.Service
}

// NewGoogleBackend constructs a backend. Pass option.WithAPIKey or credentials as required by the deployment.
func NewGoogleBackend(ctx context.Context, opts ...option.ClientOption) (*GoogleBackend, error) {
	svc, err := translateServiceFactory(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("translate: create service: %w", err)
	}
	return &GoogleBackend{service: svc}, nil
}

// Translate implements Backend. Blank input round-trips without a network call.
func (b *GoogleBackend) Translate(ctx context.Context, text string, target domain.LanguageCode) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if b == nil || b.service == nil {
		return "", errors.New("translate: backend not initialised")
	}
	resp, err := b.service.Translations.List([]string{text}, target.String()).
		Format("text").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Translations) == 0 || resp.Translations[0] == nil {
		return "", fmt.Errorf("translate: empty response for %s", target)
	}
	return resp.Translations[0].TranslatedText, nil
}
