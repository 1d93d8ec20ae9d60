package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

const (
	defaultGender   = "NEUTRAL"
	defaultEncoding = "MP3"
)

// GoogleBackend synthesizes speech with the Cloud Text-to-Speech REST API.
type GoogleBackend struct {
	service *texttospeech.Service
	gender  string
	rate    float64
}

// GoogleOption customises the backend.
type GoogleOption func(*GoogleBackend)

// WithVoiceGender selects the SSML gender (MALE, FEMALE, NEUTRAL).
func WithVoiceGender(gender string) GoogleOption {
	return func(b *GoogleBackend) {
		if gender != "" {
			b.gender = gender
		}
	}
}

// WithSpeakingRate sets the speaking rate; zero keeps the service default.
func WithSpeakingRate(rate float64) GoogleOption {
	return func(b *GoogleBackend) {
		b.rate = rate
	}
}

// NewGoogleBackend constructs a backend with the given client options.
func NewGoogleBackend(ctx context.Context, clientOpts []option.ClientOption, opts ...GoogleOption) (*GoogleBackend, error) {
	svc, err := texttospeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("speech: create service: %w", err)
	}
	backend := &GoogleBackend{service: svc, gender: defaultGender}
	for _, opt := range opts {
		opt(backend)
	}
	return backend, nil
}

// Synthesize implements Backend.
func (b *GoogleBackend) Synthesize(ctx context.Context, text, voiceLanguage string) ([]byte, error) {
	if b == nil || b.service == nil {
		return nil, errors.New("speech: backend not initialised")
	}
	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: voiceLanguage,
			SsmlGender:   b.gender,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: defaultEncoding,
			SpeakingRate:  b.rate,
		},
	}
	resp, err := b.service.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.AudioContent == "" {
		return nil, errors.New("speech: empty audio content")
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("speech: decode audio: %w", err)
	}
	return audio, nil
}
