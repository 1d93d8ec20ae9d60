package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultEnvironment          = "local"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 90 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultRequestTimeout       = 75 * time.Second
	defaultMaxUploadBytes       = 10 << 20
	defaultMaxExtractedBytes    = 50 << 20
	defaultCredentialsFile      = "serviceAccountKey.json"
	defaultFeedbackCollection   = "feedback"
	defaultTranslateAttempts    = 2
	defaultTranslateBackoff     = time.Second
	defaultTranslateTimeout     = 15 * time.Second
	defaultTranslateConcurrency = 4
	defaultSpeechConcurrency    = 4
	defaultSpeechGender         = "NEUTRAL"
	defaultArtifactBackend      = ArtifactBackendLocal
	defaultArtifactPrefix       = "artifacts"
	defaultArtifactTTL          = time.Hour
	defaultArtifactSweep        = 5 * time.Minute
	defaultSessionCookie        = "lingua_session"
	defaultSessionIdle          = 30 * time.Minute
	defaultSessionLifetime      = 12 * time.Hour
	defaultRateTranslate        = 30
	defaultRateAuth             = 10
	defaultSecretsFallback      = ".secrets.local"
	minimumSessionHashKeyLength = 32
)

// Artifact backends.
const (
	ArtifactBackendLocal = "local"
	ArtifactBackendGCS   = "gcs"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Translation TranslationConfig
	Speech      SpeechConfig
	OCR         OCRConfig
	Artifacts   ArtifactConfig
	Session     SessionConfig
	RateLimits  RateLimitConfig
	Feedback    FeedbackConfig
	Secrets     SecretsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port              string
	Environment       string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestTimeout    time.Duration
	MaxUploadBytes    int64
	// MaxExtractedBytes caps the decompressed size of document parts read during extraction.
	MaxExtractedBytes int64
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	WebAPIKey       string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID          string
	EmulatorHost       string
	FeedbackCollection string
}

// TranslationConfig controls the fan-out engine and its backend.
type TranslationConfig struct {
	APIKey            string
	MaxAttempts       int
	Backoff           time.Duration
	AttemptTimeout    time.Duration
	Concurrency       int
	TransientPatterns []string
}

// SpeechConfig controls synthesis of translated text.
type SpeechConfig struct {
	Enabled     bool
	VoiceGender string
	Concurrency int
}

// OCRConfig controls image text recognition.
type OCRConfig struct {
	Enabled       bool
	LanguageHints []string
}

// ArtifactConfig selects where generated audio and downloads are held.
type ArtifactConfig struct {
	Backend       string
	Dir           string
	Bucket        string
	Prefix        string
	TTL           time.Duration
	SweepInterval time.Duration
}

// SessionConfig configures the signed session cookie.
type SessionConfig struct {
	HashKey      string
	BlockKey     string
	CookieName   string
	CookieSecure bool
	IdleTimeout  time.Duration
	Lifetime     time.Duration
}

// RateLimitConfig controls per-user request throttling.
type RateLimitConfig struct {
	TranslationsPerMinute int
	AuthPerMinute         int
}

// FeedbackConfig configures feedback notifications.
type FeedbackConfig struct {
	Topic string
}

// SecretsConfig configures Secret Manager resolution.
type SecretsConfig struct {
	DefaultProjectID string
	FallbackFile     string
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
	skipFileChecks  bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map. Values in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks config fields (e.g. "Session.HashKey") that must resolve to a non-empty value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// WithoutFileChecks skips the credential file existence check (tests and emulator runs).
func WithoutFileChecks() Option {
	return func(o *loaderOptions) {
		o.skipFileChecks = true
	}
}

// EnvironmentValues returns the effective key/value environment map after applying the same
// precedence rules as Load (dotenv < OS env < explicit env map).
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)
	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	for key, value := range dotEnvValues {
		values[key] = value
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[strings.TrimSpace(key)] = value
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// Load assembles configuration from defaults, .env overrides, environment variables and secret references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	env, err := EnvironmentValues(opts...)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}

	port := stringWithDefault(lookup, "LINGUA_SERVER_PORT", "")
	if port == "" {
		port = stringWithDefault(lookup, "PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:              port,
			Environment:       strings.ToLower(stringWithDefault(lookup, "LINGUA_ENVIRONMENT", defaultEnvironment)),
			ReadTimeout:       durationWithDefault(lookup, "LINGUA_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:      durationWithDefault(lookup, "LINGUA_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:       durationWithDefault(lookup, "LINGUA_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout:    durationWithDefault(lookup, "LINGUA_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
			MaxUploadBytes:    int64(intWithDefault(lookup, "LINGUA_SERVER_MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
			MaxExtractedBytes: int64(intWithDefault(lookup, "LINGUA_SERVER_MAX_EXTRACTED_BYTES", defaultMaxExtractedBytes)),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "LINGUA_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "LINGUA_FIREBASE_CREDENTIALS_FILE", defaultCredentialsFile),
			WebAPIKey:       stringWithDefault(lookup, "LINGUA_FIREBASE_WEB_API_KEY", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:          stringWithDefault(lookup, "LINGUA_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost:       stringWithDefault(lookup, "LINGUA_FIRESTORE_EMULATOR_HOST", ""),
			FeedbackCollection: stringWithDefault(lookup, "LINGUA_FIRESTORE_FEEDBACK_COLLECTION", defaultFeedbackCollection),
		},
		Translation: TranslationConfig{
			APIKey:            stringWithDefault(lookup, "LINGUA_TRANSLATE_API_KEY", ""),
			MaxAttempts:       intWithDefault(lookup, "LINGUA_TRANSLATE_MAX_ATTEMPTS", defaultTranslateAttempts),
			Backoff:           durationWithDefault(lookup, "LINGUA_TRANSLATE_BACKOFF", defaultTranslateBackoff),
			AttemptTimeout:    durationWithDefault(lookup, "LINGUA_TRANSLATE_ATTEMPT_TIMEOUT", defaultTranslateTimeout),
			Concurrency:       intWithDefault(lookup, "LINGUA_TRANSLATE_CONCURRENCY", defaultTranslateConcurrency),
			TransientPatterns: csvWithDefault(lookup, "LINGUA_TRANSLATE_TRANSIENT_PATTERNS"),
		},
		Speech: SpeechConfig{
			Enabled:     boolWithDefault(lookup, "LINGUA_SPEECH_ENABLED", true),
			VoiceGender: strings.ToUpper(stringWithDefault(lookup, "LINGUA_SPEECH_VOICE_GENDER", defaultSpeechGender)),
			Concurrency: intWithDefault(lookup, "LINGUA_SPEECH_CONCURRENCY", defaultSpeechConcurrency),
		},
		OCR: OCRConfig{
			Enabled:       boolWithDefault(lookup, "LINGUA_OCR_ENABLED", true),
			LanguageHints: csvWithDefault(lookup, "LINGUA_OCR_LANGUAGE_HINTS"),
		},
		Artifacts: ArtifactConfig{
			Backend:       strings.ToLower(stringWithDefault(lookup, "LINGUA_ARTIFACTS_BACKEND", defaultArtifactBackend)),
			Dir:           stringWithDefault(lookup, "LINGUA_ARTIFACTS_DIR", ""),
			Bucket:        stringWithDefault(lookup, "LINGUA_ARTIFACTS_BUCKET", ""),
			Prefix:        stringWithDefault(lookup, "LINGUA_ARTIFACTS_PREFIX", defaultArtifactPrefix),
			TTL:           durationWithDefault(lookup, "LINGUA_ARTIFACTS_TTL", defaultArtifactTTL),
			SweepInterval: durationWithDefault(lookup, "LINGUA_ARTIFACTS_SWEEP_INTERVAL", defaultArtifactSweep),
		},
		Session: SessionConfig{
			HashKey:      stringWithDefault(lookup, "LINGUA_SESSION_HASH_KEY", ""),
			BlockKey:     stringWithDefault(lookup, "LINGUA_SESSION_BLOCK_KEY", ""),
			CookieName:   stringWithDefault(lookup, "LINGUA_SESSION_COOKIE_NAME", defaultSessionCookie),
			CookieSecure: boolWithDefault(lookup, "LINGUA_SESSION_COOKIE_SECURE", true),
			IdleTimeout:  durationWithDefault(lookup, "LINGUA_SESSION_IDLE_TIMEOUT", defaultSessionIdle),
			Lifetime:     durationWithDefault(lookup, "LINGUA_SESSION_LIFETIME", defaultSessionLifetime),
		},
		RateLimits: RateLimitConfig{
			TranslationsPerMinute: intWithDefault(lookup, "LINGUA_RATELIMIT_TRANSLATIONS_PER_MIN", defaultRateTranslate),
			AuthPerMinute:         intWithDefault(lookup, "LINGUA_RATELIMIT_AUTH_PER_MIN", defaultRateAuth),
		},
		Feedback: FeedbackConfig{
			Topic: stringWithDefault(lookup, "LINGUA_FEEDBACK_TOPIC", ""),
		},
		Secrets: SecretsConfig{
			DefaultProjectID: stringWithDefault(lookup, "LINGUA_SECRET_DEFAULT_PROJECT_ID", ""),
			FallbackFile:     stringWithDefault(lookup, "LINGUA_SECRET_FALLBACK_FILE", defaultSecretsFallback),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Secrets.DefaultProjectID == "" {
		cfg.Secrets.DefaultProjectID = cfg.Firebase.ProjectID
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Firebase.WebAPIKey", &cfg.Firebase.WebAPIKey},
		{"Translation.APIKey", &cfg.Translation.APIKey},
		{"Session.HashKey", &cfg.Session.HashKey},
		{"Session.BlockKey", &cfg.Session.BlockKey},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg, options); err != nil {
		return Config{}, err
	}
	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func validateConfig(cfg Config, options loaderOptions) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		invalid = append(invalid, "Server.MaxUploadBytes")
	}
	if cfg.Server.MaxExtractedBytes <= 0 {
		invalid = append(invalid, "Server.MaxExtractedBytes")
	}
	if cfg.Firebase.ProjectID == "" {
		invalid = append(invalid, "Firebase.ProjectID")
	}
	if strings.TrimSpace(cfg.Firebase.CredentialsFile) == "" {
		invalid = append(invalid, "Firebase.CredentialsFile")
	} else if !options.skipFileChecks {
		if _, err := os.Stat(cfg.Firebase.CredentialsFile); err != nil {
			invalid = append(invalid, "Firebase.CredentialsFile")
		}
	}
	if strings.TrimSpace(cfg.Firestore.FeedbackCollection) == "" {
		invalid = append(invalid, "Firestore.FeedbackCollection")
	}
	if cfg.Translation.MaxAttempts <= 0 {
		invalid = append(invalid, "Translation.MaxAttempts")
	}
	if cfg.Translation.Backoff < 0 {
		invalid = append(invalid, "Translation.Backoff")
	}
	if cfg.Translation.Concurrency <= 0 {
		invalid = append(invalid, "Translation.Concurrency")
	}
	switch cfg.Artifacts.Backend {
	case ArtifactBackendLocal:
	case ArtifactBackendGCS:
		if strings.TrimSpace(cfg.Artifacts.Bucket) == "" {
			invalid = append(invalid, "Artifacts.Bucket")
		}
	default:
		invalid = append(invalid, "Artifacts.Backend")
	}
	if cfg.Artifacts.TTL <= 0 {
		invalid = append(invalid, "Artifacts.TTL")
	}
	if len(cfg.Session.HashKey) < minimumSessionHashKeyLength {
		invalid = append(invalid, "Session.HashKey")
	}
	if n := len(cfg.Session.BlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		invalid = append(invalid, "Session.BlockKey")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

// RequiredSecrets lists the secret-backed fields the service cannot start without.
var RequiredSecrets = []string{"Session.HashKey", "Firebase.WebAPIKey"}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// String renders a redacted summary safe for logs.
func (c Config) String() string {
	return fmt.Sprintf("env=%s port=%s project=%s artifacts=%s speech=%t ocr=%t",
		c.Server.Environment, c.Server.Port, c.Firebase.ProjectID, c.Artifacts.Backend, c.Speech.Enabled, c.OCR.Enabled)
}
