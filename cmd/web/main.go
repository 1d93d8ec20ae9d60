package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/linguadesk/translator/internal/artifacts"
	"github.com/linguadesk/translator/internal/content"
	"github.com/linguadesk/translator/internal/extract"
	"github.com/linguadesk/translator/internal/handlers"
	"github.com/linguadesk/translator/internal/languages"
	"github.com/linguadesk/translator/internal/platform/auth"
	"github.com/linguadesk/translator/internal/platform/config"
	pfirestore "github.com/linguadesk/translator/internal/platform/firestore"
	"github.com/linguadesk/translator/internal/platform/jobs"
	"github.com/linguadesk/translator/internal/platform/observability"
	"github.com/linguadesk/translator/internal/platform/secrets"
	"github.com/linguadesk/translator/internal/platform/session"
	platformstorage "github.com/linguadesk/translator/internal/platform/storage"
	"github.com/linguadesk/translator/internal/repositories"
	firestoreRepo "github.com/linguadesk/translator/internal/repositories/firestore"
	"github.com/linguadesk/translator/internal/services"
	"github.com/linguadesk/translator/internal/speech"
	"github.com/linguadesk/translator/internal/translate"
)

const meterName = "github.com/linguadesk/translator"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("web")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(config.RequiredSecrets...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	logger.Info("configuration loaded", zap.Stringer("config", cfg))

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)
	credentials := option.WithCredentialsFile(cfg.Firebase.CredentialsFile)
	meter := otel.GetMeterProvider().Meter(meterName)

	gateway, err := auth.NewFirebaseGateway(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase gateway", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore, pfirestore.WithClientOptions(credentials))
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	feedbackRepo, err := firestoreRepo.NewFeedbackRepository(firestoreProvider, cfg.Firestore.FeedbackCollection)
	if err != nil {
		logger.Fatal("failed to initialise feedback repository", zap.Error(err))
	}

	var (
		notifier    services.FeedbackNotifier
		topic       *pubsub.Topic
		pubsubClose func()
	)
	if name := strings.TrimSpace(cfg.Feedback.Topic); name != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Firebase.ProjectID, credentials)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		topic = pubsubClient.Topic(name)
		publisher, err := jobs.NewFeedbackPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise feedback publisher", zap.Error(err))
		}
		notifier = publisher
		pubsubClose = func() {
			publisher.Stop()
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}
	}
	if pubsubClose != nil {
		defer pubsubClose()
	}

	store, closeStore, err := newArtifactStore(ctx, cfg.Artifacts, credentials)
	if err != nil {
		logger.Fatal("failed to initialise artifact store", zap.Error(err))
	}
	defer closeStore()

	sweeper := artifacts.NewSweeper(store, cfg.Artifacts.SweepInterval, logger.Named("artifacts"))
	sweeper.Start(ctx)

	catalog := languages.Default()

	translateOpts := []option.ClientOption{credentials}
	if key := strings.TrimSpace(cfg.Translation.APIKey); key != "" {
		translateOpts = []option.ClientOption{option.WithAPIKey(key)}
	}
	translateBackend, err := translate.NewGoogleBackend(ctx, translateOpts...)
	if err != nil {
		logger.Fatal("failed to initialise translation backend", zap.Error(err))
	}
	engineOpts := []translate.Option{
		translate.WithLogger(logger.Named("translate")),
		translate.WithMeter(meter),
		translate.WithMaxAttempts(cfg.Translation.MaxAttempts),
		translate.WithBackoff(cfg.Translation.Backoff),
		translate.WithAttemptTimeout(cfg.Translation.AttemptTimeout),
		translate.WithConcurrency(cfg.Translation.Concurrency),
	}
	if len(cfg.Translation.TransientPatterns) > 0 {
		engineOpts = append(engineOpts, translate.WithTransientPatterns(cfg.Translation.TransientPatterns...))
	}
	engine, err := translate.NewEngine(translateBackend, engineOpts...)
	if err != nil {
		logger.Fatal("failed to initialise translation engine", zap.Error(err))
	}

	var synthesizer services.Synthesizer
	if cfg.Speech.Enabled {
		speechBackend, err := speech.NewGoogleBackend(ctx, []option.ClientOption{credentials}, speech.WithVoiceGender(cfg.Speech.VoiceGender))
		if err != nil {
			logger.Fatal("failed to initialise speech backend", zap.Error(err))
		}
		adapter, err := speech.NewAdapter(speech.Deps{
			Backend: speechBackend,
			Catalog: catalog,
			Store:   store,
			Logger:  logger.Named("speech"),
			TTL:     cfg.Artifacts.TTL,
			Meter:   meter,
		})
		if err != nil {
			logger.Fatal("failed to initialise speech adapter", zap.Error(err))
		}
		synthesizer = adapter
	}

	extractOpts := []extract.Option{
		extract.WithLogger(logger.Named("extract")),
		extract.WithMaxBytes(cfg.Server.MaxUploadBytes),
		extract.WithMaxExpandedBytes(cfg.Server.MaxExtractedBytes),
	}
	if cfg.OCR.Enabled {
		ocr, err := extract.NewVisionOCR(ctx, cfg.OCR.LanguageHints, credentials)
		if err != nil {
			logger.Fatal("failed to initialise vision client", zap.Error(err))
		}
		extractOpts = append(extractOpts, extract.WithOCR(ocr))
	}

	translationService, err := services.NewTranslationService(services.TranslationServiceDeps{
		Translator:           engine,
		Extractor:            extract.New(extractOpts...),
		Synthesizer:          synthesizer,
		Catalog:              catalog,
		Artifacts:            store,
		Logger:               logger.Named("translation"),
		SynthesisConcurrency: cfg.Speech.Concurrency,
		DownloadTTL:          cfg.Artifacts.TTL,
	})
	if err != nil {
		logger.Fatal("failed to initialise translation service", zap.Error(err))
	}

	feedbackService, err := services.NewFeedbackService(services.FeedbackServiceDeps{
		Repository: feedbackRepo,
		Notifier:   notifier,
		Logger:     logger.Named("feedback"),
		Clock:      time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise feedback service", zap.Error(err))
	}

	systemService, err := newSystemService(firestoreClient, fetcher, topic, buildInfo)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}
	healthOpts := []handlers.HealthOption{handlers.WithHealthBuildInfo(buildInfo)}
	if systemService != nil {
		healthOpts = append(healthOpts, handlers.WithHealthSystemService(systemService))
	}

	sessions, err := session.NewManager(session.Config{
		CookieName:   cfg.Session.CookieName,
		HashKey:      []byte(cfg.Session.HashKey),
		BlockKey:     []byte(cfg.Session.BlockKey),
		CookieSecure: cfg.Session.CookieSecure,
		IdleTimeout:  cfg.Session.IdleTimeout,
		Lifetime:     cfg.Session.Lifetime,
	})
	if err != nil {
		logger.Fatal("failed to initialise session manager", zap.Error(err))
	}

	router, err := handlers.NewRouter(handlers.RouterDeps{
		Logger:                logger,
		ProjectID:             cfg.Firebase.ProjectID,
		RequestTimeout:        cfg.Server.RequestTimeout,
		MaxUploadBytes:        cfg.Server.MaxUploadBytes,
		Sessions:              sessions,
		Auth:                  gateway,
		Tokens:                gateway,
		Translations:          translationService,
		Feedback:              feedbackService,
		Help:                  content.NewLibrary(nil),
		Health:                handlers.NewHealthHandlers(healthOpts...),
		TranslationsPerMinute: cfg.RateLimits.TranslationsPerMinute,
		AuthPerMinute:         cfg.RateLimits.AuthPerMinute,
	})
	if err != nil {
		logger.Fatal("failed to initialise router", zap.Error(err))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("lingua desk listening", zap.String("environment", cfg.Server.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	sweeper.Stop()
	logger.Info("server stopped")
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["LINGUA_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["LINGUA_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Server.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	project := lookup("LINGUA_SECRET_DEFAULT_PROJECT_ID")
	if project == "" {
		project = lookup("LINGUA_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("LINGUA_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if credentialsFile := lookup("LINGUA_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// newArtifactStore returns the configured store and a cleanup func run on shutdown.
func newArtifactStore(ctx context.Context, cfg config.ArtifactConfig, credentials option.ClientOption) (artifacts.Store, func(), error) {
	switch cfg.Backend {
	case config.ArtifactBackendGCS:
		client, err := cloudstorage.NewClient(ctx, credentials)
		if err != nil {
			return nil, nil, fmt.Errorf("storage client: %w", err)
		}
		store, err := platformstorage.NewArtifactStore(client, cfg.Bucket,
			platformstorage.WithPrefix(cfg.Prefix),
			platformstorage.WithTTL(cfg.TTL),
		)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() { _ = client.Close() }, nil
	default:
		store, err := artifacts.NewLocalStore(cfg.Dir, artifacts.WithDefaultTTL(cfg.TTL))
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
}

func newSystemService(client *firestore.Client, fetcher *secrets.Fetcher, topic *pubsub.Topic, build services.BuildInfo) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 3)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
					return nil
				}
				if errors.Is(err, secrets.ErrNotFound) {
					return nil
				}
				return err
			},
		})
	}
	if topic != nil {
		t := topic
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				ok, err := t.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s does not exist", t.ID())
				}
				return nil
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
		Build:            build,
	})
}
