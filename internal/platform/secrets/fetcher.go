package secrets

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultFallbackPath = ".secrets.local"
	defaultVersion      = "latest"
	metricNamespace     = "github.com/linguadesk/translator/internal/platform/secrets"
)

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

// ErrNotFound is returned when neither Secret Manager nor the fallback file knows a reference.
var ErrNotFound = errors.New("secrets: value not found")

// Fetcher resolves secret:// references against Google Secret Manager. Values are cached for
// the configured TTL and a local fallback file is consulted when the remote is unreachable.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	logger     *zap.Logger
	projectID  string
	cacheTTL   time.Duration
	now        func() time.Time

	fallbackPath string
	fallbackOnce sync.Once
	fallbackVals map[string]string
	fallbackErr  error

	mu    sync.Mutex
	cache map[string]cacheEntry

	latency   metric.Float64Histogram
	cacheHits metric.Int64Counter
}

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

type fetcherConfig struct {
	logger       *zap.Logger
	projectID    string
	fallbackPath string
	cacheTTL     time.Duration
	meter        metric.Meter
	client       secretManagerClient
	clientOpts   []option.ClientOption
	now          func() time.Time
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) {
		cfg.logger = logger
	}
}

// WithProject sets the project used when a reference carries no ?project= override.
func WithProject(projectID string) Option {
	return func(cfg *fetcherConfig) {
		cfg.projectID = strings.TrimSpace(projectID)
	}
}

// WithFallbackFile points at a KEY=VALUE file of secret:// references for offline runs.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) {
		cfg.fallbackPath = path
	}
}

// WithCacheTTL bounds how long resolved values are reused. Zero caches for the process lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(cfg *fetcherConfig) {
		cfg.cacheTTL = ttl
	}
}

// WithMeter overrides the meter used for fetch metrics.
func WithMeter(m metric.Meter) Option {
	return func(cfg *fetcherConfig) {
		cfg.meter = m
	}
}

// WithClientOptions forwards options to the Secret Manager client constructor.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

func withClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) {
		cfg.client = client
	}
}

func withClock(now func() time.Time) Option {
	return func(cfg *fetcherConfig) {
		cfg.now = now
	}
}

// NewFetcher constructs a Fetcher. A Secret Manager client that cannot be created leaves the
// fetcher in fallback-only mode.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		logger:       zap.NewNop(),
		fallbackPath: defaultFallbackPath,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.cacheTTL < 0 {
		return nil, errors.New("secrets: cache ttl must not be negative")
	}

	meter := cfg.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	latency, err := meter.Float64Histogram(
		"secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for secret fetch attempts"),
	)
	if err != nil {
		cfg.logger.Warn("secrets: unable to register latency metric", zap.Error(err))
	}
	cacheHits, err := meter.Int64Counter(
		"secrets.fetch.cache_hits",
		metric.WithDescription("Count of cache hits when resolving secrets"),
	)
	if err != nil {
		cfg.logger.Warn("secrets: unable to register cache hit metric", zap.Error(err))
	}

	f := &Fetcher{
		client:       cfg.client,
		logger:       cfg.logger,
		projectID:    cfg.projectID,
		cacheTTL:     cfg.cacheTTL,
		now:          cfg.now,
		fallbackPath: cfg.fallbackPath,
		cache:        make(map[string]cacheEntry),
		latency:      latency,
		cacheHits:    cacheHits,
	}
	if f.client == nil && f.projectID != "" {
		client, err := secretManagerClientFactory(ctx, cfg.clientOpts...)
		if err != nil {
			cfg.logger.Warn("secrets: secret manager client unavailable; operating in fallback mode", zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}
	return f, nil
}

// Close releases the Secret Manager client when the fetcher created it.
func (f *Fetcher) Close() error {
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Resolve returns the value for ref, consulting the cache, then Secret Manager, then the fallback file.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	start := time.Now()
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}
	key := cacheKey(parsed.Canonical, parsed.Version)

	if value, ok := f.lookupCache(key); ok {
		f.recordCacheHit(ctx, parsed)
		f.recordLatency(ctx, time.Since(start), "cache", nil)
		return value, nil
	}

	project := parsed.Project
	if project == "" {
		project = f.projectID
	}
	if project != "" && f.client != nil {
		value, err := f.fetchRemote(ctx, project, parsed)
		if err == nil {
			f.storeCache(key, value)
			f.recordLatency(ctx, time.Since(start), "remote", nil)
			return value, nil
		}
		if !isFallbackError(err) {
			f.recordLatency(ctx, time.Since(start), "error", err)
			return "", fmt.Errorf("secrets: fetch failed for %s: %w", maskReference(parsed.Canonical), err)
		}
		f.logger.Debug("secrets: falling back to local secrets",
			zap.String("secret", maskReference(parsed.Canonical)),
			zap.Error(err),
		)
	}

	value, ok := f.lookupFallback(parsed)
	if !ok {
		f.recordLatency(ctx, time.Since(start), "error", ErrNotFound)
		return "", fmt.Errorf("%w: %s", ErrNotFound, maskReference(parsed.Canonical))
	}
	f.storeCache(key, value)
	f.recordLatency(ctx, time.Since(start), "fallback", nil)
	return value, nil
}

// Invalidate drops cached values for ref so the next Resolve refetches.
func (f *Fetcher) Invalidate(ref string) {
	parsed, err := parseReference(ref)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.cache {
		if strings.HasPrefix(key, parsed.Canonical+"#") {
			delete(f.cache, key)
		}
	}
}

func (f *Fetcher) lookupCache(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.cache[key]
	if !ok {
		return "", false
	}
	if f.cacheTTL > 0 && f.now().Sub(entry.fetchedAt) >= f.cacheTTL {
		delete(f.cache, key)
		return "", false
	}
	return entry.value, true
}

func (f *Fetcher) storeCache(key, value string) {
	f.mu.Lock()
	f.cache[key] = cacheEntry{value: value, fetchedAt: f.now()}
	f.mu.Unlock()
}

func (f *Fetcher) fetchRemote(ctx context.Context, projectID string, ref parsedReference) (string, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", projectID, ref.Secret, ref.Version)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.GetPayload() == nil {
		return "", fmt.Errorf("secret manager returned empty payload for %s", name)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (f *Fetcher) lookupFallback(ref parsedReference) (string, bool) {
	f.fallbackOnce.Do(f.loadFallback)
	if f.fallbackErr != nil {
		f.logger.Warn("secrets: fallback load error", zap.Error(f.fallbackErr))
		return "", false
	}
	if value, ok := f.fallbackVals[cacheKey(ref.Canonical, ref.Version)]; ok {
		return value, true
	}
	value, ok := f.fallbackVals[ref.Canonical]
	return value, ok
}

func (f *Fetcher) loadFallback() {
	f.fallbackVals = map[string]string{}
	path := strings.TrimSpace(f.fallbackPath)
	if path == "" {
		return
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		f.fallbackErr = fmt.Errorf("secrets: unable to open fallback file %s: %w", path, err)
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if rest, found := strings.CutPrefix(key, "sm://"); found {
			key = "secret://" + rest
		}
		parsed, err := parseReference(key)
		if err != nil {
			continue
		}
		value = strings.TrimSpace(value)
		if _, explicit := f.fallbackVals[parsed.Canonical]; !explicit || parsed.Version == defaultVersion {
			f.fallbackVals[parsed.Canonical] = value
		}
		f.fallbackVals[cacheKey(parsed.Canonical, parsed.Version)] = value
	}
	if err := scanner.Err(); err != nil {
		f.fallbackErr = fmt.Errorf("secrets: failed reading %s: %w", path, err)
	}
}

func (f *Fetcher) recordLatency(ctx context.Context, d time.Duration, source string, err error) {
	if f.latency == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("source", source)}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	f.latency.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(attrs...))
}

func (f *Fetcher) recordCacheHit(ctx context.Context, ref parsedReference) {
	if f.cacheHits == nil {
		return
	}
	f.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", maskReference(ref.Canonical))))
}

type parsedReference struct {
	Canonical string
	Secret    string
	Version   string
	Project   string
}

// parseReference accepts secret://name[/more]?version=N&project=P. Path segments are joined
// with "-" to form the Secret Manager secret id.
func parseReference(ref string) (parsedReference, error) {
	if strings.TrimSpace(ref) == "" {
		return parsedReference{}, errors.New("secrets: empty reference")
	}
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return parsedReference{}, fmt.Errorf("secrets: invalid reference: %w", err)
	}
	if u.Scheme != "secret" {
		return parsedReference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	path := strings.Trim(u.Host+u.Path, "/")
	if path == "" {
		return parsedReference{}, errors.New("secrets: missing secret name")
	}

	query := u.Query()
	version := strings.TrimSpace(query.Get("version"))
	if version == "" {
		version = defaultVersion
	}
	return parsedReference{
		Canonical: "secret://" + path,
		Secret:    strings.ReplaceAll(path, "/", "-"),
		Version:   version,
		Project:   strings.TrimSpace(query.Get("project")),
	}, nil
}

func cacheKey(canonical, version string) string {
	return canonical + "#" + version
}

func maskReference(ref string) string {
	h := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(h[:8])
}

func isFallbackError(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded, codes.NotFound:
		return true
	default:
		return false
	}
}
