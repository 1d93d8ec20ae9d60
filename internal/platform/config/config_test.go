package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testHashKey = "0123456789abcdef0123456789abcdef"

func baseEnv() map[string]string {
	return map[string]string{
		"LINGUA_FIREBASE_PROJECT_ID": "lingua-dev",
		"LINGUA_SESSION_HASH_KEY":    testHashKey,
	}
}

func load(t *testing.T, env map[string]string, opts ...Option) (Config, error) {
	t.Helper()
	base := []Option{WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithoutFileChecks()}
	return Load(context.Background(), append(base, opts...)...)
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := load(t, baseEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadBytes != 10<<20 {
		t.Errorf("unexpected upload limit %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.Server.MaxExtractedBytes != 50<<20 {
		t.Errorf("unexpected extracted size limit %d", cfg.Server.MaxExtractedBytes)
	}
	if cfg.Firestore.ProjectID != "lingua-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Firebase.CredentialsFile != "serviceAccountKey.json" {
		t.Errorf("unexpected credentials file %s", cfg.Firebase.CredentialsFile)
	}
	if cfg.Firestore.FeedbackCollection != "feedback" {
		t.Errorf("unexpected feedback collection %s", cfg.Firestore.FeedbackCollection)
	}
	if cfg.Translation.MaxAttempts != 2 || cfg.Translation.Backoff != time.Second {
		t.Errorf("unexpected retry defaults: %+v", cfg.Translation)
	}
	if cfg.Artifacts.Backend != ArtifactBackendLocal || cfg.Artifacts.TTL != time.Hour {
		t.Errorf("unexpected artifact defaults: %+v", cfg.Artifacts)
	}
	if !cfg.Speech.Enabled || !cfg.OCR.Enabled {
		t.Errorf("expected speech and ocr enabled by default")
	}
	if cfg.Secrets.DefaultProjectID != "lingua-dev" {
		t.Errorf("expected secret project to default to firebase project, got %s", cfg.Secrets.DefaultProjectID)
	}
}

func TestLoadHonoursPlatformPort(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "3000"
	cfg, err := load(t, env)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "3000" {
		t.Fatalf("expected PORT to apply, got %s", cfg.Server.Port)
	}

	env["LINGUA_SERVER_PORT"] = "9090"
	cfg, err = load(t, env)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected explicit port to win, got %s", cfg.Server.Port)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := baseEnv()
	env["LINGUA_SESSION_HASH_KEY"] = "sm://session/hash"
	env["LINGUA_FIREBASE_WEB_API_KEY"] = "secret://firebase/web-key"
	env["LINGUA_TRANSLATE_MAX_ATTEMPTS"] = "3"
	env["LINGUA_TRANSLATE_TRANSIENT_PATTERNS"] = "timed out, reset by peer ,"
	env["LINGUA_ARTIFACTS_BACKEND"] = "GCS"
	env["LINGUA_ARTIFACTS_BUCKET"] = "lingua-artifacts"
	env["LINGUA_SPEECH_ENABLED"] = "off"

	var refs []string
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		refs = append(refs, ref)
		switch ref {
		case "secret://session/hash":
			return testHashKey, nil
		case "secret://firebase/web-key":
			return "web-key", nil
		}
		return "", errors.New("unexpected ref")
	})

	cfg, err := load(t, env, WithSecretResolver(resolver), WithRequiredSecrets(RequiredSecrets...))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Session.HashKey != testHashKey || cfg.Firebase.WebAPIKey != "web-key" {
		t.Fatalf("secrets not resolved: %+v %+v", cfg.Session, cfg.Firebase)
	}
	if len(refs) != 2 {
		t.Fatalf("expected two resolver calls, got %v", refs)
	}
	if cfg.Translation.MaxAttempts != 3 {
		t.Errorf("unexpected attempts %d", cfg.Translation.MaxAttempts)
	}
	if got := strings.Join(cfg.Translation.TransientPatterns, "|"); got != "timed out|reset by peer" {
		t.Errorf("unexpected patterns %q", got)
	}
	if cfg.Artifacts.Backend != ArtifactBackendGCS || cfg.Speech.Enabled {
		t.Errorf("unexpected overrides: %+v speech=%t", cfg.Artifacts, cfg.Speech.Enabled)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	env := map[string]string{
		"LINGUA_SESSION_HASH_KEY":  "short",
		"LINGUA_ARTIFACTS_BACKEND": "gcs",
	}
	_, err := load(t, env)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := strings.Join(verr.Fields(), ",")
	for _, want := range []string{"Firebase.ProjectID", "Session.HashKey", "Artifacts.Bucket"} {
		if !strings.Contains(fields, want) {
			t.Errorf("expected %s in %s", want, fields)
		}
	}
}

func TestLoadRequiresCredentialsFile(t *testing.T) {
	env := baseEnv()
	env["LINGUA_FIREBASE_CREDENTIALS_FILE"] = filepath.Join(t.TempDir(), "missing.json")
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var verr *ValidationError
	if !errors.As(err, &verr) || !strings.Contains(strings.Join(verr.Fields(), ","), "Firebase.CredentialsFile") {
		t.Fatalf("expected credentials file validation error, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	env["LINGUA_FIREBASE_CREDENTIALS_FILE"] = path
	if _, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile("")); err != nil {
		t.Fatalf("expected existing credentials file to pass, got %v", err)
	}
}

func TestLoadMissingSecrets(t *testing.T) {
	_, err := load(t, baseEnv(), WithRequiredSecrets(RequiredSecrets...))
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected missing secrets error, got %v", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "Firebase.WebAPIKey" {
		t.Fatalf("unexpected missing names %v", names)
	}
	if redacted := missing.RedactedNames(); len(redacted) != 1 || redacted[0] == "Firebase.WebAPIKey" || len(redacted[0]) != 16 {
		t.Fatalf("expected hashed names, got %v", redacted)
	}
}

func TestLoadSecretWithoutResolver(t *testing.T) {
	env := baseEnv()
	env["LINGUA_FIREBASE_WEB_API_KEY"] = "secret://firebase/web-key"
	_, err := load(t, env)
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected secret error, got %v", err)
	}
	if !errors.Is(err, errSecretResolverNotConfigured) {
		t.Fatalf("expected unconfigured resolver cause, got %v", err)
	}
}

func TestEnvironmentValuesPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nexport LINGUA_A=dotenv\nLINGUA_B='dotenv'\nbroken line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("LINGUA_B", "system")

	values, err := EnvironmentValues(WithEnvFile(path), WithEnvMap(map[string]string{"LINGUA_C": "map"}))
	if err != nil {
		t.Fatalf("EnvironmentValues: %v", err)
	}
	if values["LINGUA_A"] != "dotenv" || values["LINGUA_B"] != "system" || values["LINGUA_C"] != "map" {
		t.Fatalf("unexpected precedence: A=%s B=%s C=%s", values["LINGUA_A"], values["LINGUA_B"], values["LINGUA_C"])
	}
}
