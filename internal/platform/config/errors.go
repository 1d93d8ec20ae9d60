package config

import (
	"context"
	"fmt"
	"strings"
)

// SecretResolver resolves secret:// references into concrete values.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function into a SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret implements SecretResolver.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError reports invalid or missing configuration fields.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid or missing fields: %s", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending field names.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError wraps a failure resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("config: resolve secret %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError lists required secrets that resolved to empty values.
type MissingSecretsError struct {
	secrets []missingSecret
}

type missingSecret struct {
	name     string
	redacted string
}

func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("config: missing required secrets: %s", strings.Join(e.RedactedNames(), ", "))
}

// RedactedNames returns hashed identifiers suitable for logs.
func (e *MissingSecretsError) RedactedNames() []string {
	out := make([]string, 0, len(e.secrets))
	for _, s := range e.secrets {
		out = append(out, s.redacted)
	}
	return out
}

// Names returns the config field names of the missing secrets.
func (e *MissingSecretsError) Names() []string {
	out := make([]string, 0, len(e.secrets))
	for _, s := range e.secrets {
		out = append(out, s.name)
	}
	return out
}
