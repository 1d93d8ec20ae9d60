package storage

import (
	"fmt"
	"strings"
)

// DefaultPrefix is the object prefix under which artifacts are written.
const DefaultPrefix = "artifacts"

// ObjectPath composes the object key for an artifact id under prefix.
func ObjectPath(prefix, artifactID string) (string, error) {
	id, err := validateSegment("artifactID", artifactID)
	if err != nil {
		return "", err
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s/%s", prefix, id), nil
}

// ArtifactIDFromPath returns the trailing id segment of an object key.
func ArtifactIDFromPath(prefix, object string) (string, bool) {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	id, ok := strings.CutPrefix(object, prefix+"/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}
