package storage

import "testing"

func TestObjectPath(t *testing.T) {
	path, err := ObjectPath("", "01HZX3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "artifacts/01HZX3" {
		t.Fatalf("expected artifacts/01HZX3, got %s", path)
	}

	path, err = ObjectPath("/tmp-artifacts/", "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "tmp-artifacts/abc" {
		t.Fatalf("expected tmp-artifacts/abc, got %s", path)
	}
}

func TestObjectPathRejectsInvalidSegment(t *testing.T) {
	for _, id := range []string{"", "../bad", "a/b", `a\b`} {
		if _, err := ObjectPath("", id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
}

func TestArtifactIDFromPath(t *testing.T) {
	if id, ok := ArtifactIDFromPath("", "artifacts/abc"); !ok || id != "abc" {
		t.Fatalf("expected abc, got %q ok=%v", id, ok)
	}
	if _, ok := ArtifactIDFromPath("", "other/abc"); ok {
		t.Fatalf("expected foreign prefix to be rejected")
	}
	if _, ok := ArtifactIDFromPath("", "artifacts/nested/abc"); ok {
		t.Fatalf("expected nested key to be rejected")
	}
}
