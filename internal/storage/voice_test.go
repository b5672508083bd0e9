package storage

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	ls := &localStore{baseDir: t.TempDir()}

	key := VoiceKey(42, 7, time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC))
	body := []byte("ogg-bytes")

	loc, err := ls.Upload(ctx, key, body, "audio/ogg")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if loc == "" {
		t.Fatalf("expected a location")
	}

	got, err := ls.Fetch(ctx, key)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestVoiceKey(t *testing.T) {
	key := VoiceKey(42, 7, time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC))
	if key != "voice/42/20260301T123000_7.ogg" {
		t.Fatalf("unexpected key: %q", key)
	}
}

func TestSanitizeKeyStripsTraversal(t *testing.T) {
	if got := sanitizeKey("../../etc/passwd"); strings.Contains(got, "..") {
		t.Fatalf("traversal not stripped: %q", got)
	}
	if got := sanitizeKey("/voice/1/a.ogg"); strings.HasPrefix(got, "/") {
		t.Fatalf("absolute prefix not stripped: %q", got)
	}
}
