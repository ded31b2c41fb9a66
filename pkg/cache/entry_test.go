package cache

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEntry_Age(t *testing.T) {
	entry := &Entry{
		Text:     "a red bicycle leaning against a wall",
		Backend:  "default",
		CachedAt: time.Now().Add(-30 * time.Minute),
	}

	age := entry.Age()
	if age < 29*time.Minute || age > 31*time.Minute {
		t.Errorf("Age() = %v, want ~30m", age)
	}
}

func TestEntry_JSONRoundTrip(t *testing.T) {
	entry := &Entry{
		Text:     "two dogs playing in the snow",
		Backend:  "fast",
		CachedAt: time.Now().Truncate(time.Second),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded Entry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.Text != entry.Text {
		t.Errorf("Text mismatch: got %q, want %q", decoded.Text, entry.Text)
	}
	if decoded.Backend != entry.Backend {
		t.Errorf("Backend mismatch: got %q, want %q", decoded.Backend, entry.Backend)
	}
	if !decoded.CachedAt.Equal(entry.CachedAt) {
		t.Errorf("CachedAt mismatch: got %v, want %v", decoded.CachedAt, entry.CachedAt)
	}
}
