package identity

import (
	"strings"
	"testing"
)

func TestDeviceName(t *testing.T) {
	cases := []struct {
		ua   string
		want string
	}{
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", "iOS"},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8)", "Android"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", "Windows"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)", "Mac"},
		{"Mozilla/5.0 (X11; Linux x86_64)", "Linux"},
		{"curl/8.0", "Device"},
		{"", "Device"},
	}

	for _, c := range cases {
		if got := DeviceName(c.ua); got != c.want {
			t.Fatalf("DeviceName(%q) = %q, want %q", c.ua, got, c.want)
		}
	}
}

func TestNewPlayerID(t *testing.T) {
	id := NewPlayerID("Mozilla/5.0 (Windows NT 10.0)")

	prefix, code, found := strings.Cut(id, "_")
	if !found {
		t.Fatalf("player id %q missing separator", id)
	}
	if prefix != "Windows" {
		t.Fatalf("want Windows prefix, got %q", prefix)
	}
	if len(code) != 6 {
		t.Fatalf("want 6-char short code, got %q", code)
	}

	if NewPlayerID("x") == NewPlayerID("x") {
		t.Fatalf("player ids should not collide")
	}
}
