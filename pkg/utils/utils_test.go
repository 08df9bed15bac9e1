package utils

import "testing"

func TestHTTPHelper_IsValidURL(t *testing.T) {
	h := NewHTTPHelper("test")

	tests := []struct {
		url  string
		want bool
	}{
		{"https://news.ycombinator.com/newest", true},
		{"http://localhost:8080/newest?next=1", true},
		{"news.ycombinator.com/newest", false},
		{"file:///tmp/page.html", false},
		{"https://", false},
		{"://bad", false},
	}

	for _, tt := range tests {
		if got := h.IsValidURL(tt.url); got != tt.want {
			t.Errorf("IsValidURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestHTTPHelper_BuildHeaders(t *testing.T) {
	headers := NewHTTPHelper("hnsort/1.0").BuildHeaders(map[string]string{"Accept": "text/html"})

	if headers.Get("User-Agent") != "hnsort/1.0" || headers.Get("Accept") != "text/html" {
		t.Errorf("unexpected headers: %v", headers)
	}
}

func TestStringHelper(t *testing.T) {
	s := NewStringHelper()

	if got := s.NormalizeWhitespace("  Ask  HN:\n\tthing "); got != "Ask HN: thing" {
		t.Errorf("NormalizeWhitespace = %q", got)
	}

	if got := s.TruncateString("日本語のタイトル", 3); got != "日本語..." {
		t.Errorf("TruncateString = %q", got)
	}

	if got := s.TruncateString("short", 10); got != "short" {
		t.Errorf("TruncateString = %q", got)
	}
}
