package header

import (
	"net/http"
	"testing"
)

func TestFilter_HopByHop(t *testing.T) {
	src := http.Header{
		"Content-Type":        {"application/json"},
		"Connection":          {"keep-alive"},
		"Keep-Alive":          {"timeout=5"},
		"Proxy-Authenticate":  {"Basic"},
		"Proxy-Authorization": {"Basic abc"},
		"Te":                  {"trailers"},
		"Trailers":            {"X-Checksum"},
		"Transfer-Encoding":   {"chunked"},
		"Upgrade":             {"h2c"},
		"X-Notion-Signature":  {"sha256=abc"},
		"Set-Cookie":          {"a=1", "b=2"},
	}

	dst := Filter(src, HopByHop)

	tests := []struct {
		name    string
		key     string
		wantLen int
	}{
		{"Content-Type kept", "Content-Type", 1},
		{"custom header kept", "X-Notion-Signature", 1},
		{"duplicates kept", "Set-Cookie", 2},
		{"Connection stripped", "Connection", 0},
		{"Keep-Alive stripped", "Keep-Alive", 0},
		{"Proxy-Authenticate stripped", "Proxy-Authenticate", 0},
		{"Proxy-Authorization stripped", "Proxy-Authorization", 0},
		{"TE stripped", "TE", 0},
		{"Trailers stripped", "Trailers", 0},
		{"Transfer-Encoding stripped", "Transfer-Encoding", 0},
		{"Upgrade stripped", "Upgrade", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(dst.Values(tt.key)); got != tt.wantLen {
				t.Errorf("header %q: got %d values, want %d", tt.key, got, tt.wantLen)
			}
		})
	}

	if got := dst.Values("Set-Cookie"); got[0] != "a=1" || got[1] != "b=2" {
		t.Errorf("Set-Cookie order = %v, want [a=1 b=2]", got)
	}
}

func TestFilter_NonCanonicalKeys(t *testing.T) {
	src := http.Header{
		"connection":  {"close"},
		"KEEP-ALIVE":  {"timeout=5"},
		"x-lowercase": {"v"},
	}

	dst := Filter(src, HopByHop)

	if _, ok := dst["connection"]; ok {
		t.Error("lowercase connection should be stripped")
	}
	if _, ok := dst["KEEP-ALIVE"]; ok {
		t.Error("uppercase KEEP-ALIVE should be stripped")
	}
	if got := dst["x-lowercase"]; len(got) != 1 || got[0] != "v" {
		t.Errorf("x-lowercase = %v, want [v] under the original key", got)
	}
}

func TestFilter_DoesNotAliasSource(t *testing.T) {
	src := http.Header{"X-A": {"1"}}
	dst := Filter(src, HopByHop)
	dst["X-A"][0] = "changed"

	if src.Get("X-A") != "1" {
		t.Errorf("source mutated: %q", src.Get("X-A"))
	}
}

func TestFilter_EmptyExclude(t *testing.T) {
	src := http.Header{"Connection": {"close"}}
	dst := Filter(src, NewSet())
	if dst.Get("Connection") != "close" {
		t.Error("empty exclude set should keep every header")
	}
}

func TestSet_Contains(t *testing.T) {
	s := NewSet("Keep-Alive")
	for _, name := range []string{"keep-alive", "Keep-Alive", "KEEP-ALIVE"} {
		if !s.Contains(name) {
			t.Errorf("Contains(%q) = false, want true", name)
		}
	}
	if s.Contains("Keep") {
		t.Error("Contains(\"Keep\") = true, want false")
	}
}
