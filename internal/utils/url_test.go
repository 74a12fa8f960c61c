package utils

import (
	"errors"
	"testing"
)

func TestHTTPURL(t *testing.T) {
	parsed, err := HTTPURL("HTTPS://user:pw@Bücher.Example/avatar.png#frag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := parsed.String(); got != "https://xn--bcher-kva.example/avatar.png" {
		t.Fatalf("unexpected url: %s", got)
	}

	parsed, err = HTTPURL("http://cdn.example.com:8080/a.png?size=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Host != "cdn.example.com:8080" || parsed.RawQuery != "size=1" {
		t.Fatalf("unexpected url: %s", parsed)
	}
}

func TestHTTPURLIPHosts(t *testing.T) {
	cases := map[string]string{
		"http://[::1]:8080/a.png":     "[::1]:8080",
		"http://[2001:DB8::1]/a.png":  "[2001:db8::1]",
		"http://127.0.0.1:9000/a.png": "127.0.0.1:9000",
	}
	for raw, want := range cases {
		parsed, err := HTTPURL(raw)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", raw, err)
		}
		if parsed.Host != want {
			t.Fatalf("%s: expected host %q, got %q", raw, want, parsed.Host)
		}
	}
}

func TestHTTPURLRejects(t *testing.T) {
	if _, err := HTTPURL("ftp://example.com/a.png"); !errors.Is(err, ErrNotHTTP) {
		t.Fatalf("expected ErrNotHTTP, got %v", err)
	}
	if _, err := HTTPURL("example.com/a.png"); !errors.Is(err, ErrNotHTTP) {
		t.Fatalf("expected ErrNotHTTP for missing scheme, got %v", err)
	}
	if _, err := HTTPURL("https:///a.png"); !errors.Is(err, ErrNoHost) {
		t.Fatalf("expected ErrNoHost, got %v", err)
	}
}
