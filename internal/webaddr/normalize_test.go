package webaddr

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "bare domain gets scheme and www", raw: "example.com", want: "https://www.example.com"},
		{name: "trailing slash removed", raw: "https://example.com/", want: "https://www.example.com"},
		{name: "host is lowercased", raw: "https://Docs.Example.COM/Guide/", want: "https://docs.example.com/Guide"},
		{name: "http becomes https", raw: "http://example.com/a", want: "https://www.example.com/a"},
		{name: "uppercase http", raw: "HTTP://www.example.com/report.pdf", want: "https://www.example.com/report.pdf"},
		{name: "uppercase scheme", raw: "HTTPS://example.com/a", want: "https://www.example.com/a"},
		{name: "three labels keep their host", raw: "https://blog.example.com/post", want: "https://blog.example.com/post"},
		{name: "query and fragment dropped", raw: "https://www.example.com/a?b=1#c", want: "https://www.example.com/a"},
		{name: "multiple trailing slashes", raw: "https://www.example.com/a//", want: "https://www.example.com/a"},
		{name: "port is kept", raw: "http://example.com:8080/a", want: "https://www.example.com:8080/a"},
		{name: "ip host", raw: "http://127.0.0.1:8080/docs/", want: "https://127.0.0.1:8080/docs"},
		{name: "protocol relative", raw: "//example.org/x", want: "https://www.example.org/x"},
		{name: "escaped path kept", raw: "https://www.example.com/a%20b.pdf", want: "https://www.example.com/a%20b.pdf"},
		{name: "whitespace trimmed", raw: "  https://www.example.com/a \n", want: "https://www.example.com/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNormalizeSchemesShareKey(t *testing.T) {
	t.Parallel()

	plain, err := Normalize("http://ex.com/report.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	secure, err := Normalize("https://ex.com/report.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plain != secure {
		t.Errorf("expected one key for both schemes, got %q and %q", plain, secure)
	}
}

func TestNormalizeRejects(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "https://", "localhost", "http://localhost:8080/a", "https://com"} {
		t.Run(raw, func(t *testing.T) {
			t.Parallel()
			if _, err := Normalize(raw); !errors.Is(err, ErrUnparseable) {
				t.Errorf("expected ErrUnparseable for %q, got %v", raw, err)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"example.com",
		"https://Example.com/A/B/",
		"http://example.com:8080//",
		"https://www.example.co.uk/docs/report.PDF",
		"https://www.example.com/a%20b/",
		"https://sub.sub.example.com/x?y=z",
		"example.org/path/with/trailing///",
	}

	for _, raw := range inputs {
		t.Run(raw, func(t *testing.T) {
			t.Parallel()
			once, err := Normalize(raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			twice, err := Normalize(once)
			if err != nil {
				t.Fatalf("unexpected error on second pass: %v", err)
			}
			if once != twice {
				t.Errorf("expected %q to be stable, got %q", once, twice)
			}
		})
	}
}

func TestRegisteredDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"https://www.example.com/a", "example.com"},
		{"https://blog.example.com", "example.com"},
		{"https://docs.example.co.uk/a", "example.co.uk"},
		{"http://www.example.com:8080/a", "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := RegisteredDomain(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("no host", func(t *testing.T) {
		t.Parallel()
		if _, err := RegisteredDomain("/relative/path"); !errors.Is(err, ErrUnparseable) {
			t.Errorf("expected ErrUnparseable, got %v", err)
		}
	})
}

func TestSource(t *testing.T) {
	t.Parallel()

	if got := Source("https://docs.example.co.uk/a"); got != "example" {
		t.Errorf("expected %q, got %q", "example", got)
	}
	if got := Source("not a url"); got != "" {
		t.Errorf("expected empty source, got %q", got)
	}
}

func TestOriginAndHost(t *testing.T) {
	t.Parallel()

	origin, err := Origin("https://www.example.com:8443/a/b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if origin != "https://www.example.com:8443" {
		t.Errorf("expected origin with port, got %q", origin)
	}

	if _, err := Origin("/just/a/path"); !errors.Is(err, ErrUnparseable) {
		t.Errorf("expected ErrUnparseable, got %v", err)
	}

	if host := Host("https://WWW.Example.com/a"); host != "www.example.com" {
		t.Errorf("expected lowercase host, got %q", host)
	}
}

func TestHasExtension(t *testing.T) {
	t.Parallel()

	exts := []string{".pdf"}
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://www.example.com/report.pdf", true},
		{"https://www.example.com/REPORT.PDF", true},
		{"https://www.example.com/report.pdf?download=1", true},
		{"https://www.example.com/report.pdf.html", false},
		{"https://www.example.com/pdf", false},
		{"https://www.example.com/", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			if got := HasExtension(tt.raw, exts); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestIsHTTP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want bool
	}{
		{"https://www.example.com", true},
		{"http://www.example.com/a", true},
		{"mailto:someone@example.com", false},
		{"javascript:void(0)", false},
		{"ftp://files.example.com/a", false},
		{"/relative", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			if got := IsHTTP(tt.raw); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
