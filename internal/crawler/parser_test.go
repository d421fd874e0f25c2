package crawler

import (
	"slices"
	"testing"
)

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	t.Run("resolves and normalizes hyperlinks", func(t *testing.T) {
		t.Parallel()

		body := []byte(`<html><head><link href="/style.css"></head><body>
			<a href="/docs/">Docs</a>
			<a href="guide.pdf">Guide</a>
			<a href="../up">Up</a>
			<a href="https://Blog.Example.com/Post/?page=2#comments">Post</a>
			<a href="//cdn.example.com/file.pdf">CDN</a>
			<a href="http://example.org">Bare</a>
			<img src="/logo.png">
		</body></html>`)

		links, err := ExtractLinks(body, "https://www.example.com/section/page")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{
			"https://www.example.com/docs",
			"https://www.example.com/section/guide.pdf",
			"https://www.example.com/up",
			"https://blog.example.com/Post",
			"https://cdn.example.com/file.pdf",
			"https://www.example.org",
		}
		if !slices.Equal(links, want) {
			t.Errorf("expected %v, got %v", want, links)
		}
	})

	t.Run("drops non-http targets and fragments", func(t *testing.T) {
		t.Parallel()

		body := []byte(`<a href="mailto:a@example.com">m</a>
			<a href="javascript:void(0)">j</a>
			<a href="tel:+123">t</a>
			<a href="ftp://files.example.com/a.pdf">f</a>
			<a href="#top">top</a>
			<a href="">empty</a>
			<a>none</a>`)

		links, err := ExtractLinks(body, "https://www.example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(links) != 0 {
			t.Errorf("expected no links, got %v", links)
		}
	})

	t.Run("deduplicates within a page", func(t *testing.T) {
		t.Parallel()

		body := []byte(`<a href="/a">1</a><a href="/a/">2</a><a href="https://www.example.com/a#x">3</a><a href="/b">4</a>`)

		links, err := ExtractLinks(body, "https://www.example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"https://www.example.com/a", "https://www.example.com/b"}
		if !slices.Equal(links, want) {
			t.Errorf("expected %v, got %v", want, links)
		}
	})

	t.Run("drops hosts without a registered domain", func(t *testing.T) {
		t.Parallel()

		links, err := ExtractLinks([]byte(`<a href="http://localhost/x">x</a>`), "https://www.example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(links) != 0 {
			t.Errorf("expected no links, got %v", links)
		}
	})

	t.Run("tolerates malformed HTML", func(t *testing.T) {
		t.Parallel()

		links, err := ExtractLinks([]byte(`<div><a href="/ok">ok<p><a href="/also"`), "https://www.example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(links) == 0 || links[0] != "https://www.example.com/ok" {
			t.Errorf("expected the first link to survive, got %v", links)
		}
	})

	t.Run("invalid base URL", func(t *testing.T) {
		t.Parallel()

		if _, err := ExtractLinks([]byte(`<a href="/x">x</a>`), "http://[::1"); err == nil {
			t.Error("expected error for invalid base URL")
		}
	})
}
