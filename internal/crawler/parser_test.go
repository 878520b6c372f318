package crawler

import (
	"strings"
	"testing"
)

func TestLinkExtractor(t *testing.T) {
	t.Parallel()

	t.Run("extracts title and partitions links by registrable domain", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><title>Vendor Board</title></head><body>
			<a href="/listings">Listings</a>
			<a href="http://sub.seed-domain.com/forum">Subdomain</a>
			<a href="https://seed-domain.com/login">Scheme change</a>
			<a href="http://other.com/out">External</a>
		</body></html>`

		ex, err := NewLinkExtractor("http://seed-domain.com")
		if err != nil {
			t.Fatalf("failed to create extractor: %v", err)
		}

		result, err := ex.Extract(strings.NewReader(html), "http://seed-domain.com/")
		if err != nil {
			t.Fatalf("extract failed: %v", err)
		}

		if result.Title != "Vendor Board" {
			t.Errorf("title = %q, want 'Vendor Board'", result.Title)
		}
		if len(result.Links) != 4 {
			t.Fatalf("expected 4 links, got %d: %v", len(result.Links), result.Links)
		}
		// Subdomain and scheme differences do not change the partition.
		if len(result.InternalLinks) != 3 {
			t.Errorf("expected 3 internal links, got %d: %v", len(result.InternalLinks), result.InternalLinks)
		}
		if len(result.ExternalLinks) != 1 || result.ExternalLinks[0] != "http://other.com/out" {
			t.Errorf("unexpected external links: %v", result.ExternalLinks)
		}
	})

	t.Run("discards non-navigational references", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="mailto:admin@example.com">Mail</a>
			<a href="javascript:void(0)">JS</a>
			<a href="tel:+123456">Call</a>
			<a href="#section">Anchor</a>
			<a href="data:text/plain;base64,aGk=">Data</a>
			<a href="/real">Real</a>
		</body></html>`

		ex, err := NewLinkExtractor("http://example.com")
		if err != nil {
			t.Fatalf("failed to create extractor: %v", err)
		}

		result, err := ex.Extract(strings.NewReader(html), "http://example.com/")
		if err != nil {
			t.Fatalf("extract failed: %v", err)
		}

		if len(result.Links) != 1 || result.Links[0] != "http://example.com/real" {
			t.Errorf("expected only the real link, got %v", result.Links)
		}
	})

	t.Run("deduplicates repeated links", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/page">One</a>
			<a href="/page">Two</a>
		</body></html>`

		ex, err := NewLinkExtractor("http://example.com")
		if err != nil {
			t.Fatalf("failed to create extractor: %v", err)
		}

		result, err := ex.Extract(strings.NewReader(html), "http://example.com/")
		if err != nil {
			t.Fatalf("extract failed: %v", err)
		}
		if len(result.Links) != 1 {
			t.Errorf("expected 1 deduplicated link, got %d", len(result.Links))
		}
	})

	t.Run("tolerates malformed markup", func(t *testing.T) {
		t.Parallel()

		html := `<html><body><a href="/ok">ok<div><a href="/also`

		ex, err := NewLinkExtractor("http://example.com")
		if err != nil {
			t.Fatalf("failed to create extractor: %v", err)
		}

		result, err := ex.Extract(strings.NewReader(html), "http://example.com/")
		if err != nil {
			t.Fatalf("malformed HTML must not be a fatal error: %v", err)
		}
		if len(result.Links) == 0 {
			t.Error("expected the well-formed links to survive malformed markup")
		}
	})

	t.Run("detects password inputs and collects visible text", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<script>var hidden = "should not appear";</script>
			<p>Vendor escrow enabled</p>
			<form action="/login" method="POST">
				<input type="text" name="user">
				<input type="PASSWORD" name="pass">
			</form>
		</body></html>`

		ex, err := NewLinkExtractor("http://example.com")
		if err != nil {
			t.Fatalf("failed to create extractor: %v", err)
		}

		result, err := ex.Extract(strings.NewReader(html), "http://example.com/")
		if err != nil {
			t.Fatalf("extract failed: %v", err)
		}

		if !result.HasPasswordInput {
			t.Error("expected password input to be detected")
		}
		if !strings.Contains(result.VisibleText, "vendor escrow enabled") {
			t.Errorf("visible text missing body copy: %q", result.VisibleText)
		}
		if strings.Contains(result.VisibleText, "should not appear") {
			t.Error("script content leaked into visible text")
		}
	})
}

func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		host string
		want string
	}{
		{name: "bare domain", host: "example.com", want: "example.com"},
		{name: "subdomain stripped", host: "deep.sub.example.com", want: "example.com"},
		{name: "www stripped", host: "www.example.com", want: "example.com"},
		{name: "uk second level", host: "shop.example.co.uk", want: "example.co.uk"},
		{name: "onion service", host: "abcdefghijklmnop.onion", want: "abcdefghijklmnop.onion"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := RegistrableDomain(tt.host); got != tt.want {
				t.Errorf("RegistrableDomain(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}
