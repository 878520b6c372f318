package robots

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func TestPolicyAllow(t *testing.T) {
	t.Parallel()

	t.Run("honors disallow rules for the crawler's agent", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "User-agent: scopecrawl\nDisallow: /admin/\nDisallow: /private\n")
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		p := NewPolicy("scopecrawl/1.0 (+https://example.com)")

		if p.Allow(srv.URL + "/admin/panel") {
			t.Error("disallowed path /admin/panel was allowed")
		}
		if p.Allow(srv.URL + "/private") {
			t.Error("disallowed path /private was allowed")
		}
		if !p.Allow(srv.URL + "/public/page") {
			t.Error("allowed path /public/page was vetoed")
		}
	})

	t.Run("wildcard rules apply when no agent matches", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "User-agent: *\nDisallow: /blocked\n")
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		p := NewPolicy("scopecrawl/1.0")
		if p.Allow(srv.URL + "/blocked/page") {
			t.Error("wildcard-disallowed path was allowed")
		}
		if !p.Allow(srv.URL + "/open") {
			t.Error("open path was vetoed")
		}
	})

	t.Run("missing robots.txt allows everything", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		p := NewPolicy("scopecrawl/1.0")
		if !p.Allow(srv.URL + "/anything") {
			t.Error("404 robots.txt must fail open")
		}
	})

	t.Run("unreachable host allows everything", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		target := srv.URL
		srv.Close()

		p := NewPolicy("scopecrawl/1.0")
		if !p.Allow(target + "/page") {
			t.Error("unreachable robots.txt must fail open")
		}
	})

	t.Run("onion robots fetch goes through the proxy dialer", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "User-agent: scopecrawl\nDisallow: /secret\n")
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		dialer := &recordingDialer{backend: srv.Listener.Addr().String()}
		p := NewPolicy("scopecrawl/1.0", WithProxyDialer(dialer))

		const onionHost = "exampleonionabcdef.onion"
		if p.Allow("http://" + onionHost + "/secret") {
			t.Error("disallowed onion path /secret was allowed")
		}
		if !p.Allow("http://" + onionHost + "/open") {
			t.Error("allowed onion path /open was vetoed")
		}

		addrs := dialer.addrs()
		if len(addrs) == 0 {
			t.Fatal("onion robots fetch did not use the proxy dialer")
		}
		for _, addr := range addrs {
			if addr != onionHost+":80" {
				t.Errorf("dialer received %q, want %q", addr, onionHost+":80")
			}
		}
	})

	t.Run("onion host without proxy allows without dialing", func(t *testing.T) {
		t.Parallel()

		rt := &countingTransport{}
		p := NewPolicy("scopecrawl/1.0", WithHTTPClient(&http.Client{Transport: rt}))

		if !p.Allow("http://exampleonionabcdef.onion/secret") {
			t.Error("onion URL must fail open when no proxy is configured")
		}
		if n := rt.calls.Load(); n != 0 {
			t.Errorf("onion robots fetch made %d clearnet request(s), want 0", n)
		}
	})

	t.Run("fetches robots.txt once per host", func(t *testing.T) {
		t.Parallel()

		var fetches atomic.Int64
		mux := http.NewServeMux()
		mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
			fetches.Add(1)
			fmt.Fprint(w, "User-agent: *\nDisallow:\n")
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		p := NewPolicy("scopecrawl/1.0")
		for i := 0; i < 5; i++ {
			p.Allow(fmt.Sprintf("%s/page/%d", srv.URL, i))
		}
		if n := fetches.Load(); n != 1 {
			t.Errorf("robots.txt fetched %d times, want 1", n)
		}
	})
}

// recordingDialer is a proxy.Dialer that records the addresses it is asked
// for and connects each one to a fixed local backend.
type recordingDialer struct {
	backend string

	mu     sync.Mutex
	dialed []string
}

func (d *recordingDialer) Dial(network, addr string) (net.Conn, error) {
	d.mu.Lock()
	d.dialed = append(d.dialed, addr)
	d.mu.Unlock()
	return net.Dial(network, d.backend)
}

func (d *recordingDialer) addrs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dialed...)
}

// countingTransport counts round trips without performing any.
type countingTransport struct {
	calls atomic.Int64
}

func (t *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return nil, fmt.Errorf("unexpected clearnet request")
}

func TestProductToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ua   string
		want string
	}{
		{name: "versioned agent", ua: "scopecrawl/1.0 (+https://example.com)", want: "scopecrawl"},
		{name: "bare token", ua: "scopecrawl", want: "scopecrawl"},
		{name: "space separated", ua: "scopecrawl extra", want: "scopecrawl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := productToken(tt.ua); got != tt.want {
				t.Errorf("productToken(%q) = %q, want %q", tt.ua, got, tt.want)
			}
		})
	}
}
