package tor

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

// fakeSocks5Server accepts one connection and plays the proxy side of the
// SOCKS5 handshake, answering the CONNECT probe with host-unreachable the
// way Tor does for a non-existent onion address.
func fakeSocks5Server(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Greeting: version, method count, methods.
		greeting := make([]byte, 3)
		if _, err := io.ReadFull(conn, greeting); err != nil {
			return
		}
		if _, err := conn.Write([]byte{socks5Version, socks5AuthNone}); err != nil {
			return
		}

		// CONNECT request: header, then domain length + domain + port.
		header := make([]byte, 5)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		rest := make([]byte, int(header[4])+2)
		if _, err := io.ReadFull(conn, rest); err != nil {
			return
		}

		// Reply: host unreachable, IPv4 zero bind address.
		conn.Write([]byte{socks5Version, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0}) //nolint:errcheck // Test server
	}()

	return ln.Addr().String()
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("accepts a well-formed proxy address", func(t *testing.T) {
		t.Parallel()

		c, err := NewClient("127.0.0.1:9050", 10*time.Second)
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if c.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress = %q", c.ProxyAddress())
		}
		if c.Dialer() == nil {
			t.Error("Dialer must not be nil")
		}
		if c.Timeout() != 10*time.Second {
			t.Errorf("Timeout = %v", c.Timeout())
		}
	})

	t.Run("rejects malformed addresses", func(t *testing.T) {
		t.Parallel()

		for _, addr := range []string{"", "localhost", ":9050", "host:", "host:0", "host:99999", "host:port"} {
			if _, err := NewClient(addr, time.Second); !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("NewClient(%q) err = %v, want ErrInvalidProxyAddress", addr, err)
			}
		}
	})
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	t.Run("working proxy reports OK", func(t *testing.T) {
		t.Parallel()

		addr := fakeSocks5Server(t)
		c, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}

		status := c.CheckConnection(context.Background())
		if status != ProxyStatusOK {
			t.Errorf("status = %v, want OK", status)
		}
		if status.Error() != nil {
			t.Errorf("OK status must map to a nil error, got %v", status.Error())
		}
	})

	t.Run("nothing listening reports cannot connect", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}
		addr := ln.Addr().String()
		ln.Close()

		c, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}

		status := c.CheckConnection(context.Background())
		if status != ProxyStatusCannotConnect {
			t.Errorf("status = %v, want cannot connect", status)
		}
		if !errors.Is(status.Error(), ErrProxyCannotConnect) {
			t.Errorf("status error = %v", status.Error())
		}
	})

	t.Run("non-SOCKS service reports wrong type", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}
		t.Cleanup(func() { ln.Close() })

		go func() {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
			buf := make([]byte, 3)
			io.ReadFull(conn, buf)                                   //nolint:errcheck // Test server
			conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n")) //nolint:errcheck // Test server
		}()

		c, err := NewClient(ln.Addr().String(), time.Second)
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}

		status := c.CheckConnection(context.Background())
		if status != ProxyStatusWrongType {
			t.Errorf("status = %v, want wrong type", status)
		}
		if !errors.Is(status.Error(), ErrProxyNotTor) {
			t.Errorf("status error = %v", status.Error())
		}
	})
}

func TestProxyStatusString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status ProxyStatus
		want   string
	}{
		{ProxyStatusOK, "OK"},
		{ProxyStatusWrongType, "wrong type (not Tor)"},
		{ProxyStatusCannotConnect, "cannot connect"},
		{ProxyStatusTimeout, "timeout"},
		{ProxyStatus(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("ProxyStatus(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
