// Package tor provides Tor network connectivity for the crawler.
//
// It wraps a SOCKS5 dialer pointed at a Tor daemon (external or embedded via
// tornago), verifies that the configured proxy actually speaks Tor's SOCKS5
// protocol, and validates v3 onion addresses before they are crawled.
//
// The package is designed for dependency injection: create a Client and hand
// its dialer to the fetcher rather than using global state.
package tor
