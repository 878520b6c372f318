// Package log provides structured logging with automatic redaction of
// sensitive values, built on top of the standard slog package.
//
// A crawl may carry session cookies and custom headers from per-site
// configuration, and verbose runs log request details. The RedactHandler
// masks cookies, authorization headers, and credential-like values before
// they reach the log output, so verbose logs stay safe to share.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, true) // verbose=true
//	logger.Info("request sent",
//	    "cookie", "session=abc123", // masked in output
//	    "url", "http://example.onion",
//	)
//
// The returned *slog.Logger works anywhere a standard logger is accepted,
// including tornago components that take a *slog.Logger.
package log
