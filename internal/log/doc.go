// Package log provides slog loggers that mask sensitive values.
//
// Site files may configure cookies and authorization headers per domain, and
// download links are sometimes signed. The SecureHandler masks:
//   - values of sensitive keys (cookie, authorization, token, ...)
//   - values that look like credentials (JWT, bearer and basic auth)
//   - passwords in URL user info and sensitive URL query parameters
//
// Usage:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("fetching page", "url", pageURL, "cookie", cookie)
package log
