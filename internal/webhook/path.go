package webhook

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultRoutingPrefix is the local prefix a fronting reverse proxy rewrites
// onto the automation service's base URL.
const DefaultRoutingPrefix = "/api/n8n"

var (
	ErrEmptyPath    = errors.New("webhook: empty path")
	ErrMalformedURL = errors.New("webhook: malformed url")
)

// NormalizePath turns a stored webhook value into a request path.
//
// Stored values are meant to be paths. When one holds a fully-qualified
// http(s) URL only its path, query and fragment are kept and extracted is
// true. The result always starts with "/"; one is prepended when missing.
func NormalizePath(stored string) (path string, extracted bool, err error) {
	s := strings.TrimSpace(stored)
	if s == "" {
		return "", false, ErrEmptyPath
	}

	if hasHTTPScheme(s) {
		u, perr := url.Parse(s)
		if perr != nil || u.Host == "" {
			return "", false, fmt.Errorf("%w: %q", ErrMalformedURL, stored)
		}
		s = u.EscapedPath()
		if u.RawQuery != "" {
			s += "?" + u.RawQuery
		}
		if u.Fragment != "" {
			s += "#" + u.EscapedFragment()
		}
		extracted = true
	}

	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return s, extracted, nil
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// redactURL masks credentials and query values in a URL for safe logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid-url>"
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}
