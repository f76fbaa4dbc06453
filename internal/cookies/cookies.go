// Package cookies implements the cookie wire codec used for session and CSRF
// credentials. Parsing and serialization are pure functions so the security
// attributes can be tested without an http.Request.
package cookies

import (
	"fmt"
	"net/url"
	"strings"
)

// SameSite values accepted by Serialize.
const (
	SameSiteLax    = "Lax"
	SameSiteStrict = "Strict"
	SameSiteNone   = "None"
)

// Options are the attributes attached to a serialized cookie. MaxAge is in
// seconds; nil means the attribute is omitted (session cookie), zero expires
// the cookie immediately.
type Options struct {
	Path     string
	Domain   string
	HTTPOnly bool
	Secure   bool
	SameSite string
	MaxAge   *int
}

// MaxAgeSeconds is a convenience for building Options literals.
func MaxAgeSeconds(s int) *int { return &s }

// Parse decodes a raw Cookie header into a name to value mapping. Values are
// percent-decoded; on duplicate names the last value wins.
func Parse(header string) map[string]string {
	out := make(map[string]string)
	if header == "" {
		return out
	}
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		if name == "" {
			continue
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		out[name] = value
	}
	return out
}

// Serialize renders a single Set-Cookie header value. The value is
// percent-encoded; Path defaults to "/" and SameSite to Lax.
func Serialize(name, value string, opts Options) string {
	segs := []string{fmt.Sprintf("%s=%s", name, url.QueryEscape(value))}

	path := opts.Path
	if path == "" {
		path = "/"
	}
	segs = append(segs, "Path="+path)

	if opts.Domain != "" {
		segs = append(segs, "Domain="+opts.Domain)
	}
	if opts.HTTPOnly {
		segs = append(segs, "HttpOnly")
	}
	if opts.Secure {
		segs = append(segs, "Secure")
	}

	sameSite := opts.SameSite
	if sameSite == "" {
		sameSite = SameSiteLax
	}
	segs = append(segs, "SameSite="+sameSite)

	if opts.MaxAge != nil {
		segs = append(segs, fmt.Sprintf("Max-Age=%d", *opts.MaxAge))
	}

	return strings.Join(segs, "; ")
}
