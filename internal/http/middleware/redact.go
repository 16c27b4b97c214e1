// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the scrubber applied to request metadata before it is
// written to the access log. Widget visitors type free text into chat, and
// dashboard calls carry bearer tokens; neither bodies nor secrets may reach
// the logs.
package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

// RedactOptions configures a Redactor.
//
// MaskHeaders lists extra header names whose values are replaced entirely
// with "[REDACTED]". Authorization, Cookie and Set-Cookie are always masked.
// MaskParams lists query parameters whose values are masked the same way.
type RedactOptions struct {
	MaskHeaders []string
	MaskParams  []string
}

// Emails, phone numbers and UUIDs. UUIDs are replaced before phone numbers
// so the phone pattern cannot eat their digit groups.
var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Redactor scrubs strings, query strings and header sets.
type Redactor struct {
	headers map[string]struct{}
	params  map[string]struct{}
}

// NewRedactor builds a Redactor from opts.
func NewRedactor(opts RedactOptions) *Redactor {
	r := &Redactor{
		headers: map[string]struct{}{"authorization": {}, "cookie": {}, "set-cookie": {}},
		params:  map[string]struct{}{"token": {}},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			r.headers[h] = struct{}{}
		}
	}
	for _, p := range opts.MaskParams {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			r.params[p] = struct{}{}
		}
	}
	return r
}

// String replaces ids, emails and phone numbers in s.
func (r *Redactor) String(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// Query scrubs a raw query string, masking the values of sensitive
// parameters entirely. Parameter order is preserved.
func (r *Redactor) Query(raw string) string {
	if raw == "" {
		return raw
	}
	parts := strings.Split(raw, "&")
	for i, p := range parts {
		name, _, found := strings.Cut(p, "=")
		if _, masked := r.params[strings.ToLower(name)]; masked && found {
			parts[i] = name + "=[REDACTED]"
			continue
		}
		parts[i] = r.String(p)
	}
	return strings.Join(parts, "&")
}

// Headers returns a flattened, scrubbed copy of h.
func (r *Redactor) Headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, masked := r.headers[strings.ToLower(k)]; masked {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = r.String(strings.Join(vv, ", "))
	}
	return out
}
