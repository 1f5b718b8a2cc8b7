// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package redact provides utilities for redacting sensitive information from URLs and errors.
package redact

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// sensitiveParams lists query parameter names that should be redacted (case-insensitive).
// sid is the phpBB session id.
var sensitiveParams = []string{"apikey", "api_key", "passkey", "token", "password", "sid"}

// sensitiveParamRegex matches sensitive query parameters in a string.
// Used as a fallback when URL parsing fails or for error message redaction.
var sensitiveParamRegex = regexp.MustCompile(`(?i)\b(apikey|api_key|passkey|token|password|sid)=([^&\s]*)`)

// announcePasskeyRegex matches private tracker announce paths, /{passkey}/announce or /announce/{passkey}.
var announcePasskeyRegex = regexp.MustCompile(`(?i)(/)([a-z0-9]{16,64})(/announce)|(/announce/)([a-z0-9]{16,64})`)

// URLString redacts sensitive query parameter values in a URL string.
// Also redacts passwords in userinfo (user:pass@host) and tracker passkeys in announce paths.
// If parsing fails, it uses a regex fallback to perform the same redaction.
func URLString(raw string) string {
	if raw == "" {
		return raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return String(raw)
	}

	modified := false

	if parsed.User != nil {
		if _, hasPass := parsed.User.Password(); hasPass {
			parsed.User = url.UserPassword(parsed.User.Username(), "REDACTED")
			modified = true
		}
	}

	if strings.Contains(strings.ToLower(parsed.Path), "/announce") {
		newPath := announcePath(parsed.Path)
		if newPath != parsed.Path {
			parsed.Path = newPath
			parsed.RawPath = ""
			modified = true
		}
	}

	query := parsed.Query()
	for _, param := range sensitiveParams {
		// url.Values keys are case-sensitive
		for key := range query {
			if strings.EqualFold(key, param) {
				query[key] = []string{"REDACTED"}
				modified = true
			}
		}
	}

	if !modified {
		return raw
	}

	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// URLError wraps a *url.Error (if present) with a redacted URL.
// If err is or wraps *url.Error, returns a cloned error with the URL redacted.
// Otherwise returns err unchanged.
func URLError(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{
			Op:  urlErr.Op,
			URL: URLString(urlErr.URL),
			Err: urlErr.Err,
		}
	}

	return err
}

// userinfoPasswordRegex matches user:password@ patterns in URLs
var userinfoPasswordRegex = regexp.MustCompile(`(://[^/:@\s]+):([^@\s]+)@`)

// String redacts sensitive query parameter values in any string using regex.
// This is useful for sanitizing error messages that may contain URLs or URL fragments.
func String(s string) string {
	if s == "" {
		return s
	}
	result := sensitiveParamRegex.ReplaceAllString(s, "${1}=REDACTED")
	result = userinfoPasswordRegex.ReplaceAllString(result, "${1}:REDACTED@")
	return announcePath(result)
}

func announcePath(s string) string {
	return announcePasskeyRegex.ReplaceAllString(s, "${1}${4}REDACTED${3}")
}

// Magnet shortens a magnet link for logging: the exact topic and display name
// are kept, tracker URLs are dropped since they often carry passkeys.
func Magnet(uri string) string {
	const prefix = "magnet:?"
	if !strings.HasPrefix(strings.ToLower(uri), prefix) {
		return String(uri)
	}
	values, err := url.ParseQuery(uri[len(prefix):])
	if err != nil && values.Get("xt") == "" {
		return prefix + "REDACTED"
	}

	kept := url.Values{}
	for _, key := range []string{"xt", "dn"} {
		if v := values.Get(key); v != "" {
			kept.Set(key, v)
		}
	}
	if n := len(values["tr"]); n > 0 {
		kept.Set("tr", "REDACTED")
	}
	return prefix + kept.Encode()
}

// BasicAuthUser redacts the password from a basic auth credential string.
// "user:password" -> "user:REDACTED"
func BasicAuthUser(cred string) string {
	if cred == "" {
		return cred
	}
	idx := strings.Index(cred, ":")
	if idx < 0 {
		return cred // No password part
	}
	return cred[:idx+1] + "REDACTED"
}
