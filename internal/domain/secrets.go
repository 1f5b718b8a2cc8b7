// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "strings"

// RedactedStr stands in for a secret in served or printed config.
const RedactedStr = "<redacted>"

const keyTailLen = 4

// RedactString hides s. Unset secrets stay empty so the output still shows
// which ones are missing.
func RedactString(s string) string {
	if s == "" {
		return ""
	}
	return RedactedStr
}

// MaskKey keeps the last characters of an API key, enough to tell which key
// Sonarr or a client should be sending. Short keys are hidden entirely.
func MaskKey(s string) string {
	if len(s) <= keyTailLen*4 {
		return RedactString(s)
	}
	return RedactedStr + s[len(s)-keyTailLen:]
}

// RedactUserList hides the password half of "user:pass,user2:pass2" lists.
func RedactUserList(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	var users []string
	for cred := range strings.SplitSeq(s, ",") {
		user, _, _ := strings.Cut(strings.TrimSpace(cred), ":")
		if user == "" {
			continue
		}
		users = append(users, user+":"+RedactedStr)
	}
	return strings.Join(users, ",")
}
