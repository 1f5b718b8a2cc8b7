// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package httphelpers

import "strings"

// NormalizeBasePath turns a configured base URL into a route prefix: leading
// slash, no trailing slash, empty for the root.
func NormalizeBasePath(baseURL string) string {
	base := strings.Trim(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return ""
	}
	return "/" + base
}

// JoinBasePath appends suffix to a prefix produced by NormalizeBasePath.
func JoinBasePath(basePath, suffix string) string {
	suffix = "/" + strings.TrimPrefix(suffix, "/")
	if basePath == "" {
		return suffix
	}
	if suffix == "/" {
		return basePath
	}
	return basePath + suffix
}
