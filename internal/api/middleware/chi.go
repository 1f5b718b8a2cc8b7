// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import "github.com/go-chi/chi/v5/middleware"

// RequestID tags each request so access lines and pipeline logs can be joined.
var RequestID = middleware.RequestID

// Recoverer turns a handler panic into a 500.
var Recoverer = middleware.Recoverer

// RealIP trusts X-Forwarded-For and friends. Sonarr usually sits behind the
// same reverse proxy as magnetarr.
var RealIP = middleware.RealIP

// ThrottleBacklog caps concurrent pipeline runs and queues the rest.
var ThrottleBacklog = middleware.ThrottleBacklog
